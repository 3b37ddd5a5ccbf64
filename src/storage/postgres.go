package storage

import (
	"TaxiGovExplorer/src/processor"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var rideColumns = []string{
	"run_id", "base", "reason", "agency", "started_at", "ended_at",
	"origin_latitude", "origin_longitude",
	"requested_latitude", "requested_longitude",
	"destination_latitude", "destination_longitude",
	"origin_address", "destination_address", "distance_km", "fare",
}

// RideStore keeps every run's cleaned rides in Postgres.
type RideStore struct {
	db  *sql.DB
	dsn string
}

func OpenRideStore(ctx context.Context, dsn string) (*RideStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	return &RideStore{db: db, dsn: dsn}, nil
}

// Migrate applies the embedded schema migrations.
func (s *RideStore) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, s.dsn)
	if err != nil {
		return fmt.Errorf("could not start migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// SaveRun stores the summary and its rides in one transaction and returns the run id.
func (s *RideStore) SaveRun(ctx context.Context, summary processor.Summary, rides []processor.Ride) (int64, error) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var runID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO runs (source, generated_at, row_count, summary) VALUES ($1, $2, $3, $4) RETURNING id`,
		summary.Source, summary.GeneratedAt, len(rides), payload,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("rides", rideColumns...))
	if err != nil {
		return 0, fmt.Errorf("prepare copy: %w", err)
	}
	for _, r := range rides {
		if _, err := stmt.ExecContext(ctx, rideRow(runID, r)...); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("copy ride: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

func (s *RideStore) Close() error {
	return s.db.Close()
}

// rideRow orders a ride like rideColumns; NaN and zero times become NULL.
func rideRow(runID int64, r processor.Ride) []interface{} {
	return []interface{}{
		runID, nullString(r.Base), nullString(r.Reason), nullString(r.Agency),
		nullTime(r.Start), nullTime(r.End),
		nullFloat(r.Origin.Lat), nullFloat(r.Origin.Lon),
		nullFloat(r.RequestedDest.Lat), nullFloat(r.RequestedDest.Lon),
		nullFloat(r.ActualDest.Lat), nullFloat(r.ActualDest.Lon),
		nullString(r.OriginAddress), nullString(r.ActualDestAddress),
		nullFloat(r.Distance), nullFloat(r.Fare),
	}
}

func nullFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func nullString(s string) interface{} {
	if s == "" || s == "NaN" {
		return nil
	}
	return s
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
