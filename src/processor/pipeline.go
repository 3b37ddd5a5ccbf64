package processor

import (
	"TaxiGovExplorer/src/config"
	"TaxiGovExplorer/src/utils"
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// Logger is the part of storage.Logger the pipeline writes to.
type Logger interface {
	Info(msg string)
	Warning(msg string)
}

type nopLogger struct{}

func (nopLogger) Info(string)    {}
func (nopLogger) Warning(string) {}

// AllRides names the single partition used when the frame has no base column.
const AllRides = "all"

// Summary is the small, JSON-safe description of one run.
type Summary struct {
	Source      string        `json:"source"`
	GeneratedAt time.Time     `json:"generated_at"`
	Elapsed     string        `json:"elapsed"`
	Rows        int           `json:"rows"`
	Partitions  []string      `json:"partitions"`
	Columns     []ColumnStats `json:"columns"`
	Markers     int           `json:"markers"`
	Clusters    int           `json:"clusters"`
	HeatPoints  int           `json:"heat_points"`
	Center      *Point        `json:"center,omitempty"` // nil when no coordinate is present
	Bounds      *BoundingBox  `json:"bounds,omitempty"`
}

// Result holds everything a run produces. It is never modified after Run returns.
type Result struct {
	Schema     Schema
	Frame      dataframe.DataFrame
	Rides      []Ride
	Reasons    []FrequencyTable
	Agencies   []FrequencyTable
	Markers    []Marker
	Clusters   []Cluster
	HeatPoints [][2]float64
	HeatFrames []HeatFrame
	HeatCells  []HeatCell
	Center     Point
	Summary    Summary
}

// Frequencies returns the table of column ("reason" or "agency") for partition base.
func (r *Result) Frequencies(base, column string) (FrequencyTable, bool) {
	var tables []FrequencyTable
	switch column {
	case "reason":
		tables = r.Reasons
	case "agency":
		tables = r.Agencies
	default:
		return FrequencyTable{}, false
	}
	for _, t := range tables {
		if t.Partition == base {
			return t, true
		}
	}
	return FrequencyTable{}, false
}

// Frames rebuilds the heat frames for another point type; origem is precomputed.
func (r *Result) Frames(pt PointType) []HeatFrame {
	if pt == PointOrigin {
		return r.HeatFrames
	}
	return HeatFrames(r.Rides, pt)
}

// Pipeline runs cleaning, aggregation and map data on one frame at a time.
type Pipeline struct {
	Cleaner       *Cleaner
	Bases         []string
	TopN          int
	ClusterRadius float64
	HeatPrecision uint

	logger Logger
	mu     sync.Mutex
	now    func() time.Time
}

func NewPipeline(dcfg *config.DataConfig, logger Logger) (*Pipeline, error) {
	cleaner, err := NewCleanerFromConfig(dcfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Pipeline{
		Cleaner:       cleaner,
		Bases:         dcfg.Bases,
		TopN:          dcfg.TopN,
		ClusterRadius: dcfg.ClusterRadius,
		HeatPrecision: dcfg.HeatPrecision,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// Run processes df from scratch. Concurrent calls are serialized; df is not modified.
func (p *Pipeline) Run(ctx context.Context, source string, df dataframe.DataFrame) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t1 := p.now()
	schema := p.Cleaner.Schema

	cleaned, stats, err := p.Cleaner.Clean(df)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	for _, st := range stats {
		if st.OutOfRange > 0 {
			p.logger.Warning(fmt.Sprintf("%s: %d 个坐标修复后仍超出范围", st.Column, st.OutOfRange))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rides, err := Rides(cleaned, schema)
	if err != nil {
		return nil, fmt.Errorf("rides: %w", err)
	}

	partitionCol, partitions := schema.Base, p.Bases
	if !utils.HasColumn(cleaned, schema.Base) {
		p.logger.Warning(fmt.Sprintf("缺少列 %s，按全部数据统计", schema.Base))
		partitionCol, partitions = "", []string{AllRides}
	} else if len(partitions) == 0 {
		if partitions, err = Partitions(cleaned, schema.Base); err != nil {
			return nil, err
		}
	}

	res := &Result{Schema: schema, Frame: cleaned, Rides: rides}
	if res.Reasons, err = p.tables(cleaned, partitionCol, schema.Reason, partitions); err != nil {
		return nil, err
	}
	if res.Agencies, err = p.tables(cleaned, partitionCol, schema.Agency, partitions); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Markers = Markers(rides)
	res.Clusters = Clusters(res.Markers, p.ClusterRadius)
	res.HeatPoints = HeatPoints(rides, PointOrigin)
	res.HeatFrames = HeatFrames(rides, PointOrigin)
	res.HeatCells = HeatCells(res.HeatPoints, p.HeatPrecision)
	res.Center = Center(rides)

	res.Summary = Summary{
		Source:      source,
		GeneratedAt: p.now(),
		Rows:        cleaned.Nrow(),
		Partitions:  partitions,
		Columns:     stats,
		Markers:     len(res.Markers),
		Clusters:    len(res.Clusters),
		HeatPoints:  len(res.HeatPoints),
		Bounds:      MarkerBounds(res.Markers),
	}
	if !math.IsNaN(res.Center.Lat) && !math.IsNaN(res.Center.Lon) {
		c := res.Center
		res.Summary.Center = &c
	}
	elapsed := p.now().Sub(t1)
	res.Summary.Elapsed = elapsed.String()

	p.logger.Info(fmt.Sprintf("处理完成 %s: %d 行, %d 个标记, 耗时 %v", source, res.Summary.Rows, res.Summary.Markers, elapsed))
	return res, nil
}

// tables counts column per partition; a column absent from the frame yields no tables.
func (p *Pipeline) tables(df dataframe.DataFrame, partitionCol, column string, partitions []string) ([]FrequencyTable, error) {
	if !utils.HasColumn(df, column) {
		p.logger.Warning(fmt.Sprintf("缺少列 %s，跳过频次统计", column))
		return nil, nil
	}
	var out []FrequencyTable
	if partitionCol == "" {
		t, err := ValueCounts(df, "", AllRides, column)
		if err != nil {
			return nil, err
		}
		out = []FrequencyTable{t}
	} else {
		var err error
		if out, err = CountsByPartition(df, partitionCol, column, partitions); err != nil {
			return nil, err
		}
	}
	for i := range out {
		out[i] = out[i].Top(p.TopN)
	}
	return out, nil
}
