package api

import (
	"TaxiGovExplorer/src/config"
	"TaxiGovExplorer/src/processor"
	"TaxiGovExplorer/src/storage"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	tables map[string]processor.FrequencyTable
	err    error
}

func (c fakeCache) Get(_ context.Context, base, column string) (processor.FrequencyTable, bool, error) {
	t, ok := c.tables[base+"/"+column]
	return t, ok, c.err
}

func runSample(t *testing.T) *processor.Result {
	t.Helper()
	col := func(name string, values ...string) series.Series {
		return series.New(values, series.String, name)
	}
	df := dataframe.New(
		col("base_origem", "TAXIGOV_DF", "TAXIGOV_DF", "TAXIGOV_SP_10"),
		col("data_inicio", "2021-11-01T08:00:00", "2021-11-02T08:00:00", "2021-11-01T09:00:00"),
		col("origem_latitude", "-15.79", "-15.80", "-23.55"),
		col("origem_longitude", "-47.88", "-47.90", "-46.63"),
		col("destino_efetivo_latitude", "-15.81", "", "-23.56"),
		col("destino_efetivo_longitude", "-47.91", "", "-46.64"),
		col("motivo_corrida", "A", "A", "B"),
		col("nome_orgao", "MEC", "MS", "MF"),
	)
	p, err := processor.NewPipeline(&config.DataConfig{RepairStrategy: "full", ClusterRadius: 0.01}, nil)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), "sample", df)
	require.NoError(t, err)
	return res
}

func get(t *testing.T, h http.Handler, target string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if v != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
	}
	return rec
}

func TestBeforeFirstRun(t *testing.T) {
	h := RegisterRoutes(NewServer(nil, nil), nil)

	var health map[string]interface{}
	rec := get(t, h, "/health", &health)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", health["status"])
	assert.NotContains(t, health, "last_run")

	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/summary", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/heat/frames", nil).Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/logs", nil).Code)
}

func TestSummaryAndFrequencies(t *testing.T) {
	s := NewServer(nil, nil)
	s.Publish(runSample(t))
	h := RegisterRoutes(s, nil)

	var summary processor.Summary
	rec := get(t, h, "/summary", &summary)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, []string{"TAXIGOV_DF", "TAXIGOV_SP_10"}, summary.Partitions)
	require.NotNil(t, summary.Bounds)
	assert.Equal(t, processor.Point{Lat: -23.56, Lon: -47.91}, summary.Bounds.SouthWest)
	assert.Equal(t, processor.Point{Lat: -15.79, Lon: -46.63}, summary.Bounds.NorthEast)

	var table processor.FrequencyTable
	rec = get(t, h, "/frequencies/TAXIGOV_DF/reason", &table)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []processor.CategoryCount{{Value: "A", Count: 2}}, table.Rows)

	var raw map[string]interface{}
	rec = get(t, h, "/frequencies/TAXIGOV_DF/agency", &raw)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, raw["total"])
	assert.Equal(t, "TAXIGOV_DF", raw["partition"])

	rec = get(t, h, "/frequencies/TAXIGOV_DF/agency", &table)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []processor.CategoryCount{{Value: "MEC", Count: 1}, {Value: "MS", Count: 1}}, table.Rows)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/frequencies/TAXIGOV_DF/fare", nil).Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/frequencies/TAXIGOV_RJ_10/reason", nil).Code)
}

func TestFrequenciesFromCache(t *testing.T) {
	cached := processor.FrequencyTable{Partition: "TAXIGOV_RJ_10", Column: "reason", Rows: []processor.CategoryCount{{Value: "C", Count: 4}}}
	h := RegisterRoutes(NewServer(nil, fakeCache{tables: map[string]processor.FrequencyTable{"TAXIGOV_RJ_10/reason": cached}}), nil)

	var table processor.FrequencyTable
	rec := get(t, h, "/frequencies/TAXIGOV_RJ_10/reason", &table)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cached, table)

	h = RegisterRoutes(NewServer(nil, fakeCache{err: errors.New("connection refused")}), nil)
	assert.Equal(t, http.StatusBadGateway, get(t, h, "/frequencies/TAXIGOV_RJ_10/reason", nil).Code)
}

func TestMapEndpoints(t *testing.T) {
	s := NewServer(nil, nil)
	s.Publish(runSample(t))
	h := RegisterRoutes(s, nil)

	var frames []processor.HeatFrame
	rec := get(t, h, "/heat/frames?point=origem", &frames)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, frames, 2)
	assert.Equal(t, "2021-11-01", frames[0].Date)
	assert.Len(t, frames[0].Points, 2)

	rec = get(t, h, "/heat/frames?point=destino_efetivo", &frames)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, frames, 1)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/heat/frames?point=meio", nil).Code)

	var layers []processor.Layer
	rec = get(t, h, "/layers/reason", &layers)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, layers, 2)
	assert.Equal(t, "A", layers[0].Name)
	assert.Len(t, layers[0].Markers, 3)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/layers/fare", nil).Code)

	var clusters []processor.Cluster
	rec = get(t, h, "/clusters", &clusters)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, clusters)

	var cells []processor.HeatCell
	rec = get(t, h, "/heat/cells", &cells)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, cells, 3)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/summary", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestInfinityCoordinateServedAsMissing(t *testing.T) {
	col := func(name string, values ...string) series.Series {
		return series.New(values, series.String, name)
	}
	df := dataframe.New(
		col("base_origem", "TAXIGOV_DF", "TAXIGOV_DF"),
		col("data_inicio", "2021-11-01T08:00:00", "2021-11-01T09:00:00"),
		col("origem_latitude", "Infinity", "-15.80"),
		col("origem_longitude", "-47.90", "-47.90"),
		col("destino_efetivo_latitude", "", ""),
		col("destino_efetivo_longitude", "", ""),
		col("motivo_corrida", "A", "B"),
	)
	p, err := processor.NewPipeline(&config.DataConfig{RepairStrategy: "scale"}, nil)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), "sample", df)
	require.NoError(t, err)
	require.Len(t, res.Markers, 1)

	s := NewServer(nil, nil)
	s.Publish(res)
	h := RegisterRoutes(s, nil)

	var clusters []processor.Cluster
	rec := get(t, h, "/clusters", &clusters)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, clusters, 1)
	assert.Equal(t, -15.80, clusters[0].Center.Lat)

	var summary processor.Summary
	rec = get(t, h, "/summary", &summary)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, summary.Markers)

	for _, target := range []string{"/layers/reason", "/heat/frames", "/heat/cells"} {
		rec = get(t, h, target, nil)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.NotEmpty(t, rec.Body.String(), target)
	}
}

func TestWriteJSONUnencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"lat": math.Inf(1)})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "encode response")
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	h := RegisterRoutes(NewServer(nil, nil), &buf)
	get(t, h, "/health", nil)
	assert.Contains(t, buf.String(), "GET /health")
}

func TestLogsStream(t *testing.T) {
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "app.log"))
	require.NoError(t, err)
	defer logger.Close()

	srv := httptest.NewServer(RegisterRoutes(NewServer(logger, nil), nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/logs", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	// the handler subscribes after the headers are flushed; keep logging until seen
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed")
			if strings.Contains(line, "corridas carregadas") {
				assert.Contains(t, line, "INFO")
				return
			}
		case <-ticker.C:
			logger.Info("corridas carregadas")
		case <-ctx.Done():
			t.Fatal("no log line received")
		}
	}
}
