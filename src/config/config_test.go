package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `{
  "source": {"url": "http://example.test/rides.zip", "timeout": "30s", "refresh_interval": "1h"},
  "data_dir": "out",
  "log_name": "test.log",
  "redis": {"addr": "localhost:6379", "ttl": "2h"}
}`

const testDataConfig = `{
  "columns": {"reason": "motivo"},
  "bases": ["TAXIGOV_DF", "TAXIGOV_RJ_10"],
  "repair_strategy": "scale",
  "top_n": 5
}`

func writeConfigs(t *testing.T, cfg, dcfg string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataconfig.json"), []byte(dcfg), 0644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfigs(t, testConfig, testDataConfig)

	cfg, dcfg, err := Load(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)

	assert.Equal(t, "http://example.test/rides.zip", cfg.Source.URL)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
	assert.Equal(t, time.Hour, cfg.Source.RefreshInterval)
	assert.Equal(t, 2*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "out", cfg.DataDir)
	// untouched keys keep their defaults
	assert.Equal(t, "10 * 1024 * 1024", cfg.LogMaxSize)

	assert.Equal(t, "scale", dcfg.RepairStrategy)
	assert.Equal(t, []string{"TAXIGOV_DF", "TAXIGOV_RJ_10"}, dcfg.Bases)
	assert.Equal(t, 5, dcfg.TopN)
	assert.Equal(t, 3, dcfg.DecimalWidth)
	assert.Equal(t, "motivo", dcfg.Column("reason"))
	assert.Equal(t, "nome_orgao", dcfg.Column("agency"))
}

func TestLoadEnvOverride(t *testing.T) {
	dir := writeConfigs(t, testConfig, testDataConfig)
	t.Setenv("TAXIGOV_SOURCE_URL", "http://mirror.test/rides.zip")
	t.Setenv("TAXIGOV_REPAIR_STRATEGY", "text")

	cfg, dcfg, err := Load(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)
	assert.Equal(t, "http://mirror.test/rides.zip", cfg.Source.URL)
	assert.Equal(t, "text", dcfg.RepairStrategy)
}

func TestLoadMissingFiles(t *testing.T) {
	_, _, err := Load(t.TempDir(), "config.json", "dataconfig.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "多个错误")
}

func TestLoadBadJSON(t *testing.T) {
	dir := writeConfigs(t, testConfig, `{"columns": `)
	_, _, err := Load(dir, "config.json", "dataconfig.json")
	require.Error(t, err)
}

func TestColumn(t *testing.T) {
	dcfg := defaultDataConfig()
	dcfg.Columns = map[string]string{"origin_latitude": "lat_o", "fare": ""}
	assert.Equal(t, "lat_o", dcfg.Column("origin_latitude"))
	assert.Equal(t, "valor_corrida", dcfg.Column("fare"))
	assert.Equal(t, "", dcfg.Column("unknown"))
}
