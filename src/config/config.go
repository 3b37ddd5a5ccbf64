package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, e.g. TAXIGOV_SOURCE_URL overrides source.url
const EnvPrefix = "TAXIGOV"

// Config holds the runtime settings of the explorer.
type Config struct {
	Source struct {
		URL             string        `mapstructure:"url"`              // remote zip archive
		Timeout         time.Duration `mapstructure:"timeout"`          // HTTP timeout for one download
		RefreshInterval time.Duration `mapstructure:"refresh_interval"` // cron refresh, 0 disables
		WatchDir        string        `mapstructure:"watch_dir"`        // drop directory, empty disables
	} `mapstructure:"source"`

	DataDir    string `mapstructure:"data_dir"`   // where reports are written
	SheetName  string `mapstructure:"sheet_name"` // xlsx input, empty reads the first sheet
	LogName    string `mapstructure:"log_name"`
	LogMaxSize string `mapstructure:"log_max_size"` // e.g. "10 * 1024 * 1024"
	PidFile    string `mapstructure:"pid_file"`
	ListenAddr string `mapstructure:"listen_addr"` // status API, empty disables

	Postgres struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"postgres"`

	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`

	Webhook struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"webhook"`
}

// DataConfig describes the dataset: column names, partitions and repair policy.
type DataConfig struct {
	Columns         map[string]string `mapstructure:"columns"`
	Bases           []string          `mapstructure:"bases"`
	RepairStrategy  string            `mapstructure:"repair_strategy"`
	DecimalWidth    int               `mapstructure:"decimal_width"`
	ScaleFactor     float64           `mapstructure:"scale_factor"`
	RepairColumns   []string          `mapstructure:"repair_columns"`
	Encoding        string            `mapstructure:"encoding"`
	Delimiter       string            `mapstructure:"delimiter"`
	TopN            int               `mapstructure:"top_n"`
	ClusterRadius   float64           `mapstructure:"cluster_radius"`
	HeatPrecision   uint              `mapstructure:"heat_precision"`
	HeaderRow       int               `mapstructure:"header_row"` // xlsx only, 0-based
	TimestampLayout []string          `mapstructure:"timestamp_layouts"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	loadErr            error
)

// LoadConfig reads both files once per process; later calls return the cached result.
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	once.Do(func() {
		instance, dataConfigInstance, loadErr = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, loadErr
}

// Load bypasses the process-wide cache.
func Load(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	return loadConfigs(jsonFolder, jsonFile, dataJsonFile)
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configFile, cfgChan, errChan)
	go parseDataConfig(dataConfigFile, dcfgChan, errChan)

	return waitForResults(cfgChan, dcfgChan, errChan)
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", path, err)
	}
	return v, nil
}

func parseConfig(path string, resultChan chan<- *Config, errChan chan<- error) {
	v, err := newViper(path)
	if err != nil {
		errChan <- err
		return
	}
	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- cfg
}

func parseDataConfig(path string, resultChan chan<- *DataConfig, errChan chan<- error) {
	v, err := newViper(path)
	if err != nil {
		errChan <- err
		return
	}
	dcfg := defaultDataConfig()
	if err := v.Unmarshal(dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func defaultConfig() *Config {
	cfg := &Config{
		DataDir:    "./data",
		LogName:    "app.log",
		LogMaxSize: "10 * 1024 * 1024",
		PidFile:    "taxigov.pid",
	}
	cfg.Source.URL = "http://repositorio.dados.gov.br/seges/taxigov/taxigov-corridas-7-dias.zip"
	cfg.Source.Timeout = 2 * time.Minute
	cfg.Redis.TTL = 24 * time.Hour
	return cfg
}

func defaultDataConfig() *DataConfig {
	return &DataConfig{
		Columns:         DefaultColumns(),
		RepairStrategy:  "full",
		DecimalWidth:    3,
		ScaleFactor:     100000,
		Encoding:        "utf-8",
		Delimiter:       ",",
		TopN:            10,
		ClusterRadius:   0.01,
		HeatPrecision:   6,
		HeaderRow:       0,
		TimestampLayout: []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04:05.000", "2006-01-02"},
	}
}

// DefaultColumns maps logical field names to the TaxiGov column headers.
func DefaultColumns() map[string]string {
	return map[string]string{
		"start":                    "data_inicio",
		"end":                      "data_final",
		"origin_latitude":          "origem_latitude",
		"origin_longitude":         "origem_longitude",
		"requested_dest_latitude":  "destino_solicitado_latitude",
		"requested_dest_longitude": "destino_solicitado_longitude",
		"actual_dest_latitude":     "destino_efetivo_latitude",
		"actual_dest_longitude":    "destino_efetivo_longitude",
		"origin_address":           "origem_endereco",
		"actual_dest_address":      "destino_efetivo_endereco",
		"reason":                   "motivo_corrida",
		"agency":                   "nome_orgao",
		"base":                     "base_origem",
		"distance":                 "km_total",
		"fare":                     "valor_corrida",
	}
}

// Column returns the dataset header for a logical field, falling back to the default mapping.
func (dc *DataConfig) Column(field string) string {
	if name, ok := dc.Columns[field]; ok && name != "" {
		return name
	}
	return DefaultColumns()[field]
}
