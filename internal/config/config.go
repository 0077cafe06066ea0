package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AnalyzerConfig controls the trace-to-series pipeline.
type AnalyzerConfig struct {
	// IntervalWidth is the time-bucket width, e.g. "500ms". An empty value
	// means derive it from the data.
	IntervalWidth string `yaml:"interval_width"`
	VersionsRoot  string `yaml:"versions_root"`
	TraceFile     string `yaml:"trace_file"`
	MetricsFile   string `yaml:"metrics_file"`
}

// Width parses the configured interval width. Zero means derive.
func (c AnalyzerConfig) Width() (time.Duration, error) {
	if c.IntervalWidth == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.IntervalWidth)
	if err != nil {
		return 0, fmt.Errorf("invalid interval_width: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("interval_width must not be negative")
	}
	return d, nil
}

// ClickHouseConfig holds the connection settings for the ClickHouse writer
// and querier.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// GobConfig holds settings for the on-disk snapshot writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// NATSConfig holds settings for the NATS result publisher.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// WriterDef defines a single result writer instance.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Gob        GobConfig        `yaml:"gob"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
}

// APIConfig holds settings for the report API server.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Writers  []WriterDef    `yaml:"writers"`
	API      APIConfig      `yaml:"api"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if cfg.Analyzer.VersionsRoot == "" {
		cfg.Analyzer.VersionsRoot = "versions"
	}
	if cfg.Analyzer.TraceFile == "" {
		cfg.Analyzer.TraceFile = "flowmon.xml"
	}
	if cfg.Analyzer.MetricsFile == "" {
		cfg.Analyzer.MetricsFile = "simulation_metrics.csv"
	}

	return &cfg, nil
}
