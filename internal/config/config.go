// Package config provides centralized configuration for the series cleaner.
// Configuration is loaded in priority order: defaults, then a JSON file, then
// environment variable overrides. There is no process-wide mutable state; the
// resolved AppConfig is passed explicitly into every component.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is the complete application configuration.
type AppConfig struct {
	AppName string `json:"app_name" env:"APP_NAME"`
	Version string `json:"version" env:"VERSION"`

	Pipeline  PipelineConfig  `json:"pipeline"`
	Session   SessionConfig   `json:"session"`
	Gaps      GapConfig       `json:"gaps"`
	Sources   []SourceConfig  `json:"sources"`
	Artifacts ArtifactsConfig `json:"artifacts"`
	Runner    RunnerConfig    `json:"runner"`
	Logging   LoggingConfig   `json:"logging"`
}

// PipelineConfig configures the cleaning stages.
type PipelineConfig struct {
	NominalInterval  string `json:"nominal_interval" env:"NOMINAL_INTERVAL"`     // expected bar spacing, e.g. "1m"
	StaleRunLength   int    `json:"stale_run_length" env:"STALE_RUN_LENGTH"`     // identical closes to flag a stale run
	MinBlockDuration string `json:"min_block_duration" env:"MIN_BLOCK_DURATION"` // minimum invalid-block span to report
}

// SessionConfig configures the trading-session filter.
type SessionConfig struct {
	Enabled bool `json:"enabled" env:"SESSION_FILTER_ENABLED"`
}

// GapConfig configures the two gap classification bands. Bounds are
// half-open: a gap falls in a band when min < diff <= max.
type GapConfig struct {
	ShortMin string `json:"short_min" env:"SHORT_GAP_MIN"`
	ShortMax string `json:"short_max" env:"SHORT_GAP_MAX"`
	LongMin  string `json:"long_min" env:"LONG_GAP_MIN"`
	LongMax  string `json:"long_max" env:"LONG_GAP_MAX"`
}

// SourceConfig describes one input folder of raw series files. Column names
// are source-schema dependent and vary per data provider.
type SourceConfig struct {
	Name        string `json:"name"`
	InputDir    string `json:"input_dir"`
	Glob        string `json:"glob"`
	OutputDir   string `json:"output_dir"`
	TimeColumn  string `json:"time_column"`
	OpenColumn  string `json:"open_column"`
	HighColumn  string `json:"high_column"`
	LowColumn   string `json:"low_column"`
	CloseColumn string `json:"close_column"`
}

// ArtifactsConfig configures how result bundles are persisted.
type ArtifactsConfig struct {
	Format string       `json:"format" env:"ARTIFACT_FORMAT"` // "parquet", "csv", "json"
	DuckDB DuckDBConfig `json:"duckdb"`
}

// DuckDBConfig configures the optional analytical database sink.
type DuckDBConfig struct {
	Enabled bool   `json:"enabled" env:"DUCKDB_ENABLED"`
	Path    string `json:"path" env:"DUCKDB_PATH"`
}

// RunnerConfig configures the batch runner. Series are independent, so the
// worker count only bounds parallelism; it never changes results.
type RunnerConfig struct {
	WorkerCount    int     `json:"worker_count" env:"WORKER_COUNT"`
	FilesPerSecond float64 `json:"files_per_second" env:"FILES_PER_SECOND"` // 0 disables throttling
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`   // debug, info, warn, error
	Format     string `json:"format" env:"LOG_FORMAT"` // json, text
	Output     string `json:"output" env:"LOG_OUTPUT"` // stdout, stderr, file
	FilePath   string `json:"file_path" env:"LOG_FILE_PATH"`
	MaxSize    int    `json:"max_size" env:"LOG_MAX_SIZE"` // MB
	MaxBackups int    `json:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAge     int    `json:"max_age" env:"LOG_MAX_AGE"` // days
	Compress   bool   `json:"compress" env:"LOG_COMPRESS"`
}

// DefaultConfig returns a configuration with the defaults the original
// FX datasets were cleaned with: one-minute cadence, 60-sample stale runs,
// short gaps up to two days, long gaps from two to ten days.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		AppName: "series-cleaner",
		Version: "1.0.0",
		Pipeline: PipelineConfig{
			NominalInterval:  "1m",
			StaleRunLength:   60,
			MinBlockDuration: "1m",
		},
		Session: SessionConfig{
			Enabled: true,
		},
		Gaps: GapConfig{
			ShortMin: "1m",
			ShortMax: "48h",
			LongMin:  "48h",
			LongMax:  "240h",
		},
		Sources: []SourceConfig{},
		Artifacts: ArtifactsConfig{
			Format: "parquet",
			DuckDB: DuckDBConfig{
				Enabled: false,
				Path:    "./data/series.db",
			},
		},
		Runner: RunnerConfig{
			WorkerCount:    4,
			FilesPerSecond: 0,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// Manager handles configuration loading and validation.
type Manager struct {
	configPath string
	logger     *slog.Logger
	config     *AppConfig
}

// NewManager creates a configuration manager. configPath may be empty, in
// which case only defaults and environment variables apply.
func NewManager(configPath string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{configPath: configPath, logger: logger}
}

// Load resolves the configuration from defaults, file, and environment.
func (m *Manager) Load() (*AppConfig, error) {
	config := DefaultConfig()

	if m.configPath != "" {
		if err := m.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	m.loadFromEnv(config)

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	m.logger.Info("configuration loaded",
		"config_path", m.configPath,
		"nominal_interval", config.Pipeline.NominalInterval,
		"session_filter", config.Session.Enabled,
		"sources", len(config.Sources),
		"artifact_format", config.Artifacts.Format)

	return config, nil
}

// Config returns the most recently loaded configuration.
func (m *Manager) Config() *AppConfig {
	return m.config
}

// loadFromFile merges a JSON config file over the current values.
func (m *Manager) loadFromFile(config *AppConfig) error {
	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.logger.Debug("config file does not exist, using defaults", "path", m.configPath)
		return nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", m.configPath, err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", m.configPath, err)
	}
	return nil
}

// loadFromEnv applies environment variable overrides.
func (m *Manager) loadFromEnv(config *AppConfig) {
	if val := os.Getenv("APP_NAME"); val != "" {
		config.AppName = val
	}
	if val := os.Getenv("NOMINAL_INTERVAL"); val != "" {
		config.Pipeline.NominalInterval = val
	}
	if val := os.Getenv("STALE_RUN_LENGTH"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Pipeline.StaleRunLength = n
		}
	}
	if val := os.Getenv("MIN_BLOCK_DURATION"); val != "" {
		config.Pipeline.MinBlockDuration = val
	}
	if val := os.Getenv("SESSION_FILTER_ENABLED"); val != "" {
		config.Session.Enabled = val == "true"
	}
	if val := os.Getenv("SHORT_GAP_MIN"); val != "" {
		config.Gaps.ShortMin = val
	}
	if val := os.Getenv("SHORT_GAP_MAX"); val != "" {
		config.Gaps.ShortMax = val
	}
	if val := os.Getenv("LONG_GAP_MIN"); val != "" {
		config.Gaps.LongMin = val
	}
	if val := os.Getenv("LONG_GAP_MAX"); val != "" {
		config.Gaps.LongMax = val
	}
	if val := os.Getenv("ARTIFACT_FORMAT"); val != "" {
		config.Artifacts.Format = val
	}
	if val := os.Getenv("DUCKDB_ENABLED"); val != "" {
		config.Artifacts.DuckDB.Enabled = val == "true"
	}
	if val := os.Getenv("DUCKDB_PATH"); val != "" {
		config.Artifacts.DuckDB.Path = val
	}
	if val := os.Getenv("WORKER_COUNT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Runner.WorkerCount = n
		}
	}
	if val := os.Getenv("FILES_PER_SECOND"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			config.Runner.FilesPerSecond = f
		}
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("LOG_OUTPUT"); val != "" {
		config.Logging.Output = val
	}
	if val := os.Getenv("LOG_FILE_PATH"); val != "" {
		config.Logging.FilePath = val
	}
}

// Validate checks the configuration for consistency and required fields.
func Validate(config *AppConfig) error {
	var errs []string

	if _, err := time.ParseDuration(config.Pipeline.NominalInterval); err != nil {
		errs = append(errs, fmt.Sprintf("pipeline.nominal_interval is not a valid duration: %v", err))
	}
	if config.Pipeline.StaleRunLength <= 1 {
		errs = append(errs, "pipeline.stale_run_length must be greater than 1")
	}
	if _, err := time.ParseDuration(config.Pipeline.MinBlockDuration); err != nil {
		errs = append(errs, fmt.Sprintf("pipeline.min_block_duration is not a valid duration: %v", err))
	}

	bands := map[string]string{
		"gaps.short_min": config.Gaps.ShortMin,
		"gaps.short_max": config.Gaps.ShortMax,
		"gaps.long_min":  config.Gaps.LongMin,
		"gaps.long_max":  config.Gaps.LongMax,
	}
	for field, raw := range bands {
		if _, err := time.ParseDuration(raw); err != nil {
			errs = append(errs, fmt.Sprintf("%s is not a valid duration: %v", field, err))
		}
	}
	if shortMin, err1 := time.ParseDuration(config.Gaps.ShortMin); err1 == nil {
		if shortMax, err2 := time.ParseDuration(config.Gaps.ShortMax); err2 == nil && shortMax <= shortMin {
			errs = append(errs, "gaps.short_max must be greater than gaps.short_min")
		}
	}
	if longMin, err1 := time.ParseDuration(config.Gaps.LongMin); err1 == nil {
		if longMax, err2 := time.ParseDuration(config.Gaps.LongMax); err2 == nil && longMax <= longMin {
			errs = append(errs, "gaps.long_max must be greater than gaps.long_min")
		}
	}

	validFormats := map[string]bool{"parquet": true, "csv": true, "json": true}
	if !validFormats[config.Artifacts.Format] {
		errs = append(errs, "artifacts.format must be one of: parquet, csv, json")
	}
	if config.Artifacts.DuckDB.Enabled && config.Artifacts.DuckDB.Path == "" {
		errs = append(errs, "artifacts.duckdb.path is required when the DuckDB sink is enabled")
	}

	if config.Runner.WorkerCount <= 0 {
		errs = append(errs, "runner.worker_count must be greater than 0")
	}
	if config.Runner.FilesPerSecond < 0 {
		errs = append(errs, "runner.files_per_second must not be negative")
	}

	for i, src := range config.Sources {
		if src.InputDir == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].input_dir is required", i))
		}
		if src.Glob == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].glob is required", i))
		}
		if src.TimeColumn == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].time_column is required", i))
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.Logging.Level] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[config.Logging.Format] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Interval returns the parsed expected bar spacing.
func (c *PipelineConfig) Interval() time.Duration {
	d, _ := time.ParseDuration(c.NominalInterval)
	return d
}

// MinBlock returns the parsed minimum invalid-block span.
func (c *PipelineConfig) MinBlock() time.Duration {
	d, _ := time.ParseDuration(c.MinBlockDuration)
	return d
}

// ShortBand returns the parsed short-gap band bounds.
func (c *GapConfig) ShortBand() (time.Duration, time.Duration) {
	min, _ := time.ParseDuration(c.ShortMin)
	max, _ := time.ParseDuration(c.ShortMax)
	return min, max
}

// LongBand returns the parsed long-gap band bounds.
func (c *GapConfig) LongBand() (time.Duration, time.Duration) {
	min, _ := time.ParseDuration(c.LongMin)
	max, _ := time.ParseDuration(c.LongMax)
	return min, max
}
