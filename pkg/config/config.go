// Package config provides configuration management for dclust.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Clustering ClusteringConfig `mapstructure:"clustering"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ClusteringConfig holds the cutoff-sweep and worker parameters (spec.md
// §4.7's sweep controller and §5's concurrency model).
type ClusteringConfig struct {
	SortKey            int     `mapstructure:"sort_key"`
	FirstCutoff        float64 `mapstructure:"first_cutoff"`
	LastCutoff         float64 `mapstructure:"last_cutoff"`
	Step               float64 `mapstructure:"step"`
	PctTarget          float64 `mapstructure:"pct_target"`
	// MinEvents is the minimum point count (absolute) for a cluster to be
	// retained (dclust.c's -n cntcutoff). If MinEventsPct is non-zero it
	// takes precedence and MinEvents is recomputed from it once the input
	// row count is known (dclust.c's -k pctEventsToKeepCluster).
	MinEvents          int64   `mapstructure:"min_events"`
	MinEventsPct       float64 `mapstructure:"min_events_pct"`
	BlockSize          int     `mapstructure:"block_size"`
	WorkerCount        int     `mapstructure:"worker_count"`
	ContinueOnDecrease bool    `mapstructure:"continue_on_decrease"`
}

// DatabaseConfig holds the genealogy history store connection.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres, or mysql
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds object storage configuration for shipping run
// artifacts (.assigned/.unassigned/.leftover.clusters; sidecars are not
// uploaded) off-box after a run.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json or text
}

// TelemetryConfig holds the telemetry section of the config file. It is
// loaded but not applied: telemetry.Init takes its settings from the
// OTEL_* environment variables and does not read this struct.
type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Endpoint     string  `mapstructure:"endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplerRatio float64 `mapstructure:"sampler_ratio"`
	OTLPProtocol string  `mapstructure:"otlp_protocol"`
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/dclust")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from an io.Reader (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("clustering.sort_key", 0)
	v.SetDefault("clustering.min_events", 1)
	v.SetDefault("clustering.pct_target", 0.95)
	v.SetDefault("clustering.block_size", 2048)
	v.SetDefault("clustering.worker_count", 4)
	v.SetDefault("clustering.continue_on_decrease", false)

	// Embedded sqlite by default so a single-binary run needs no external
	// service; the postgres/mysql drivers stay wired for larger deployments.
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.database", "./dclust-history.db")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./output")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "./logs")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "dclust")
	v.SetDefault("telemetry.sampler_ratio", 1.0)
	v.SetDefault("telemetry.otlp_protocol", "grpc")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Database.Type != "sqlite" && c.Database.Host == "" {
		return fmt.Errorf("database host is required for %s", c.Database.Type)
	}

	if c.Clustering.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}

	if c.Clustering.Step < 0 {
		return fmt.Errorf("clustering step must be non-negative")
	}

	return nil
}

// EnsureStorageDir creates the local storage directory if it doesn't exist.
func (c *Config) EnsureStorageDir() error {
	if c.Storage.LocalPath == "" {
		return nil
	}
	return os.MkdirAll(c.Storage.LocalPath, 0755)
}
