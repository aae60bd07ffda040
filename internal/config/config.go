// Package config loads and validates fabtrack configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted by the store, publisher and export sections.
const (
	ProviderMemory   = "memory"
	ProviderPostgres = "postgres"
	ProviderPubSub   = "pubsub"
	ProviderNone     = "none"
	ProviderLocal    = "local"
	ProviderGCS      = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Store     StoreConfig     `mapstructure:"store"`
	DB        DBConfig        `mapstructure:"db"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Export    ExportConfig    `mapstructure:"export"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
	// RateLimitRPS throttles write endpoints per client; zero disables it.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	// SnapshotPath optionally seeds the memory store from a YAML file.
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int    `mapstructure:"max_conns"`
	MinConns               int    `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// TrackingConfig tunes the aggregation service.
type TrackingConfig struct {
	ManufacturingStage  string `mapstructure:"manufacturing_stage"`
	OverviewParallelism int    `mapstructure:"overview_parallelism"`
}

// NotifyConfig sizes the asynchronous entry notification hub.
type NotifyConfig struct {
	BufferSize         int `mapstructure:"buffer_size"`
	MaxBatchEvents     int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs     int `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutSeconds int `mapstructure:"sink_timeout_seconds"`
}

// PublisherConfig selects where entry notifications are published.
type PublisherConfig struct {
	Provider string `mapstructure:"provider"`
	Topic    string `mapstructure:"topic"`
}

// PubSubConfig holds Google Cloud Pub/Sub client settings.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// ExportConfig selects the blob store reports are exported to.
type ExportConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseDir      string `mapstructure:"base_dir"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	Prefix       string `mapstructure:"prefix"`
	CacheControl string `mapstructure:"cache_control"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	ServiceVersion string  `mapstructure:"service_version"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FABTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("store.provider", ProviderMemory)
	v.SetDefault("store.snapshot_path", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("tracking.manufacturing_stage", "imalat")
	v.SetDefault("tracking.overview_parallelism", 4)
	v.SetDefault("notify.buffer_size", 1024)
	v.SetDefault("notify.max_batch_events", 100)
	v.SetDefault("notify.max_batch_wait_ms", 250)
	v.SetDefault("notify.sink_timeout_seconds", 10)
	v.SetDefault("publisher.provider", ProviderNone)
	v.SetDefault("publisher.topic", "fabtrack-entries")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("export.provider", ProviderLocal)
	v.SetDefault("export.base_dir", "reports")
	v.SetDefault("export.gcs_bucket", "")
	v.SetDefault("export.prefix", "reports")
	v.SetDefault("export.cache_control", "")
	v.SetDefault("telemetry.tracing_enabled", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.service_version", "dev")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Store.Provider {
	case ProviderMemory:
	case ProviderPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when store.provider is %q", ProviderPostgres)
		}
		if c.DB.MaxConns <= 0 || c.DB.MinConns < 0 || c.DB.MinConns > c.DB.MaxConns {
			return fmt.Errorf("db.max_conns must be > 0 and >= db.min_conns")
		}
	default:
		return fmt.Errorf("unknown store.provider %q", c.Store.Provider)
	}
	if strings.TrimSpace(c.Tracking.ManufacturingStage) == "" {
		return fmt.Errorf("tracking.manufacturing_stage must not be empty")
	}
	if c.Notify.BufferSize <= 0 || c.Notify.MaxBatchEvents <= 0 {
		return fmt.Errorf("notify.buffer_size and notify.max_batch_events must be > 0")
	}
	switch c.Publisher.Provider {
	case ProviderNone, ProviderMemory:
	case ProviderPubSub:
		if c.PubSub.ProjectID == "" {
			return fmt.Errorf("pubsub.project_id must be set when publisher.provider is %q", ProviderPubSub)
		}
		if c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.topic must be set when publisher.provider is %q", ProviderPubSub)
		}
	default:
		return fmt.Errorf("unknown publisher.provider %q", c.Publisher.Provider)
	}
	switch c.Export.Provider {
	case ProviderMemory:
	case ProviderLocal:
		if c.Export.BaseDir == "" {
			return fmt.Errorf("export.base_dir must be set when export.provider is %q", ProviderLocal)
		}
	case ProviderGCS:
		if c.Export.GCSBucket == "" {
			return fmt.Errorf("export.gcs_bucket must be set when export.provider is %q", ProviderGCS)
		}
	default:
		return fmt.Errorf("unknown export.provider %q", c.Export.Provider)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	return nil
}

// RequestTimeout is the per-request handler deadline.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
