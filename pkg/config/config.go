package config

import "time"

// Config is the root configuration for a witness observability context.
type Config struct {
	// Context is the observability context name; it keys the registry
	// index and isolates this context's spans from any other.
	Context string `yaml:"context"`

	// Registry configures the cross-unit span registry.
	Registry RegistryConfig `yaml:"registry"`

	// Bus configures the event bus.
	Bus BusConfig `yaml:"bus"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Export configures OTLP trace export.
	Export ExportConfig `yaml:"export"`

	// Storage configures span record persistence.
	Storage StorageConfig `yaml:"storage"`

	// Retention configures span record pruning.
	Retention RetentionConfig `yaml:"retention"`
}

// RegistryConfig contains span registry configuration.
type RegistryConfig struct {
	// TombstoneTTL is how long finished-span entries stay resolvable.
	TombstoneTTL time.Duration `yaml:"tombstone_ttl"`

	// SweepInterval is the period of the automatic tombstone sweep.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// BusConfig contains event bus configuration.
type BusConfig struct {
	// Workers is the async delivery worker count.
	Workers int `yaml:"workers"`

	// QueueSize is the async delivery queue capacity.
	QueueSize int `yaml:"queue_size"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Namespace     string `yaml:"namespace"`
}

// ExportConfig contains OTLP export configuration.
type ExportConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Endpoint    string        `yaml:"endpoint"`
	Insecure    bool          `yaml:"insecure"`
	Timeout     time.Duration `yaml:"timeout"`
	ServiceName string        `yaml:"service_name"`
}

// StorageConfig contains span record storage configuration.
type StorageConfig struct {
	// Backend selects the storage implementation: "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path.
	Path string `yaml:"path"`
}

// RetentionConfig contains span record retention configuration.
type RetentionConfig struct {
	// MaxAge is how long to keep span records. Zero keeps them forever.
	MaxAge time.Duration `yaml:"max_age"`

	// MaxRecords caps the record count. Zero means unlimited.
	MaxRecords int64 `yaml:"max_records"`

	// PruneSchedule is a cron expression; empty disables scheduled
	// pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}
