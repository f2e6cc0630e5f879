package config

import "time"

// Default configuration values.
const (
	DefaultContext       = "default"
	DefaultTombstoneTTL  = 30 * time.Second
	DefaultSweepInterval = 30 * time.Second
	DefaultBusWorkers    = 4
	DefaultBusQueueSize  = 1024
	DefaultListenAddress = "127.0.0.1:9464"
	DefaultStoragePath   = "data/spans.db"
	DefaultMaxAge        = 7 * 24 * time.Hour
	DefaultPruneSchedule = "*/30 * * * *"
	DefaultOTLPEndpoint  = "localhost:4317"
	DefaultOTLPTimeout   = 10 * time.Second
	DefaultServiceName   = "witness"
)

// ApplyDefaults fills unset fields with default values. It never
// overrides an explicitly configured value.
func ApplyDefaults(cfg *Config) {
	if cfg.Context == "" {
		cfg.Context = DefaultContext
	}

	if cfg.Registry.TombstoneTTL == 0 {
		cfg.Registry.TombstoneTTL = DefaultTombstoneTTL
	}
	if cfg.Registry.SweepInterval == 0 {
		cfg.Registry.SweepInterval = DefaultSweepInterval
	}

	if cfg.Bus.Workers == 0 {
		cfg.Bus.Workers = DefaultBusWorkers
	}
	if cfg.Bus.QueueSize == 0 {
		cfg.Bus.QueueSize = DefaultBusQueueSize
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = DefaultListenAddress
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "witness"
	}

	if cfg.Export.Endpoint == "" {
		cfg.Export.Endpoint = DefaultOTLPEndpoint
	}
	if cfg.Export.Timeout == 0 {
		cfg.Export.Timeout = DefaultOTLPTimeout
	}
	if cfg.Export.ServiceName == "" {
		cfg.Export.ServiceName = DefaultServiceName
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}

	if cfg.Retention.MaxAge == 0 {
		cfg.Retention.MaxAge = DefaultMaxAge
	}
	if cfg.Retention.PruneSchedule == "" {
		cfg.Retention.PruneSchedule = DefaultPruneSchedule
	}
}
