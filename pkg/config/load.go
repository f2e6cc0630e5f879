package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention WITNESS_SECTION_FIELD (e.g., WITNESS_REGISTRY_TOMBSTONE_TTL)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format WITNESS_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("WITNESS_CONTEXT"); val != "" {
		cfg.Context = val
	}

	// Registry overrides
	if val := os.Getenv("WITNESS_REGISTRY_TOMBSTONE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Registry.TombstoneTTL = d
		}
	}
	if val := os.Getenv("WITNESS_REGISTRY_SWEEP_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Registry.SweepInterval = d
		}
	}

	// Bus overrides
	if val := os.Getenv("WITNESS_BUS_WORKERS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Bus.Workers = i
		}
	}
	if val := os.Getenv("WITNESS_BUS_QUEUE_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Bus.QueueSize = i
		}
	}

	// Logging overrides
	if val := os.Getenv("WITNESS_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("WITNESS_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("WITNESS_LOGGING_ADD_SOURCE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Logging.AddSource = b
		}
	}

	// Metrics overrides
	if val := os.Getenv("WITNESS_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("WITNESS_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Metrics.ListenAddress = val
	}
	if val := os.Getenv("WITNESS_METRICS_NAMESPACE"); val != "" {
		cfg.Metrics.Namespace = val
	}

	// Export overrides
	if val := os.Getenv("WITNESS_EXPORT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Export.Enabled = b
		}
	}
	if val := os.Getenv("WITNESS_EXPORT_ENDPOINT"); val != "" {
		cfg.Export.Endpoint = val
	}
	if val := os.Getenv("WITNESS_EXPORT_INSECURE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Export.Insecure = b
		}
	}
	if val := os.Getenv("WITNESS_EXPORT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Export.Timeout = d
		}
	}
	if val := os.Getenv("WITNESS_EXPORT_SERVICE_NAME"); val != "" {
		cfg.Export.ServiceName = val
	}

	// Storage overrides
	if val := os.Getenv("WITNESS_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("WITNESS_STORAGE_PATH"); val != "" {
		cfg.Storage.Path = val
	}

	// Retention overrides
	if val := os.Getenv("WITNESS_RETENTION_MAX_AGE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Retention.MaxAge = d
		}
	}
	if val := os.Getenv("WITNESS_RETENTION_MAX_RECORDS"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Retention.MaxRecords = i
		}
	}
	if val := os.Getenv("WITNESS_RETENTION_PRUNE_SCHEDULE"); val != "" {
		cfg.Retention.PruneSchedule = val
	}
}
