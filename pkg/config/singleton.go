package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// globalConfig holds the singleton configuration instance.
	globalConfig atomic.Pointer[Config]

	// initOnce ensures configuration is initialized only once.
	initOnce sync.Once
)

// Initialize loads configuration from the specified path with environment
// variable overrides and stores it as the global singleton. It should be
// called once at process startup; subsequent calls are ignored.
//
// Returns an error if configuration loading or validation fails.
func Initialize(path string) error {
	var initErr error

	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		globalConfig.Store(cfg)
	})

	return initErr
}

// GetConfig returns the global configuration, or nil if Initialize has
// not succeeded. Safe for concurrent use.
//
// Tests should prefer passing Config values explicitly over reading the
// singleton.
func GetConfig() *Config {
	return globalConfig.Load()
}

// SetConfig replaces the global configuration. Intended for tests; normal
// startup goes through Initialize.
func SetConfig(cfg *Config) {
	globalConfig.Store(cfg)
}

// ReloadConfig reloads configuration from path and swaps the global
// instance. The existing configuration stays in place when loading or
// validation fails, so a bad edit never takes down a running process.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	globalConfig.Store(cfg)
	return nil
}

// MustGetConfig returns the global configuration and panics if it has not
// been initialized. Reserve it for paths that run strictly after a
// successful startup; elsewhere use GetConfig and handle nil.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}
