package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected defaults to validate, got: %v", err)
	}
}

func TestValidate_MissingContext(t *testing.T) {
	cfg := validConfig()
	cfg.Context = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing context")
	}
	if !strings.Contains(err.Error(), "context") {
		t.Errorf("expected context error, got: %v", err)
	}
}

func TestValidate_RegistryBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Registry.TombstoneTTL = -time.Second
	cfg.Registry.SweepInterval = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected registry validation errors")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got: %v", err)
	}
	if len(verr.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(verr.Errors), verr)
	}
}

func TestValidate_LoggingLevelAndFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	cfg.Logging.Format = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected logging validation errors")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("expected logging.level error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "logging.format") {
		t.Errorf("expected logging.format error, got: %v", err)
	}
}

func TestValidate_MetricsRequiresListenAddress(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddress = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for enabled metrics without listen address")
	}
	if !strings.Contains(err.Error(), "metrics.listen_address") {
		t.Errorf("expected metrics.listen_address error, got: %v", err)
	}
}

func TestValidate_ExportRequiresEndpointWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Export.Enabled = true
	cfg.Export.Endpoint = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for enabled export without endpoint")
	}
	if !strings.Contains(err.Error(), "export.endpoint") {
		t.Errorf("expected export.endpoint error, got: %v", err)
	}
}

func TestValidate_ExportDisabledSkipsChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Export.Enabled = false
	cfg.Export.Endpoint = ""
	cfg.Export.Timeout = 0
	cfg.Export.ServiceName = ""

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected disabled export to skip validation, got: %v", err)
	}
}

func TestValidate_SQLiteRequiresPath(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Path = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for sqlite backend without path")
	}
	if !strings.Contains(err.Error(), "storage.path") {
		t.Errorf("expected storage.path error, got: %v", err)
	}
}

func TestValidate_UnknownStorageBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Backend = "redis"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), "storage.backend") {
		t.Errorf("expected storage.backend error, got: %v", err)
	}
}

func TestValidate_InvalidPruneSchedule(t *testing.T) {
	cfg := validConfig()
	cfg.Retention.PruneSchedule = "every 5 minutes"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	if !strings.Contains(err.Error(), "retention.prune_schedule") {
		t.Errorf("expected retention.prune_schedule error, got: %v", err)
	}
}

func TestValidationError_MultiErrorFormat(t *testing.T) {
	err := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "first"},
		{Field: "b", Message: "second"},
	}}

	msg := err.Error()
	if !strings.Contains(msg, "2 errors") {
		t.Errorf("expected error count in message, got: %q", msg)
	}
	if !strings.Contains(msg, "a: first") || !strings.Contains(msg, "b: second") {
		t.Errorf("expected both field errors in message, got: %q", msg)
	}
}
