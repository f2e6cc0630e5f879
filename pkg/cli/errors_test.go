package cli

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigError_WithAndWithoutPath(t *testing.T) {
	err := NewConfigError("witness.yaml", "missing context")
	if !strings.Contains(err.Error(), "witness.yaml") {
		t.Errorf("expected path in message, got %q", err.Error())
	}

	err = NewConfigError("", "missing context")
	if !strings.Contains(err.Error(), "missing context") {
		t.Errorf("expected message, got %q", err.Error())
	}
	if strings.Contains(err.Error(), " in ") {
		t.Errorf("expected no path segment, got %q", err.Error())
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewCommandError("run", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if !strings.Contains(err.Error(), "run") {
		t.Errorf("expected command name in message, got %q", err.Error())
	}
}
