// Package config loads and validates the witness configuration: YAML file
// plus WITNESS_* environment overrides, with defaults applied before
// validation. A process-wide singleton with explicit init, replace, and
// reload exists for the daemon entrypoint; library consumers should pass
// Config values explicitly.
package config
