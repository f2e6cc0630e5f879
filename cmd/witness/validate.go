package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systemic-engineering/witness/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the runtime.

Defaults and environment variable overrides (WITNESS_*) are applied
before validation, matching what "witness run" would use.

Examples:
  # Validate the default config file
  witness validate

  # Validate a specific file
  witness validate --config /etc/witness/witness.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ Configuration invalid (%d errors):\n", len(verr.Errors))
			for _, fe := range verr.Errors {
				fmt.Printf("  - %s\n", fe.Error())
			}
			return fmt.Errorf("validation failed")
		}
		return err
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  Context:        %s\n", cfg.Context)
	fmt.Printf("  Tombstone TTL:  %s\n", cfg.Registry.TombstoneTTL)
	fmt.Printf("  Sweep interval: %s\n", cfg.Registry.SweepInterval)
	fmt.Printf("  Storage:        %s\n", cfg.Storage.Backend)
	if cfg.Metrics.Enabled {
		fmt.Printf("  Metrics:        %s\n", cfg.Metrics.ListenAddress)
	}
	if cfg.Export.Enabled {
		fmt.Printf("  OTLP export:    %s\n", cfg.Export.Endpoint)
	}
	return nil
}
