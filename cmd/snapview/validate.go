package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/snapview/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a SnapView configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  snapview validate -c snapview.yaml
  snapview validate --config /etc/snapview/snapview.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	auth := "none"
	if cfg.Stream.Username != "" {
		auth = "basic (" + cfg.Stream.Username + ")"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:      %d\n", cfg.Port)
	fmt.Fprintf(out, "  Mode:      %s\n", cfg.Mode)
	fmt.Fprintf(out, "  URL:       %s\n", cfg.Stream.URL)
	fmt.Fprintf(out, "  Interval:  %s\n", cfg.Stream.Interval.Duration())
	fmt.Fprintf(out, "  Autostart: %t\n", cfg.Stream.Autostart)
	fmt.Fprintf(out, "  Auth:      %s\n", auth)

	return nil
}
