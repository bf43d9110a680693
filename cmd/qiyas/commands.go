package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ansari-project/qiyas/internal/config"
	"github.com/ansari-project/qiyas/internal/models"
)

// buildServeCmd creates the "serve" command that starts the comparison
// server. This is the primary command for running qiyas in production.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the qiyas comparison server",
		Long: `Start the comparison server with the full model roster.

The server will:
1. Load configuration from the specified file, overlaid with environment
   variables
2. Build one streaming adapter per roster model (Gemini, Claude)
3. Register the Kalimat search tools (Quran, hadith, Mawsuah)
4. Serve the HTTP API: query staging, the SSE stream, and metrics

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with environment-only configuration
  qiyas serve

  # Start with a config file
  qiyas serve --config /etc/qiyas/production.yaml

  # Start with debug logging
  qiyas serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file (optional; env vars alone suffice)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(buildConfigSchemaCmd(), buildConfigValidateCmd())
	return cmd
}

func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON Schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.JSONSchema()
			if err != nil {
				return fmt.Errorf("generate schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return nil
		},
	}
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a configuration file and report problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

// buildModelsCmd creates the "models" command that prints the comparison
// roster.
func buildModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, m := range models.Roster() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-32s %-20s %s\n", m.ID, m.Provider, m.Name)
			}
			return nil
		},
	}
}
