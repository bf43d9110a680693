// Package main is the CLI entry point for the qiyas comparison server.
//
// Qiyas answers one question with four models at once: a prompt fans out to
// Gemini and Claude variants in parallel and the columns stream back
// side-by-side over SSE, tool calls included.
//
// # Basic Usage
//
// Start the server:
//
//	qiyas serve --config qiyas.yaml
//
// Print the configuration schema:
//
//	qiyas config schema
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key for the Claude models
//   - GOOGLE_API_KEY: Google API key for the Gemini models
//   - KALIMAT_API_KEY: Kalimat retrieval API key for the search tools
//   - MODEL_COMPARISON_AUTH_USERNAME / MODEL_COMPARISON_AUTH_PASSWORD:
//     shared Basic credential; an empty password disables auth
//   - PORT: HTTP listen port
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP gRPC collector for traces
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "qiyas",
		Short: "Qiyas - side-by-side LLM comparison server",
		Long: `Qiyas streams one prompt through four models in parallel and serves the
answers side-by-side over SSE, with Islamic knowledge search tools
(Quran, hadith, Mawsuah) available to every model.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildConfigCmd(),
		buildModelsCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "qiyas %s\ncommit: %s\nbuilt:  %s\n", version, commit, date)
		},
	}
}
