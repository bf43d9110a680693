package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansari-project/qiyas/internal/agent"
	"github.com/ansari-project/qiyas/internal/agent/providers"
	"github.com/ansari-project/qiyas/internal/config"
	"github.com/ansari-project/qiyas/internal/httpapi"
	"github.com/ansari-project/qiyas/internal/models"
	"github.com/ansari-project/qiyas/internal/observability"
	"github.com/ansari-project/qiyas/internal/orchestrator"
	"github.com/ansari-project/qiyas/internal/sessions"
	"github.com/ansari-project/qiyas/internal/sse"
	"github.com/ansari-project/qiyas/internal/tools"
)

// runServe implements the serve command: load config, assemble the
// pipeline, serve until a shutdown signal.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Info("starting qiyas",
		"version", version,
		"commit", commit,
		"models", models.IDs(),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TraceConfig{
		ServiceName:    "qiyas",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	metrics := observability.NewMetrics()

	adapters, err := providers.BuildAdapters(ctx, providers.Config{
		AnthropicAPIKey: cfg.Vendors.AnthropicAPIKey,
		GoogleAPIKey:    cfg.Vendors.GoogleAPIKey,
		MaxOutputTokens: cfg.Stream.MaxOutputTokens,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build model adapters: %w", err)
	}

	kalimat := tools.NewClient(tools.ClientConfig{
		APIKey:  cfg.Tools.KalimatAPIKey,
		BaseURL: cfg.Tools.KalimatURL,
		Timeout: cfg.Tools.Timeout,
		Logger:  logger,
	})
	registry := agent.NewToolRegistry(
		tools.NewQuranSearch(kalimat),
		tools.NewHadithSearch(kalimat),
		tools.NewMawsuahSearch(kalimat),
	)

	store := sessions.NewStore(sessions.StoreConfig{
		MaxSessions:      cfg.Session.MaxSessions,
		TTL:              cfg.Session.TTL,
		MaxHistoryTurns:  cfg.Session.MaxHistoryTurns,
		MaxHistoryTokens: cfg.Session.MaxHistoryTokens,
		Metrics:          metrics,
	})
	reaper, err := sessions.NewReaper(store, cfg.Session.ReapInterval, logger)
	if err != nil {
		return fmt.Errorf("session reaper: %w", err)
	}
	reaper.Start(ctx)
	defer reaper.Stop()

	orch := orchestrator.New(orchestrator.Config{
		Adapters:        adapters,
		Tools:           registry,
		StreamTimeout:   cfg.Stream.Timeout,
		HeartbeatPeriod: cfg.Stream.HeartbeatPeriod,
		Logger:          logger,
		Metrics:         metrics,
	})

	srv := httpapi.NewServer(httpapi.Config{
		Addr:            fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		AuthUsername:    cfg.Auth.Username,
		AuthPassword:    cfg.Auth.Password,
		MaxMessageBytes: cfg.Server.MaxMessageBytes,
		Store:           store,
		Orchestrator:    orch,
		Emitter:         sse.NewEmitter(logger, metrics),
		Logger:          logger,
		Metrics:         metrics,
	})

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("qiyas stopped gracefully")
	return nil
}
