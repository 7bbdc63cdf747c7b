package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleylabs/parley/internal/bus"
	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/docs"
	"github.com/parleylabs/parley/internal/gateway"
	"github.com/parleylabs/parley/internal/logging"
	"github.com/parleylabs/parley/internal/mcp"
	"github.com/parleylabs/parley/internal/providers"
	"github.com/parleylabs/parley/internal/sessions"
	"github.com/parleylabs/parley/internal/tools"
	"github.com/parleylabs/parley/internal/tracing"
	"github.com/parleylabs/parley/pkg/protocol"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway (browser UI, WebSocket protocol, HTTP API)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logLevel := cfg.Logging.Level
	if verboseFlag {
		logLevel = "debug"
	}
	closeLogs, err := logging.Setup(logging.Options{
		Level:   logLevel,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer closeLogs()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := providers.New(providerOptions(cfg))
	if err != nil {
		return err
	}

	var index *docs.Index
	if cfg.Docs.Manifest != "" {
		index, err = docs.Open(cfg.Docs.Manifest)
		if err != nil {
			slog.Warn("docs index unavailable, search_documents will report no collections",
				"manifest", cfg.Docs.Manifest, "error", err)
			index = nil
		} else {
			defer index.Close()
			slog.Info("docs index loaded",
				"collections", index.Collections(), "passages", index.PassageCount())
		}
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, index); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	if cfg.Tools.MaxCallsPerHour > 0 {
		registry.SetRateLimiter(tools.NewToolRateLimiter(cfg.Tools.MaxCallsPerHour, time.Hour))
	}
	if cfg.Tools.Scrub != nil {
		registry.SetScrubbing(*cfg.Tools.Scrub)
	}
	if cfg.Tools.MaxResultChars > 0 {
		registry.SetMaxResultChars(cfg.Tools.MaxResultChars)
	}

	mcpServers := mcp.RegisterServers(ctx, registry, cfg.MCP.Servers)
	defer func() {
		for _, s := range mcpServers {
			if err := s.Close(); err != nil {
				slog.Warn("mcp server close", "server", s.Name(), "error", err)
			}
		}
	}()

	mgr, err := sessions.NewManager(cfg.Sessions.MaxSessions, cfg.Chat.SystemPrompt)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}

	tracer := tracing.NewCollector()
	tracer.Start()
	defer tracer.Stop()
	initOTelExporter(ctx, cfg, tracer)

	srv := gateway.NewServer(cfg, gateway.Deps{
		Provider: provider,
		Registry: registry,
		Sessions: mgr,
		Index:    index,
		Tracer:   tracer,
	})

	// Model settings are read per run, so a field copy is enough.
	// Provider, server, and tool changes need a restart.
	if watcher, werr := config.NewWatcher(cfgPath); werr == nil {
		watcher.OnChange(func(next *config.Config) {
			cfg.Provider.Model = next.Provider.Model
			cfg.Provider.Temperature = next.Provider.Temperature
			cfg.Chat.MaxIterations = next.Chat.MaxIterations
			slog.Info("applied config change",
				"model", next.Provider.Model,
				"temperature", next.Provider.Temperature,
				"max_iterations", next.Chat.MaxIterations)
			srv.Events().Broadcast(bus.Event{
				Kind: protocol.EventHealth,
				Payload: map[string]interface{}{
					"status": "ok",
					"model":  next.Provider.Model,
				},
			})
		})
		if err := watcher.Start(); err != nil {
			slog.Warn("config watcher failed to start", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	slog.Info("parley starting",
		"config", cfgPath,
		"provider", cfg.Provider.Name,
		"model", cfg.Provider.Model,
		"tools", registry.Count(),
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	)
	fmt.Fprintf(os.Stderr, "parley gateway on http://%s:%d (Ctrl+C to stop)\n", cfg.Server.Host, cfg.Server.Port)

	return srv.Start(ctx)
}

// providerOptions maps the config's provider section onto factory options.
func providerOptions(cfg *config.Config) providers.Options {
	return providers.Options{
		Name:       cfg.Provider.Name,
		APIKey:     cfg.Provider.APIKey,
		BaseURL:    cfg.Provider.BaseURL,
		Model:      cfg.Provider.Model,
		MaxRetries: cfg.Provider.MaxRetries,
		Timeout:    time.Duration(cfg.Provider.TimeoutSec) * time.Second,
	}
}
