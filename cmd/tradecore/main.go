// tradecore runs the event runtime: message bus, cache, tick-to-bar data
// engine, and order execution engine, wired together by internal/runtime.
//
//	main.go                  — entry point: loads config, starts the runtime, waits for SIGINT/SIGTERM
//	internal/runtime         — owns and lifecycle-manages every subsystem
//	internal/bus             — pub/sub + request/response message bus
//	internal/cache           — bounded LRU+TTL cache with snapshot persistence
//	internal/data            — tick ingestion and tick-to-bar aggregation
//	internal/execution       — order submission, fills, cancellation, routing
//	internal/adapters        — external ingress/egress boundary (polling tick adapter)
//	internal/introspection   — read-only stats HTTP+WebSocket server
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tradecore/internal/adapters"
	"tradecore/internal/config"
	"tradecore/internal/introspection"
	"tradecore/internal/runtime"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("TRADECORE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	rt, err := runtime.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create runtime", "error", err)
		os.Exit(1)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	if err := rt.Start(ctx); err != nil {
		logger.Error("failed to start runtime", "error", err)
		os.Exit(1)
	}

	var introServer *introspection.Server
	if cfg.Introspection.Enabled {
		introServer = introspection.NewServer(introspection.Config{
			Port:           cfg.Introspection.Port,
			AllowedOrigins: cfg.Introspection.AllowedOrigins,
		}, rt, logger)
		go func() {
			if err := introServer.Start(); err != nil {
				logger.Error("introspection server failed", "error", err)
			}
		}()
		logger.Info("introspection server started", "url", fmt.Sprintf("http://localhost:%d", cfg.Introspection.Port))
	}

	var poller *adapters.PollingTickAdapter
	if cfg.Adapters.PollURL != "" {
		poller = adapters.NewPollingTickAdapter(adapters.PollerConfig{
			URL:             cfg.Adapters.PollURL,
			Interval:        cfg.Adapters.PollInterval,
			RateLimitPerSec: cfg.Adapters.RateLimitPerSec,
		}, rt.Data, logger)
		go func() {
			if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("tick poller stopped", "error", err)
			}
		}()
	}

	logger.Info("tradecore runtime started", "trader_id", cfg.Trader.TraderID)

	<-ctx.Done()
	logger.Info("received shutdown signal")

	if introServer != nil {
		if err := introServer.Stop(); err != nil {
			logger.Error("failed to stop introspection server", "error", err)
		}
	}

	if err := rt.Stop(); err != nil {
		logger.Error("runtime stop reported an error", "error", err)
	}
	logger.Info("shutdown complete")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
