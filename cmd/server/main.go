// DLOB server — rebuilds the decentralized limit order book from on-chain
// user accounts and serves read-only market data over HTTP.
//
// Architecture:
//
//	main.go              — entry point: config, logging, supervisor loop, SIGINT/SIGTERM
//	engine/engine.go     — orchestrator: wires provider → poller → venues → book builder
//	provider/            — user-account index: polling user map or push order subscriber
//	chain/               — slot source, oracle/vAMM views, the account poller
//	dlob/                — order nodes, book builder, L2/L3 aggregation, top makers
//	vamm/                — synthetic curve liquidity for perp markets
//	venue/               — Phoenix/Serum spot book mirrors for fallback liquidity
//	idl/                 — the chain program's binary account and order layouts
//	api/                 — HTTP surface: orders, l2, batchL2, l3, topMakers, probes
//
// The server is read-only: it signs nothing and sends no transactions. A
// failure anywhere in the subscription stack tears the engine down; the
// supervisor rebuilds everything from scratch after a fixed pause.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dlob-server/internal/api"
	"dlob-server/internal/config"
	"dlob-server/internal/engine"
)

// restartDelay is the fixed pause between engine rebuilds after a failure.
const restartDelay = 15 * time.Second

func main() {
	// Local development convenience; deployed environments set real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	logger.Info("dlob server starting",
		"env", cfg.Env,
		"port", cfg.Port,
		"use_websocket", cfg.UseWebsocket,
		"commit", cfg.Commit,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	supervise(ctx, cfg, logger)
}

// supervise runs the engine and HTTP server, rebuilding both from scratch
// whenever the engine dies. Every restart resubscribes and reseeds, so a
// wedged subscription never serves stale books forever.
func supervise(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := runOnce(ctx, cfg, logger); err != nil && ctx.Err() == nil {
			logger.Error("engine failed, restarting", "error", err, "delay", restartDelay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

func runOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(cfg, eng, eng.Registry(), logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()
	defer func() {
		if err := server.Stop(); err != nil {
			logger.Error("failed to stop http server", "error", err)
		}
	}()

	return eng.Run(runCtx)
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
