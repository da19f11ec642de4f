// cryptoconnect is a market-connectivity and execution runtime: order-book
// reconstruction, trade-state reconciliation, and rate-limited WebSocket
// sessions for a configured set of exchange markets.
//
// Architecture:
//
//	main.go                    — entry point: loads config, starts the engine, waits for SIGINT/SIGTERM
//	internal/runtime/engine.go — orchestrator: opens per-market storage, wires provider pairs
//	internal/binance           — Binance Spot MarketProvider/TradeProvider implementation
//	internal/book              — order-book reconstruction from REST snapshot + diff stream
//	internal/tradeagg          — aggregate-trade history with out-of-order tolerance
//	internal/tradestate        — persisted order/trade/account reconciliation
//	internal/ratelimit         — sliding-window weight-budget admission
//	internal/wsclient          — reconnecting WebSocket session with call correlation
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xtitan6/cryptoconnect/internal/config"
	"github.com/0xtitan6/cryptoconnect/internal/runtime"
)

func main() {
	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
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

	logger := newLogger(cfg.Logging)

	eng, err := runtime.New(cfg, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("cryptoconnect started", "markets", cfg.Markets)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
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
