// Package runtime is the central orchestrator of the connectivity runtime.
//
// It wires together, per configured market: a MarketProvider (REST +
// streaming order book/trade/kline/ticker data) and a TradeProvider (order
// management + the trading state store), each backed by its own embedded
// database file under the configured data directory.
//
// Lifecycle: New() -> Start() -> [runs until ctx is cancelled] -> Stop().
package runtime

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/0xtitan6/cryptoconnect/internal/binance"
	"github.com/0xtitan6/cryptoconnect/internal/config"
	"github.com/0xtitan6/cryptoconnect/internal/errs"
	"github.com/0xtitan6/cryptoconnect/internal/provider"
	"github.com/0xtitan6/cryptoconnect/internal/signing"
)

// marketSlot is one actively-connected exchange market: its market-data
// provider, trade provider, and the embedded database backing the trade
// provider's state store.
type marketSlot struct {
	name   string
	market *binance.MarketProvider
	trade  *binance.TradeProvider
	db     *bbolt.DB
	cancel context.CancelFunc
}

// Engine orchestrates every configured market's provider pair.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	slotsMu sync.RWMutex
	slots   map[string]*marketSlot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens the embedded database for every configured market and wires a
// MarketProvider/TradeProvider pair for each. No network calls happen until
// Start.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	const op = "runtime.New"

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:    cfg,
		logger: logger.With("component", "engine"),
		slots:  make(map[string]*marketSlot),
		ctx:    ctx,
		cancel: cancel,
	}

	for _, name := range cfg.Markets {
		mc, ok := cfg.MarketConfigs[name]
		if !ok {
			cancel()
			return nil, errs.Config(op, "missing market config for %s", name)
		}

		dbPath := filepath.Join(filepath.Dir(cfg.DBPath), name+".db")
		db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			cancel()
			return nil, errs.Storage(op, err, "open database for market %s at %s", name, dbPath)
		}

		e.logger.Info("configured market credential", "market", name, "api_key_fingerprint", signing.Fingerprint(mc.APIKey))

		marketProvider := binance.NewMarketProvider(mc, e.logger.With("market", name, "side", "market-data"))
		tradeProvider, err := binance.NewTradeProvider(mc, db, e.logger.With("market", name, "side", "trading"))
		if err != nil {
			db.Close()
			cancel()
			return nil, errs.Storage(op, err, "build trade provider for market %s", name)
		}

		e.slots[name] = &marketSlot{
			name:   name,
			market: marketProvider,
			trade:  tradeProvider,
			db:     db,
		}
	}

	return e, nil
}

// Start initializes every configured market's providers, launching their
// background streaming goroutines.
func (e *Engine) Start() error {
	const op = "runtime.Engine.Start"

	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()

	for name, slot := range e.slots {
		slotCtx, cancel := context.WithCancel(e.ctx)
		slot.cancel = cancel

		if err := slot.market.Init(slotCtx); err != nil {
			cancel()
			return errs.Network(op, err, "init market provider for %s", name)
		}
		if err := slot.trade.Init(slotCtx); err != nil {
			cancel()
			return errs.Network(op, err, "init trade provider for %s", name)
		}

		e.logger.Info("market started", "market", name)
	}

	return nil
}

// Stop cancels every market's context and closes its providers and
// database. It does not wait for the providers' background streaming
// goroutines to exit.
func (e *Engine) Stop() {
	e.logger.Info("shutting down")
	e.cancel()

	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()

	for name, slot := range e.slots {
		if slot.cancel != nil {
			slot.cancel()
		}
		if err := slot.market.Close(); err != nil {
			e.logger.Error("close market provider failed", "market", name, "error", err)
		}
		if err := slot.trade.Close(); err != nil {
			e.logger.Error("close trade provider failed", "market", name, "error", err)
		}
		if err := slot.db.Close(); err != nil {
			e.logger.Error("close database failed", "market", name, "error", err)
		}
	}

	e.wg.Wait()
	e.logger.Info("shutdown complete")
}

// Market returns the market-data provider for a configured market name, or
// nil if it is not configured.
func (e *Engine) Market(name string) *binance.MarketProvider {
	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()
	if slot, ok := e.slots[name]; ok {
		return slot.market
	}
	return nil
}

// Trade returns the trade provider for a configured market name, or nil if
// it is not configured.
func (e *Engine) Trade(name string) *binance.TradeProvider {
	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()
	if slot, ok := e.slots[name]; ok {
		return slot.trade
	}
	return nil
}

var _ provider.MarketProvider = (*binance.MarketProvider)(nil)
var _ provider.TradeProvider = (*binance.TradeProvider)(nil)
