// Package binance implements the market-connectivity and trading provider
// interfaces (internal/provider) against Binance Spot's REST and WebSocket
// APIs.
package binance

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/0xtitan6/cryptoconnect/internal/binance/models"
	"github.com/0xtitan6/cryptoconnect/internal/book"
	"github.com/0xtitan6/cryptoconnect/internal/config"
	"github.com/0xtitan6/cryptoconnect/internal/errs"
	"github.com/0xtitan6/cryptoconnect/internal/fanout"
	"github.com/0xtitan6/cryptoconnect/internal/ratelimit"
	"github.com/0xtitan6/cryptoconnect/internal/tradeagg"
	"github.com/0xtitan6/cryptoconnect/internal/wsclient"
)

const (
	defaultTradeMaxLive      = 512
	defaultTradeOverloadFrac = 2
	defaultTradeMaxArchived  = 10_000
)

// MarketProvider implements provider.MarketProvider against Binance Spot.
type MarketProvider struct {
	cfg    *config.MarketConfig
	rest   *RESTClient
	ws     *wsclient.Session
	logger *slog.Logger

	mu     sync.RWMutex
	books  map[string]*book.Engine
	trades map[string]*tradeagg.Aggregator

	klineSubs  map[string]*fanout.Broadcaster[models.Kline]
	tradeSubs  map[string]*fanout.Broadcaster[models.AggTrade]
	depthSubs  map[string]*fanout.Broadcaster[models.DepthUpdate]
	tickerSubs map[string]*fanout.Broadcaster[models.Ticker24hr]
}

// NewMarketProvider builds a MarketProvider from a market's configuration.
// No network calls happen until Init.
func NewMarketProvider(cfg *config.MarketConfig, logger *slog.Logger) *MarketProvider {
	limits := buildLimiterGroup(cfg.APIRateLimits)
	signer := NewSigner(cfg.APIKey, cfg.SecretKey)

	return &MarketProvider{
		cfg:        cfg,
		rest:       NewRESTClient(cfg.APIBaseURL, signer, limits, cfg.APITimeout),
		logger:     logger,
		books:      make(map[string]*book.Engine),
		trades:     make(map[string]*tradeagg.Aggregator),
		klineSubs:  make(map[string]*fanout.Broadcaster[models.Kline]),
		tradeSubs:  make(map[string]*fanout.Broadcaster[models.AggTrade]),
		depthSubs:  make(map[string]*fanout.Broadcaster[models.DepthUpdate]),
		tickerSubs: make(map[string]*fanout.Broadcaster[models.Ticker24hr]),
	}
}

func buildLimiterGroup(rules []config.RateLimitRule) *ratelimit.Group {
	limiters := make([]*ratelimit.Limiter, 0, len(rules))
	for _, r := range rules {
		limiters = append(limiters, ratelimit.New(time.Duration(r.WindowMillis)*time.Millisecond, r.MaxWeight))
	}
	return ratelimit.NewGroup(limiters...)
}

// Init seeds each configured symbol's order book from REST and creates an
// empty trade aggregator for it, then opens the combined market-data
// WebSocket stream subscribed to every configured symbol/interval.
func (p *MarketProvider) Init(ctx context.Context) error {
	const op = "binance.MarketProvider.Init"

	var streams []string
	for _, symbol := range p.cfg.SubscribedSymbols {
		lower := toLowerSymbol(symbol)

		p.mu.Lock()
		p.books[symbol] = book.New(symbol)
		p.trades[symbol] = tradeagg.New(symbol, defaultTradeMaxLive, defaultTradeOverloadFrac, defaultTradeMaxArchived)
		p.klineSubs[symbol] = fanout.New[models.Kline](p.cfg.KlineEventChannelCapacity)
		p.tradeSubs[symbol] = fanout.New[models.AggTrade](p.cfg.TradeEventChannelCapacity)
		p.depthSubs[symbol] = fanout.New[models.DepthUpdate](p.cfg.DepthEventChannelCapacity)
		p.tickerSubs[symbol] = fanout.New[models.Ticker24hr](p.cfg.TickerEventChannelCapacity)
		p.mu.Unlock()

		snapshot, err := p.GetDepth(ctx, symbol, 1000)
		if err != nil {
			return errs.Network(op, err, "seed depth for %s", symbol)
		}
		if err := p.books[symbol].Seed(snapshot); err != nil {
			return errs.Protocol(op, "seed book for %s: %v", symbol, err)
		}

		streams = append(streams, lower+"@depth@100ms", lower+"@aggTrade", lower+"@ticker")
		for _, interval := range p.cfg.SubscribedKlineIntervals {
			streams = append(streams, lower+"@kline_"+interval)
		}
	}

	p.ws = wsclient.New(p.cfg.StreamBaseURL+"/ws", wsclient.ExtractJSONID, p.dispatch, p.logger)
	p.ws.AddRecipeStep(map[string]any{
		"method": "SUBSCRIBE",
		"params": streams,
		"id":     1,
	})

	go func() {
		if err := p.ws.Run(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("market stream terminated", "error", err)
		}
	}()

	return nil
}

func toLowerSymbol(symbol string) string {
	out := make([]byte, len(symbol))
	for i := 0; i < len(symbol); i++ {
		c := symbol[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// dispatch routes an unsolicited combined-stream push frame to the right
// book/aggregator/broadcaster by its embedded event type.
func (p *MarketProvider) dispatch(ctx context.Context, raw []byte) {
	var envelope struct {
		Stream string          `json:"stream"`
		Data   json.RawMessage `json:"data"`
	}
	payload := raw
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		payload = envelope.Data
	}

	var tag struct {
		EventType string `json:"e"`
	}
	if err := json.Unmarshal(payload, &tag); err != nil {
		p.logger.Warn("market stream: undecodable frame", "error", err)
		return
	}

	switch tag.EventType {
	case "depthUpdate":
		var w depthUpdateWire
		if err := json.Unmarshal(payload, &w); err != nil {
			return
		}
		update := w.toModel()
		p.mu.RLock()
		engine, ok := p.books[update.Symbol]
		sub := p.depthSubs[update.Symbol]
		p.mu.RUnlock()
		if !ok {
			return
		}
		if err := engine.ApplyDiff(update); err != nil {
			if errs.IsState(err, errs.StateGap) {
				p.logger.Warn("order book gap detected, re-seeding", "symbol", update.Symbol)
				if snap, reerr := p.GetDepth(ctx, update.Symbol, 1000); reerr == nil {
					_ = engine.Seed(snap)
				}
			}
			return
		}
		if sub != nil {
			sub.Publish(update)
		}
	case "aggTrade":
		var w aggTradeWire
		if err := json.Unmarshal(payload, &w); err != nil {
			return
		}
		trade := w.toModel()
		p.mu.RLock()
		agg, ok := p.trades[trade.Symbol]
		sub := p.tradeSubs[trade.Symbol]
		p.mu.RUnlock()
		if !ok {
			return
		}
		if filled, err := agg.Update(trade); err == nil && filled && sub != nil {
			sub.Publish(trade)
		}
	case "kline":
		var w klineEventWire
		if err := json.Unmarshal(payload, &w); err != nil {
			return
		}
		kline := w.Kline.toModel()
		p.mu.RLock()
		sub := p.klineSubs[kline.Symbol]
		p.mu.RUnlock()
		if sub != nil {
			sub.Publish(kline)
		}
	case "24hrTicker":
		var w tickerWire
		if err := json.Unmarshal(payload, &w); err != nil {
			return
		}
		ticker := w.toModel()
		p.mu.RLock()
		sub := p.tickerSubs[ticker.Symbol]
		p.mu.RUnlock()
		if sub != nil {
			sub.Publish(ticker)
		}
	}
}

// GetKlines fetches recent candles over REST.
func (p *MarketProvider) GetKlines(ctx context.Context, symbol string, interval models.KlineInterval, limit int) ([]models.Kline, error) {
	params := url.Values{"symbol": {symbol}, "interval": {string(interval)}, "limit": {strconv.Itoa(limit)}}
	var out []klinePayloadWire
	if err := p.rest.Get(ctx, "/api/v3/klines", params, 2, &out); err != nil {
		return nil, err
	}
	klines := make([]models.Kline, 0, len(out))
	for _, w := range out {
		w.Symbol = symbol
		klines = append(klines, w.toModel())
	}
	return klines, nil
}

// GetTrades fetches recent aggregate trades over REST.
func (p *MarketProvider) GetTrades(ctx context.Context, symbol string, limit int) ([]models.AggTrade, error) {
	params := url.Values{"symbol": {symbol}, "limit": {strconv.Itoa(limit)}}
	var out []aggTradeWire
	if err := p.rest.Get(ctx, "/api/v3/aggTrades", params, 2, &out); err != nil {
		return nil, err
	}
	trades := make([]models.AggTrade, 0, len(out))
	for _, w := range out {
		w.Symbol = symbol
		trades = append(trades, w.toModel())
	}
	return trades, nil
}

// GetDepth fetches a full order book snapshot over REST.
func (p *MarketProvider) GetDepth(ctx context.Context, symbol string, limit int) (models.DepthSnapshot, error) {
	params := url.Values{"symbol": {symbol}, "limit": {strconv.Itoa(limit)}}
	var out depthSnapshotWire
	if err := p.rest.Get(ctx, "/api/v3/depth", params, 10, &out); err != nil {
		return models.DepthSnapshot{}, err
	}
	return out.toModel(symbol, time.Now().UnixMilli()), nil
}

// GetTicker24hr fetches the rolling 24h stats for a symbol over REST.
func (p *MarketProvider) GetTicker24hr(ctx context.Context, symbol string) (models.Ticker24hr, error) {
	params := url.Values{"symbol": {symbol}}
	var out tickerWire
	if err := p.rest.Get(ctx, "/api/v3/ticker/24hr", params, 2, &out); err != nil {
		return models.Ticker24hr{}, err
	}
	out.Symbol = symbol
	return out.toModel(), nil
}

// GetExchangeInfo fetches trading rules for all symbols over REST.
func (p *MarketProvider) GetExchangeInfo(ctx context.Context) (models.ExchangeInfo, error) {
	var out exchangeInfoWire
	if err := p.rest.Get(ctx, "/api/v3/exchangeInfo", nil, 20, &out); err != nil {
		return models.ExchangeInfo{}, err
	}
	return out.toModel(), nil
}

// SubscribeKline returns a broadcast subscription of kline closes/updates
// for symbol. Klines of every subscribed interval for that symbol are
// delivered; interval does not filter them.
func (p *MarketProvider) SubscribeKline(symbol string, interval models.KlineInterval) (<-chan models.Kline, func()) {
	p.mu.RLock()
	sub := p.klineSubs[symbol]
	p.mu.RUnlock()
	if sub == nil {
		sub = fanout.New[models.Kline](p.cfg.KlineEventChannelCapacity)
	}
	return sub.Subscribe()
}

// SubscribeTrade returns a broadcast subscription of aggregate trade prints
// for symbol.
func (p *MarketProvider) SubscribeTrade(symbol string) (<-chan models.AggTrade, func()) {
	p.mu.RLock()
	sub := p.tradeSubs[symbol]
	p.mu.RUnlock()
	if sub == nil {
		sub = fanout.New[models.AggTrade](p.cfg.TradeEventChannelCapacity)
	}
	return sub.Subscribe()
}

// SubscribeDepth returns a broadcast subscription of order book diffs
// (post-reconciliation) for symbol.
func (p *MarketProvider) SubscribeDepth(symbol string) (<-chan models.DepthUpdate, func()) {
	p.mu.RLock()
	sub := p.depthSubs[symbol]
	p.mu.RUnlock()
	if sub == nil {
		sub = fanout.New[models.DepthUpdate](p.cfg.DepthEventChannelCapacity)
	}
	return sub.Subscribe()
}

// SubscribeTicker returns a broadcast subscription of 24h ticker pushes for
// symbol.
func (p *MarketProvider) SubscribeTicker(symbol string) (<-chan models.Ticker24hr, func()) {
	p.mu.RLock()
	sub := p.tickerSubs[symbol]
	p.mu.RUnlock()
	if sub == nil {
		sub = fanout.New[models.Ticker24hr](p.cfg.TickerEventChannelCapacity)
	}
	return sub.Subscribe()
}

// Book returns the reconciled order book engine for symbol, or nil if it
// was not configured.
func (p *MarketProvider) Book(symbol string) *book.Engine {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.books[symbol]
}

// TradeHistory returns the trade aggregator for symbol, or nil if it was
// not configured.
func (p *MarketProvider) TradeHistory(symbol string) *tradeagg.Aggregator {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.trades[symbol]
}

// Close closes the market-data WebSocket connection and every broadcaster.
// The session's Run loop stops only when the ctx passed to Init is
// cancelled; until then it reconnects.
func (p *MarketProvider) Close() error {
	if p.ws != nil {
		_ = p.ws.Close()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.klineSubs {
		sub.Close()
	}
	for _, sub := range p.tradeSubs {
		sub.Close()
	}
	for _, sub := range p.depthSubs {
		sub.Close()
	}
	for _, sub := range p.tickerSubs {
		sub.Close()
	}
	return nil
}
