package binance

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"

	"go.etcd.io/bbolt"

	"github.com/0xtitan6/cryptoconnect/internal/binance/models"
	"github.com/0xtitan6/cryptoconnect/internal/config"
	"github.com/0xtitan6/cryptoconnect/internal/errs"
	"github.com/0xtitan6/cryptoconnect/internal/fanout"
	"github.com/0xtitan6/cryptoconnect/internal/provider"
	"github.com/0xtitan6/cryptoconnect/internal/tradestate"
)

// TradeProvider implements provider.TradeProvider against Binance Spot's
// authenticated REST endpoints and user-data stream, reconciling every
// response and push through an internal/tradestate.Store.
type TradeProvider struct {
	cfg    *config.MarketConfig
	rest   *RESTClient
	store  *tradestate.Store
	stream *userStream
	events *fanout.Broadcaster[provider.TradeEvent]
	logger *slog.Logger
}

// NewTradeProvider builds a TradeProvider. db is the already-open bbolt
// database the caller manages (typically one per configured market).
func NewTradeProvider(cfg *config.MarketConfig, db *bbolt.DB, logger *slog.Logger) (*TradeProvider, error) {
	const op = "binance.NewTradeProvider"

	store, err := tradestate.Open(db)
	if err != nil {
		return nil, errs.Storage(op, err, "open trading state store")
	}

	limits := buildLimiterGroup(cfg.StreamAPIRateLimits)
	signer := NewSigner(cfg.APIKey, cfg.SecretKey)
	events := fanout.New[provider.TradeEvent](cfg.OrderEventChannelCapacity)

	tp := &TradeProvider{
		cfg:    cfg,
		rest:   NewRESTClient(cfg.APIBaseURL, signer, limits, cfg.APITimeout),
		store:  store,
		events: events,
		logger: logger,
	}
	tp.stream = newUserStream(cfg, tp.rest, tp.onUserDataEvent, logger)
	return tp, nil
}

// Init loads the account snapshot, opens the user-data stream, and starts
// the listen-key keepalive loop.
func (t *TradeProvider) Init(ctx context.Context) error {
	const op = "binance.TradeProvider.Init"

	account, err := t.GetAccount(ctx)
	if err != nil {
		return errs.Network(op, err, "initial account snapshot")
	}
	if err := t.store.SetAccount(account); err != nil {
		return errs.Storage(op, err, "persist initial account snapshot")
	}

	return t.stream.start(ctx)
}

func (t *TradeProvider) onUserDataEvent(ctx context.Context, raw []byte) {
	var tag struct {
		EventType string `json:"e"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return
	}

	var w userDataEventWire
	if err := json.Unmarshal(raw, &w); err != nil {
		t.logger.Warn("user data stream: undecodable frame", "error", err)
		return
	}

	switch tag.EventType {
	case "executionReport":
		order := w.toOrder()
		if err := t.store.UpdateOrder(order); err != nil {
			t.logger.Warn("update order from execution report failed", "error", err)
		} else {
			t.events.Publish(provider.TradeEvent{Kind: provider.TradeEventOrder, Order: &order})
		}

		if w.TradeID != 0 {
			trade := w.toUserTrade()
			if err := t.store.UpdateTrade(trade); err != nil {
				t.logger.Warn("update trade from execution report failed", "error", err)
			} else {
				t.events.Publish(provider.TradeEvent{Kind: provider.TradeEventTrade, Trade: &trade})
			}
		}
	case "outboundAccountPosition":
		update := w.toAccountUpdate()
		if err := t.store.ApplyAccountUpdate(update); err != nil {
			t.logger.Warn("apply account update failed", "error", err)
			return
		}
		t.events.Publish(provider.TradeEvent{Kind: provider.TradeEventBalance, Account: &update})
	}
}

// PlaceOrder submits a new order and reconciles the acknowledgment into the
// trading state store.
func (t *TradeProvider) PlaceOrder(ctx context.Context, req provider.PlaceOrderRequest) (models.Order, error) {
	const op = "binance.TradeProvider.PlaceOrder"

	if !req.Price.IsZero() {
		if err := t.store.SetWantPriceByClientOrderID(req.ClientOrderID, req.Price); err != nil {
			return models.Order{}, errs.Storage(op, err, "record want price")
		}
	}

	params := url.Values{
		"symbol":           {req.Symbol},
		"side":             {string(req.Side)},
		"type":             {string(req.Type)},
		"quantity":         {req.Quantity.String()},
		"newClientOrderId": {req.ClientOrderID},
	}
	if req.Type == models.OrderTypeLimit || req.Type == models.OrderTypeLimitMaker {
		params.Set("price", req.Price.String())
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", string(req.TimeInForce))
	}

	var out orderWire
	if err := t.rest.SignedRequest(ctx, "POST", "/api/v3/order", params, 1, &out); err != nil {
		return models.Order{}, errs.Network(op, err, "place order")
	}

	order := out.toModel()
	if err := t.store.UpdateOrder(order); err != nil {
		return order, errs.Storage(op, err, "reconcile placed order")
	}
	return order, nil
}

// CancelOrder cancels an open order by its exchange order id.
func (t *TradeProvider) CancelOrder(ctx context.Context, symbol string, exchangeOrderID uint64) (models.Order, error) {
	const op = "binance.TradeProvider.CancelOrder"

	params := url.Values{"symbol": {symbol}, "orderId": {strconv.FormatUint(exchangeOrderID, 10)}}
	var out orderWire
	if err := t.rest.SignedRequest(ctx, "DELETE", "/api/v3/order", params, 1, &out); err != nil {
		return models.Order{}, errs.Network(op, err, "cancel order %d", exchangeOrderID)
	}

	order := out.toModel()
	if err := t.store.UpdateOrder(order); err != nil {
		return order, errs.Storage(op, err, "reconcile cancel")
	}
	return order, nil
}

// GetOrder fetches an order's current state over REST.
func (t *TradeProvider) GetOrder(ctx context.Context, symbol string, exchangeOrderID uint64) (models.Order, error) {
	params := url.Values{"symbol": {symbol}, "orderId": {strconv.FormatUint(exchangeOrderID, 10)}}
	var out orderWire
	if err := t.rest.SignedRequest(ctx, "GET", "/api/v3/order", params, 2, &out); err != nil {
		return models.Order{}, errs.Network("binance.TradeProvider.GetOrder", err, "order %d", exchangeOrderID)
	}
	return out.toModel(), nil
}

// GetOpenOrders fetches all open orders for a symbol over REST.
func (t *TradeProvider) GetOpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	params := url.Values{"symbol": {symbol}}
	var out []orderWire
	if err := t.rest.SignedRequest(ctx, "GET", "/api/v3/openOrders", params, 3, &out); err != nil {
		return nil, errs.Network("binance.TradeProvider.GetOpenOrders", err, "symbol %s", symbol)
	}
	orders := make([]models.Order, 0, len(out))
	for _, w := range out {
		orders = append(orders, w.toModel())
	}
	return orders, nil
}

// GetAllOrders fetches order history for a symbol over REST.
func (t *TradeProvider) GetAllOrders(ctx context.Context, symbol string, limit int) ([]models.Order, error) {
	params := url.Values{"symbol": {symbol}, "limit": {strconv.Itoa(limit)}}
	var out []orderWire
	if err := t.rest.SignedRequest(ctx, "GET", "/api/v3/allOrders", params, 10, &out); err != nil {
		return nil, errs.Network("binance.TradeProvider.GetAllOrders", err, "symbol %s", symbol)
	}
	orders := make([]models.Order, 0, len(out))
	for _, w := range out {
		orders = append(orders, w.toModel())
	}
	return orders, nil
}

// GetUserTrades fetches the authenticated account's fill history for a
// symbol over REST.
func (t *TradeProvider) GetUserTrades(ctx context.Context, symbol string, limit int) ([]models.UserTrade, error) {
	params := url.Values{"symbol": {symbol}, "limit": {strconv.Itoa(limit)}}
	var out []userTradeWire
	if err := t.rest.SignedRequest(ctx, "GET", "/api/v3/myTrades", params, 10, &out); err != nil {
		return nil, errs.Network("binance.TradeProvider.GetUserTrades", err, "symbol %s", symbol)
	}
	trades := make([]models.UserTrade, 0, len(out))
	for _, w := range out {
		trades = append(trades, w.toModel())
	}
	return trades, nil
}

// GetAccount fetches the authenticated account's balances over REST.
func (t *TradeProvider) GetAccount(ctx context.Context) (models.Account, error) {
	var out accountWire
	if err := t.rest.SignedRequest(ctx, "GET", "/api/v3/account", url.Values{}, 10, &out); err != nil {
		return models.Account{}, errs.Network("binance.TradeProvider.GetAccount", err, "account snapshot")
	}
	return out.toModel(), nil
}

// Subscribe returns the single tagged stream of order/trade/balance events
// for the authenticated account.
func (t *TradeProvider) Subscribe() (<-chan provider.TradeEvent, func()) {
	return t.events.Subscribe()
}

// Store exposes the underlying trading state store for read access (order
// lookups, want-price resolution) without going back over REST.
func (t *TradeProvider) Store() *tradestate.Store { return t.store }

// Close shuts down the user-data stream session and broadcaster.
func (t *TradeProvider) Close() error {
	t.stream.close()
	t.events.Close()
	return nil
}
