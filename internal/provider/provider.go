// Package provider defines the exchange-agnostic contracts that the
// connectivity runtime programs against. One concrete exchange
// implementation (internal/binance) satisfies both interfaces today;
// additional exchanges are future variants behind the same contracts.
package provider

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/0xtitan6/cryptoconnect/internal/binance/models"
)

// MarketProvider is the public-data side of an exchange connection: REST
// snapshots plus broadcast subscriptions for streaming updates.
type MarketProvider interface {
	Init(ctx context.Context) error

	GetKlines(ctx context.Context, symbol string, interval models.KlineInterval, limit int) ([]models.Kline, error)
	GetTrades(ctx context.Context, symbol string, limit int) ([]models.AggTrade, error)
	GetDepth(ctx context.Context, symbol string, limit int) (models.DepthSnapshot, error)
	GetTicker24hr(ctx context.Context, symbol string) (models.Ticker24hr, error)
	GetExchangeInfo(ctx context.Context) (models.ExchangeInfo, error)

	SubscribeKline(symbol string, interval models.KlineInterval) (<-chan models.Kline, func())
	SubscribeTrade(symbol string) (<-chan models.AggTrade, func())
	SubscribeDepth(symbol string) (<-chan models.DepthUpdate, func())
	SubscribeTicker(symbol string) (<-chan models.Ticker24hr, func())

	Close() error
}

// TradeEventKind tags the variant carried by a TradeEvent.
type TradeEventKind int

const (
	TradeEventOrder TradeEventKind = iota
	TradeEventTrade
	TradeEventBalance
)

// TradeEvent is the tagged union pushed by a TradeProvider's single
// subscription: an order update, a fill, or an account balance change.
// Exactly one of Order/Trade/Account is set, selected by Kind.
type TradeEvent struct {
	Kind    TradeEventKind
	Order   *models.Order
	Trade   *models.UserTrade
	Account *models.AccountUpdate
}

// TradeProvider is the authenticated, order-management side of an exchange
// connection.
type TradeProvider interface {
	Init(ctx context.Context) error

	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (models.Order, error)
	CancelOrder(ctx context.Context, symbol string, exchangeOrderID uint64) (models.Order, error)
	GetOrder(ctx context.Context, symbol string, exchangeOrderID uint64) (models.Order, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]models.Order, error)
	GetAllOrders(ctx context.Context, symbol string, limit int) ([]models.Order, error)
	GetUserTrades(ctx context.Context, symbol string, limit int) ([]models.UserTrade, error)
	GetAccount(ctx context.Context) (models.Account, error)

	// Subscribe returns the single stream of order/trade/balance events for
	// the authenticated account.
	Subscribe() (<-chan TradeEvent, func())

	Close() error
}

// PlaceOrderRequest is the normalized order-placement request shape, ahead
// of exchange-specific wire encoding.
type PlaceOrderRequest struct {
	Symbol        string
	Side          models.OrderSide
	Type          models.OrderType
	TimeInForce   models.TimeInForce
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	ClientOrderID string
}
