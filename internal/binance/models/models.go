// Package models defines the wire-level data types exchanged with Binance
// Spot: klines, tickers, depth, trades, orders, balances, and account
// state. Every price and quantity field is a decimal.Decimal — binary
// floats never represent money or size anywhere in this module.
package models

import (
	"github.com/shopspring/decimal"
)

// OrderSide is the exact wire value Binance expects for order.side.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderType is the exact wire value Binance expects for order.type.
type OrderType string

const (
	OrderTypeLimit           OrderType = "LIMIT"
	OrderTypeMarket          OrderType = "MARKET"
	OrderTypeStopLoss        OrderType = "STOP_LOSS"
	OrderTypeStopLossLimit   OrderType = "STOP_LOSS_LIMIT"
	OrderTypeTakeProfit      OrderType = "TAKE_PROFIT"
	OrderTypeTakeProfitLimit OrderType = "TAKE_PROFIT_LIMIT"
	OrderTypeLimitMaker      OrderType = "LIMIT_MAKER"
)

// OrderStatus is the exact wire value Binance expects/returns for order.status.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPendingNew      OrderStatus = "PENDING_NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusExpiredInMatch  OrderStatus = "EXPIRED_IN_MATCH"
)

// Terminal reports whether the status represents a final order state that
// will never transition further.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected,
		OrderStatusExpired, OrderStatusExpiredInMatch:
		return true
	default:
		return false
	}
}

// TimeInForce is the exact wire value Binance expects for order.timeInForce.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// KlineInterval is the exact wire value Binance expects for the kline
// stream/REST interval parameter.
type KlineInterval string

const (
	Interval1s  KlineInterval = "1s"
	Interval1m  KlineInterval = "1m"
	Interval3m  KlineInterval = "3m"
	Interval5m  KlineInterval = "5m"
	Interval15m KlineInterval = "15m"
	Interval30m KlineInterval = "30m"
	Interval1h  KlineInterval = "1h"
	Interval2h  KlineInterval = "2h"
	Interval4h  KlineInterval = "4h"
	Interval6h  KlineInterval = "6h"
	Interval8h  KlineInterval = "8h"
	Interval12h KlineInterval = "12h"
	Interval1d  KlineInterval = "1d"
	Interval3d  KlineInterval = "3d"
	Interval1w  KlineInterval = "1w"
	Interval1M  KlineInterval = "1M"
)

// Millis returns the interval's duration in milliseconds. 1M (one month)
// uses the 30-day convention, matching Binance's own kline bucketing.
func (k KlineInterval) Millis() int64 {
	switch k {
	case Interval1s:
		return 1000
	case Interval1m:
		return 60_000
	case Interval3m:
		return 3 * 60_000
	case Interval5m:
		return 5 * 60_000
	case Interval15m:
		return 15 * 60_000
	case Interval30m:
		return 30 * 60_000
	case Interval1h:
		return 3_600_000
	case Interval2h:
		return 2 * 3_600_000
	case Interval4h:
		return 4 * 3_600_000
	case Interval6h:
		return 6 * 3_600_000
	case Interval8h:
		return 8 * 3_600_000
	case Interval12h:
		return 12 * 3_600_000
	case Interval1d:
		return 86_400_000
	case Interval3d:
		return 3 * 86_400_000
	case Interval1w:
		return 7 * 86_400_000
	case Interval1M:
		return 30 * 86_400_000
	default:
		return 0
	}
}

// PriceLevel is one rung of an order book ladder.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Kline is one OHLCV candle.
type Kline struct {
	Symbol      string
	Interval    KlineInterval
	OpenTime    int64
	CloseTime   int64
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      decimal.Decimal
	QuoteVolume decimal.Decimal
	TradeCount  int64
	Closed      bool
}

// Ticker24hr is a rolling 24-hour statistics snapshot.
type Ticker24hr struct {
	Symbol             string
	PriceChange        decimal.Decimal
	PriceChangePercent decimal.Decimal
	LastPrice          decimal.Decimal
	HighPrice          decimal.Decimal
	LowPrice           decimal.Decimal
	Volume             decimal.Decimal
	QuoteVolume        decimal.Decimal
	OpenTime           int64
	CloseTime          int64
}

// AggTrade is one aggregated public trade print.
type AggTrade struct {
	Symbol       string
	AggTradeID   uint64
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	FirstTradeID uint64
	LastTradeID  uint64
	Timestamp    int64
	IsBuyerMaker bool
}

// DepthSnapshot is a full order-book snapshot as returned by the REST depth
// endpoint or a WS initial snapshot.
type DepthSnapshot struct {
	Symbol       string
	LastUpdateID uint64
	Bids         []PriceLevel
	Asks         []PriceLevel
	Timestamp    int64
}

// DepthUpdate is an incremental diff applied on top of a DepthSnapshot.
type DepthUpdate struct {
	Symbol        string
	FirstUpdateID uint64
	LastUpdateID  uint64
	Bids          []PriceLevel
	Asks          []PriceLevel
	Timestamp     int64
}

// SymbolStatus mirrors exchangeInfo.symbols[].status.
type SymbolStatus string

const (
	SymbolTrading  SymbolStatus = "TRADING"
	SymbolHalted   SymbolStatus = "HALT"
	SymbolBreak    SymbolStatus = "BREAK"
	SymbolEndOfDay SymbolStatus = "END_OF_DAY"
)

// SymbolInfo describes one tradeable symbol's trading rules.
type SymbolInfo struct {
	Symbol             string
	Status             SymbolStatus
	BaseAsset          string
	QuoteAsset         string
	TickSize           decimal.Decimal
	StepSize           decimal.Decimal
	MinNotional        decimal.Decimal
	MinQty             decimal.Decimal
	MaxQty             decimal.Decimal
}

// ExchangeInfo is the REST exchangeInfo response.
type ExchangeInfo struct {
	Symbols []SymbolInfo
}

// Order is one order's exchange-side state.
type Order struct {
	Symbol            string
	ExchangeOrderID   uint64
	ClientOrderID     string
	Side              OrderSide
	Type              OrderType
	Status            OrderStatus
	TimeInForce       TimeInForce
	Price             decimal.Decimal
	Quantity          decimal.Decimal
	ExecutedQuantity  decimal.Decimal
	CumulativeQuote   decimal.Decimal
	StopPrice         decimal.Decimal
	IcebergQuantity   decimal.Decimal
	CreateTime        int64
	UpdateTime        int64
}

// UserTrade is one fill against the authenticated account.
type UserTrade struct {
	Symbol          string
	TradeID         uint64
	ExchangeOrderID uint64
	Side            OrderSide
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
	IsMaker         bool
	Timestamp       int64
}

// Balance is a single asset's free/locked split.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Account is the authenticated account's current balances.
type Account struct {
	Balances   map[string]Balance
	CanTrade   bool
	UpdateTime int64
}

// AccountUpdate is a push from the user-data stream's outboundAccountPosition
// event: a partial balance delta, not a full account replace.
type AccountUpdate struct {
	Balances   []Balance
	UpdateTime int64
}
