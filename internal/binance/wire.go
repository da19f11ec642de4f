package binance

import (
	"github.com/shopspring/decimal"

	"github.com/0xtitan6/cryptoconnect/internal/binance/models"
)

// Wire-format structs for the Binance Spot REST/WS payloads this module
// consumes. decimal.Decimal unmarshals both quoted-string and bare-number
// JSON values, so a single struct works for the REST and WS shapes Binance
// uses for the same fields.

type priceLevelWire [2]decimal.Decimal

func (w priceLevelWire) toModel() models.PriceLevel {
	return models.PriceLevel{Price: w[0], Quantity: w[1]}
}

type depthSnapshotWire struct {
	LastUpdateID uint64           `json:"lastUpdateId"`
	Bids         []priceLevelWire `json:"bids"`
	Asks         []priceLevelWire `json:"asks"`
}

func (w depthSnapshotWire) toModel(symbol string, ts int64) models.DepthSnapshot {
	out := models.DepthSnapshot{Symbol: symbol, LastUpdateID: w.LastUpdateID, Timestamp: ts}
	for _, lvl := range w.Bids {
		out.Bids = append(out.Bids, lvl.toModel())
	}
	for _, lvl := range w.Asks {
		out.Asks = append(out.Asks, lvl.toModel())
	}
	return out
}

type depthUpdateWire struct {
	EventType     string           `json:"e"`
	EventTime     int64            `json:"E"`
	Symbol        string           `json:"s"`
	FirstUpdateID uint64           `json:"U"`
	LastUpdateID  uint64           `json:"u"`
	Bids          []priceLevelWire `json:"b"`
	Asks          []priceLevelWire `json:"a"`
}

func (w depthUpdateWire) toModel() models.DepthUpdate {
	out := models.DepthUpdate{
		Symbol:        w.Symbol,
		FirstUpdateID: w.FirstUpdateID,
		LastUpdateID:  w.LastUpdateID,
		Timestamp:     w.EventTime,
	}
	for _, lvl := range w.Bids {
		out.Bids = append(out.Bids, lvl.toModel())
	}
	for _, lvl := range w.Asks {
		out.Asks = append(out.Asks, lvl.toModel())
	}
	return out
}

type aggTradeWire struct {
	EventType    string          `json:"e"`
	Symbol       string          `json:"s"`
	AggTradeID   uint64          `json:"a"`
	Price        decimal.Decimal `json:"p"`
	Quantity     decimal.Decimal `json:"q"`
	FirstTradeID uint64          `json:"f"`
	LastTradeID  uint64          `json:"l"`
	Timestamp    int64           `json:"T"`
	IsBuyerMaker bool            `json:"m"`
}

func (w aggTradeWire) toModel() models.AggTrade {
	return models.AggTrade{
		Symbol:       w.Symbol,
		AggTradeID:   w.AggTradeID,
		Price:        w.Price,
		Quantity:     w.Quantity,
		FirstTradeID: w.FirstTradeID,
		LastTradeID:  w.LastTradeID,
		Timestamp:    w.Timestamp,
		IsBuyerMaker: w.IsBuyerMaker,
	}
}

type klinePayloadWire struct {
	OpenTime    int64           `json:"t"`
	CloseTime   int64           `json:"T"`
	Symbol      string          `json:"s"`
	Interval    string          `json:"i"`
	Open        decimal.Decimal `json:"o"`
	Close       decimal.Decimal `json:"c"`
	High        decimal.Decimal `json:"h"`
	Low         decimal.Decimal `json:"l"`
	Volume      decimal.Decimal `json:"v"`
	QuoteVolume decimal.Decimal `json:"q"`
	TradeCount  int64           `json:"n"`
	Closed      bool            `json:"x"`
}

type klineEventWire struct {
	EventType string           `json:"e"`
	Symbol    string           `json:"s"`
	Kline     klinePayloadWire `json:"k"`
}

func (w klinePayloadWire) toModel() models.Kline {
	return models.Kline{
		Symbol:      w.Symbol,
		Interval:    models.KlineInterval(w.Interval),
		OpenTime:    w.OpenTime,
		CloseTime:   w.CloseTime,
		Open:        w.Open,
		High:        w.High,
		Low:         w.Low,
		Close:       w.Close,
		Volume:      w.Volume,
		QuoteVolume: w.QuoteVolume,
		TradeCount:  w.TradeCount,
		Closed:      w.Closed,
	}
}

type tickerWire struct {
	EventType          string          `json:"e"`
	Symbol              string          `json:"s"`
	PriceChange        decimal.Decimal `json:"p"`
	PriceChangePercent decimal.Decimal `json:"P"`
	LastPrice          decimal.Decimal `json:"c"`
	HighPrice          decimal.Decimal `json:"h"`
	LowPrice           decimal.Decimal `json:"l"`
	Volume             decimal.Decimal `json:"v"`
	QuoteVolume        decimal.Decimal `json:"q"`
	OpenTime           int64           `json:"O"`
	CloseTime          int64           `json:"C"`
}

func (w tickerWire) toModel() models.Ticker24hr {
	return models.Ticker24hr{
		Symbol:             w.Symbol,
		PriceChange:        w.PriceChange,
		PriceChangePercent: w.PriceChangePercent,
		LastPrice:          w.LastPrice,
		HighPrice:          w.HighPrice,
		LowPrice:           w.LowPrice,
		Volume:             w.Volume,
		QuoteVolume:        w.QuoteVolume,
		OpenTime:           w.OpenTime,
		CloseTime:          w.CloseTime,
	}
}

type symbolWire struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
	Filters    []struct {
		FilterType  string          `json:"filterType"`
		TickSize    decimal.Decimal `json:"tickSize"`
		StepSize    decimal.Decimal `json:"stepSize"`
		MinQty      decimal.Decimal `json:"minQty"`
		MaxQty      decimal.Decimal `json:"maxQty"`
		MinNotional decimal.Decimal `json:"minNotional"`
	} `json:"filters"`
}

func (w symbolWire) toModel() models.SymbolInfo {
	out := models.SymbolInfo{
		Symbol:     w.Symbol,
		Status:     models.SymbolStatus(w.Status),
		BaseAsset:  w.BaseAsset,
		QuoteAsset: w.QuoteAsset,
	}
	for _, f := range w.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			out.TickSize = f.TickSize
		case "LOT_SIZE":
			out.StepSize = f.StepSize
			out.MinQty = f.MinQty
			out.MaxQty = f.MaxQty
		case "MIN_NOTIONAL", "NOTIONAL":
			out.MinNotional = f.MinNotional
		}
	}
	return out
}

type exchangeInfoWire struct {
	Symbols []symbolWire `json:"symbols"`
}

func (w exchangeInfoWire) toModel() models.ExchangeInfo {
	out := models.ExchangeInfo{Symbols: make([]models.SymbolInfo, 0, len(w.Symbols))}
	for _, s := range w.Symbols {
		out.Symbols = append(out.Symbols, s.toModel())
	}
	return out
}

type orderWire struct {
	Symbol              string          `json:"symbol"`
	OrderID             uint64          `json:"orderId"`
	ClientOrderID       string          `json:"clientOrderId"`
	Side                string          `json:"side"`
	Type                string          `json:"type"`
	Status              string          `json:"status"`
	TimeInForce         string          `json:"timeInForce"`
	Price               decimal.Decimal `json:"price"`
	OrigQty             decimal.Decimal `json:"origQty"`
	ExecutedQty         decimal.Decimal `json:"executedQty"`
	CummulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
	StopPrice           decimal.Decimal `json:"stopPrice"`
	IcebergQty          decimal.Decimal `json:"icebergQty"`
	Time                int64           `json:"time"`
	UpdateTime          int64           `json:"updateTime"`
}

func (w orderWire) toModel() models.Order {
	return models.Order{
		Symbol:           w.Symbol,
		ExchangeOrderID:  w.OrderID,
		ClientOrderID:    w.ClientOrderID,
		Side:             models.OrderSide(w.Side),
		Type:             models.OrderType(w.Type),
		Status:           models.OrderStatus(w.Status),
		TimeInForce:      models.TimeInForce(w.TimeInForce),
		Price:            w.Price,
		Quantity:         w.OrigQty,
		ExecutedQuantity: w.ExecutedQty,
		CumulativeQuote:  w.CummulativeQuoteQty,
		StopPrice:        w.StopPrice,
		IcebergQuantity:  w.IcebergQty,
		CreateTime:       w.Time,
		UpdateTime:       w.UpdateTime,
	}
}

type userTradeWire struct {
	Symbol          string          `json:"symbol"`
	ID              uint64          `json:"id"`
	OrderID         uint64          `json:"orderId"`
	Side            string          `json:"side"`
	Price           decimal.Decimal `json:"price"`
	Qty             decimal.Decimal `json:"qty"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commissionAsset"`
	IsMaker         bool            `json:"isMaker"`
	Time            int64           `json:"time"`
}

func (w userTradeWire) toModel() models.UserTrade {
	return models.UserTrade{
		Symbol:          w.Symbol,
		TradeID:         w.ID,
		ExchangeOrderID: w.OrderID,
		Side:            models.OrderSide(w.Side),
		Price:           w.Price,
		Quantity:        w.Qty,
		Commission:      w.Commission,
		CommissionAsset: w.CommissionAsset,
		IsMaker:         w.IsMaker,
		Timestamp:       w.Time,
	}
}

type balanceWire struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

type accountWire struct {
	CanTrade   bool          `json:"canTrade"`
	UpdateTime int64         `json:"updateTime"`
	Balances   []balanceWire `json:"balances"`
}

func (w accountWire) toModel() models.Account {
	out := models.Account{CanTrade: w.CanTrade, UpdateTime: w.UpdateTime, Balances: make(map[string]models.Balance, len(w.Balances))}
	for _, b := range w.Balances {
		out.Balances[b.Asset] = models.Balance{Asset: b.Asset, Free: b.Free, Locked: b.Locked}
	}
	return out
}

// userDataEventWire wraps the user-data-stream push types this module
// consumes (executionReport and outboundAccountPosition), which Binance
// sends over the same connection, discriminated by EventType.
type userDataEventWire struct {
	EventType  string        `json:"e"`
	EventTime  int64         `json:"E"`
	UpdateTime int64         `json:"u"`
	Balances   []balanceWire `json:"B"`

	// executionReport fields (order/trade updates share one event type).
	Symbol              string          `json:"s"`
	ClientOrderID       string          `json:"c"`
	Side                string          `json:"S"`
	OrderType           string          `json:"o"`
	TimeInForce         string          `json:"f"`
	OrderQty            decimal.Decimal `json:"q"`
	OrderPrice          decimal.Decimal `json:"p"`
	StopPrice           decimal.Decimal `json:"P"`
	IcebergQty          decimal.Decimal `json:"F"`
	OrderStatus         string          `json:"X"`
	OrderID             uint64          `json:"i"`
	LastExecutedQty     decimal.Decimal `json:"l"`
	CumulativeFilledQty decimal.Decimal `json:"z"`
	LastExecutedPrice   decimal.Decimal `json:"L"`
	CommissionAmount    decimal.Decimal `json:"n"`
	CommissionAsset     string          `json:"N"`
	TradeID             uint64          `json:"t"`
	OrderCreationTime   int64           `json:"O"`
	CumulativeQuoteQty  decimal.Decimal `json:"Z"`
	IsMakerSide         bool            `json:"m"`
}

func (w userDataEventWire) toOrder() models.Order {
	return models.Order{
		Symbol:           w.Symbol,
		ExchangeOrderID:  w.OrderID,
		ClientOrderID:    w.ClientOrderID,
		Side:             models.OrderSide(w.Side),
		Type:             models.OrderType(w.OrderType),
		Status:           models.OrderStatus(w.OrderStatus),
		TimeInForce:      models.TimeInForce(w.TimeInForce),
		Price:            w.OrderPrice,
		Quantity:         w.OrderQty,
		ExecutedQuantity: w.CumulativeFilledQty,
		CumulativeQuote:  w.CumulativeQuoteQty,
		StopPrice:        w.StopPrice,
		IcebergQuantity:  w.IcebergQty,
		CreateTime:       w.OrderCreationTime,
		UpdateTime:       w.EventTime,
	}
}

func (w userDataEventWire) toUserTrade() models.UserTrade {
	return models.UserTrade{
		Symbol:          w.Symbol,
		TradeID:         w.TradeID,
		ExchangeOrderID: w.OrderID,
		Side:            models.OrderSide(w.Side),
		Price:           w.LastExecutedPrice,
		Quantity:        w.LastExecutedQty,
		Commission:      w.CommissionAmount,
		CommissionAsset: w.CommissionAsset,
		IsMaker:         w.IsMakerSide,
		Timestamp:       w.EventTime,
	}
}

func (w userDataEventWire) toAccountUpdate() models.AccountUpdate {
	out := models.AccountUpdate{UpdateTime: w.EventTime}
	for _, b := range w.Balances {
		out.Balances = append(out.Balances, models.Balance{Asset: b.Asset, Free: b.Free, Locked: b.Locked})
	}
	return out
}
