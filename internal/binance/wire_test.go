package binance

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDepthSnapshotWireDecodesStringPricesAndQuantities(t *testing.T) {
	raw := []byte(`{"lastUpdateId":160,"bids":[["30100.50","1.25"]],"asks":[["30101.00","0.75"]]}`)
	var w depthSnapshotWire
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	snap := w.toModel("BTCUSDT", 1000)
	if snap.LastUpdateID != 160 {
		t.Fatalf("expected lastUpdateId 160, got %d", snap.LastUpdateID)
	}
	if len(snap.Bids) != 1 || !snap.Bids[0].Price.Equal(decimal.RequireFromString("30100.50")) {
		t.Fatalf("unexpected bids: %+v", snap.Bids)
	}
	if len(snap.Asks) != 1 || !snap.Asks[0].Quantity.Equal(decimal.RequireFromString("0.75")) {
		t.Fatalf("unexpected asks: %+v", snap.Asks)
	}
}

func TestDepthUpdateWireToModel(t *testing.T) {
	raw := []byte(`{"e":"depthUpdate","E":1000,"s":"BTCUSDT","U":5,"u":10,"b":[["30000","2"]],"a":[]}`)
	var w depthUpdateWire
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	update := w.toModel()
	if update.Symbol != "BTCUSDT" || update.FirstUpdateID != 5 || update.LastUpdateID != 10 {
		t.Fatalf("unexpected update: %+v", update)
	}
}

func TestKlineEventWireToModel(t *testing.T) {
	raw := []byte(`{"e":"kline","s":"BTCUSDT","k":{"t":100,"T":200,"s":"BTCUSDT","i":"1m","o":"30000","c":"30050","h":"30100","l":"29950","v":"10","q":"300000","n":42,"x":true}}`)
	var w klineEventWire
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	kline := w.Kline.toModel()
	if kline.Symbol != "BTCUSDT" || !kline.Closed || kline.TradeCount != 42 {
		t.Fatalf("unexpected kline: %+v", kline)
	}
	if !kline.Close.Equal(decimal.RequireFromString("30050")) {
		t.Fatalf("unexpected close: %s", kline.Close)
	}
}

func TestSymbolWireExtractsFiltersByType(t *testing.T) {
	raw := []byte(`{
		"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT",
		"filters":[
			{"filterType":"PRICE_FILTER","tickSize":"0.01"},
			{"filterType":"LOT_SIZE","stepSize":"0.00001","minQty":"0.00001","maxQty":"1000"},
			{"filterType":"MIN_NOTIONAL","minNotional":"10"}
		]
	}`)
	var w symbolWire
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	info := w.toModel()
	if !info.TickSize.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("unexpected tick size: %s", info.TickSize)
	}
	if !info.MinNotional.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("unexpected min notional: %s", info.MinNotional)
	}
}

func TestUserDataEventWireExecutionReportToOrder(t *testing.T) {
	raw := []byte(`{"e":"executionReport","E":1500,"s":"BTCUSDT","c":"client-1","S":"BUY","o":"LIMIT","f":"GTC","q":"1","p":"30000","X":"FILLED","i":42,"z":"1","Z":"30000","O":1000}`)
	var w userDataEventWire
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	order := w.toOrder()
	if order.ExchangeOrderID != 42 || order.ClientOrderID != "client-1" || string(order.Status) != "FILLED" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.UpdateTime != 1500 {
		t.Fatalf("expected update time to be event time 1500, got %d", order.UpdateTime)
	}
}

func TestUserDataEventWireOutboundAccountPositionToAccountUpdate(t *testing.T) {
	raw := []byte(`{"e":"outboundAccountPosition","E":2000,"u":1900,"B":[{"asset":"BTC","free":"1.5","locked":"0.5"}]}`)
	var w userDataEventWire
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	update := w.toAccountUpdate()
	if update.UpdateTime != 2000 || len(update.Balances) != 1 {
		t.Fatalf("unexpected update: %+v", update)
	}
	if !update.Balances[0].Free.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("unexpected free balance: %s", update.Balances[0].Free)
	}
}
