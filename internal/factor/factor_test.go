package factor

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/0xtitan6/cryptoconnect/internal/binance/models"
)

func kline(close string) models.Kline {
	return models.Kline{Close: decimal.RequireFromString(close)}
}

func TestSimpleMovingAverageOverWindow(t *testing.T) {
	klines := []models.Kline{kline("10"), kline("20"), kline("30")}
	avg, ok := SimpleMovingAverage(klines, 2)
	if !ok {
		t.Fatalf("expected ok")
	}
	if !avg.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("expected average 25, got %s", avg)
	}
}

func TestSimpleMovingAverageEmptyIsNotOK(t *testing.T) {
	if _, ok := SimpleMovingAverage(nil, 5); ok {
		t.Fatalf("expected not ok for empty input")
	}
}

func TestRealizedVolatilityOfConstantPriceIsZero(t *testing.T) {
	klines := []models.Kline{kline("100"), kline("100"), kline("100")}
	vol, ok := RealizedVolatility(klines)
	if !ok {
		t.Fatalf("expected ok")
	}
	if vol != 0 {
		t.Fatalf("expected zero volatility for constant price, got %f", vol)
	}
}

func TestMidPriceSpreadComputesBasisPoints(t *testing.T) {
	bid := decimal.RequireFromString("100")
	ask := decimal.RequireFromString("101")
	spread, bps, ok := MidPriceSpread(bid, ask)
	if !ok {
		t.Fatalf("expected ok")
	}
	if !spread.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("expected spread 1, got %s", spread)
	}
	// mid = 100.5, spread = 1, bps = 1/100.5*10000 ~= 99.5
	if bps.LessThan(decimal.RequireFromString("99")) || bps.GreaterThan(decimal.RequireFromString("100")) {
		t.Fatalf("unexpected bps: %s", bps)
	}
}
