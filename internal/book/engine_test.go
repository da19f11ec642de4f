package book

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/0xtitan6/cryptoconnect/internal/binance/models"
	"github.com/0xtitan6/cryptoconnect/internal/errs"
)

func level(price, qty string) models.PriceLevel {
	return models.PriceLevel{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}
}

func TestApplyDiffBeforeSeedIsClientError(t *testing.T) {
	e := New("BTCUSDT")
	err := e.ApplyDiff(models.DepthUpdate{Symbol: "BTCUSDT", FirstUpdateID: 1, LastUpdateID: 2})
	if !errs.Is(err, errs.KindClient) {
		t.Fatalf("expected client error, got %v", err)
	}
}

func TestSeedThenApplyOverlappingDiff(t *testing.T) {
	e := New("BTCUSDT")
	if err := e.Seed(models.DepthSnapshot{
		Symbol:       "BTCUSDT",
		LastUpdateID: 100,
		Bids:         []models.PriceLevel{level("100.0", "1")},
		Asks:         []models.PriceLevel{level("101.0", "1")},
	}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	// first=99,last=101 overlaps since first(99) <= last+1(101)
	err := e.ApplyDiff(models.DepthUpdate{
		Symbol:        "BTCUSDT",
		FirstUpdateID: 99,
		LastUpdateID:  101,
		Bids:          []models.PriceLevel{level("100.0", "2")},
	})
	if err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}

	snap := e.Snapshot()
	if snap.LastUpdateID != 101 {
		t.Fatalf("expected last update id 101, got %d", snap.LastUpdateID)
	}
	if !snap.Bids[0].Quantity.Equal(decimal.RequireFromString("2")) {
		t.Fatalf("expected updated bid quantity 2, got %s", snap.Bids[0].Quantity)
	}
}

func TestStaleDiffIsSilentlyDropped(t *testing.T) {
	e := New("BTCUSDT")
	if err := e.Seed(models.DepthSnapshot{Symbol: "BTCUSDT", LastUpdateID: 100}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	err := e.ApplyDiff(models.DepthUpdate{Symbol: "BTCUSDT", FirstUpdateID: 50, LastUpdateID: 100})
	if err != nil {
		t.Fatalf("expected stale diff to be dropped without error, got %v", err)
	}
	if e.Snapshot().LastUpdateID != 100 {
		t.Fatalf("stale diff must not change last update id")
	}
}

func TestGapDetection(t *testing.T) {
	e := New("BTCUSDT")
	if err := e.Seed(models.DepthSnapshot{Symbol: "BTCUSDT", LastUpdateID: 100}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	err := e.ApplyDiff(models.DepthUpdate{Symbol: "BTCUSDT", FirstUpdateID: 102, LastUpdateID: 110})
	if !errs.IsState(err, errs.StateGap) {
		t.Fatalf("expected gap error, got %v", err)
	}
}

func TestReseedAlwaysWinsOverPriorState(t *testing.T) {
	e := New("BTCUSDT")
	if err := e.Seed(models.DepthSnapshot{Symbol: "BTCUSDT", LastUpdateID: 100, Bids: []models.PriceLevel{level("1", "1")}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := e.Seed(models.DepthSnapshot{Symbol: "BTCUSDT", LastUpdateID: 50, Bids: []models.PriceLevel{level("2", "1")}}); err != nil {
		t.Fatalf("re-Seed: %v", err)
	}

	snap := e.Snapshot()
	if snap.LastUpdateID != 50 || !snap.Bids[0].Price.Equal(decimal.RequireFromString("2")) {
		t.Fatalf("re-seed must replace state unconditionally, got %+v", snap)
	}
}

func TestZeroQuantityRemovesLevel(t *testing.T) {
	e := New("BTCUSDT")
	if err := e.Seed(models.DepthSnapshot{
		Symbol: "BTCUSDT", LastUpdateID: 1,
		Bids: []models.PriceLevel{level("10", "1")},
	}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	if err := e.ApplyDiff(models.DepthUpdate{
		Symbol: "BTCUSDT", FirstUpdateID: 2, LastUpdateID: 2,
		Bids: []models.PriceLevel{level("10", "0")},
	}); err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}

	snap := e.Snapshot()
	if len(snap.Bids) != 0 {
		t.Fatalf("expected bid level removed, got %+v", snap.Bids)
	}
}

func TestBestBidAskAndMidPrice(t *testing.T) {
	e := New("BTCUSDT")
	if err := e.Seed(models.DepthSnapshot{
		Symbol: "BTCUSDT", LastUpdateID: 1,
		Bids: []models.PriceLevel{level("99", "1"), level("98", "1")},
		Asks: []models.PriceLevel{level("101", "1"), level("102", "1")},
	}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	bid, ask, ok := e.BestBidAsk()
	if !ok || !bid.Equal(decimal.RequireFromString("99")) || !ask.Equal(decimal.RequireFromString("101")) {
		t.Fatalf("unexpected best bid/ask: %s/%s ok=%v", bid, ask, ok)
	}

	mid, ok := e.MidPrice()
	if !ok || !mid.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("unexpected mid price: %s ok=%v", mid, ok)
	}
}
