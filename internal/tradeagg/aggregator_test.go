package tradeagg

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/0xtitan6/cryptoconnect/internal/binance/models"
)

func trade(id uint64) models.AggTrade {
	return models.AggTrade{Symbol: "BTCUSDT", AggTradeID: id, Price: decimal.NewFromInt(int64(id))}
}

func TestOutOfOrderArrivalReordersAndRejectsDuplicate(t *testing.T) {
	a := New("BTCUSDT", 100, 2, 1000)

	order := []uint64{1, 3, 2, 2, 4}
	var results []bool
	for _, id := range order {
		ok, err := a.Update(trade(id))
		if err != nil {
			t.Fatalf("Update(%d): %v", id, err)
		}
		results = append(results, ok)
	}

	// second arrival of id 2 is a duplicate fill and must be rejected.
	if results[2] != true || results[3] != false {
		t.Fatalf("expected first 2 to fill (true) and second 2 to be rejected (false), got %v", results)
	}

	view := a.View()
	got := view.Trades()
	if len(got) != 4 {
		t.Fatalf("expected 4 materialized trades, got %d", len(got))
	}
	for i, tr := range got {
		if tr.AggTradeID != uint64(i+1) {
			t.Fatalf("expected ascending order 1..4, got %+v", got)
		}
	}
}

func TestStaleTradeBeforeFrontIsRejected(t *testing.T) {
	a := New("BTCUSDT", 100, 2, 1000)
	if ok, err := a.Update(trade(10)); err != nil || !ok {
		t.Fatalf("Update(10): ok=%v err=%v", ok, err)
	}
	if ok, err := a.Update(trade(5)); err != nil || ok {
		t.Fatalf("Update(5) should be rejected as stale, got ok=%v err=%v", ok, err)
	}
}

func TestSymbolMismatchIsClientError(t *testing.T) {
	a := New("BTCUSDT", 100, 2, 1000)
	_, err := a.Update(models.AggTrade{Symbol: "ETHUSDT", AggTradeID: 1})
	if err == nil {
		t.Fatalf("expected symbol mismatch error")
	}
}

func TestArchiveDrainsOnceOverloadThresholdExceeded(t *testing.T) {
	a := New("BTCUSDT", 4, 2, 1000)

	for id := uint64(1); id <= 10; id++ {
		if _, err := a.Update(trade(id)); err != nil {
			t.Fatalf("Update(%d): %v", id, err)
		}
	}

	view := a.View()
	all := view.Trades()
	if len(all) != 10 {
		t.Fatalf("expected all 10 trades still retrievable across archive+live, got %d", len(all))
	}
	if len(view.Live) > 4*2 {
		t.Fatalf("live window should have drained down near maxLive, got %d", len(view.Live))
	}
	for i, tr := range all {
		if tr.AggTradeID != uint64(i+1) {
			t.Fatalf("expected ascending order preserved across archive boundary, got %+v", all)
		}
	}
}

func TestArchiveRespectsMaxArchivedBound(t *testing.T) {
	a := New("BTCUSDT", 2, 2, 3)

	for id := uint64(1); id <= 20; id++ {
		if _, err := a.Update(trade(id)); err != nil {
			t.Fatalf("Update(%d): %v", id, err)
		}
	}

	view := a.View()
	if len(view.Archived) > 3 {
		t.Fatalf("expected archive bounded to 3 entries, got %d", len(view.Archived))
	}
}
