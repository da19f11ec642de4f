// Package book reconstructs a local, continuously-consistent order book
// from an exchange's REST snapshot plus a stream of incremental diffs.
//
// The reconciliation rules mirror Binance Spot's documented depth-stream
// procedure: buffer diffs, seed from a REST snapshot, discard diffs that
// are entirely behind the snapshot, apply diffs that overlap it, and signal
// a gap (forcing the caller to re-seed) the moment a diff's first update id
// leaves a hole after the snapshot's last update id.
//
// Engine is concurrency-safe: a single writer mutex serializes Seed/
// ApplyDiff, while readers take a lock-free snapshot via an atomic pointer
// that is only swapped when the book has actually changed since the last
// read (the dirty flag).
package book

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/0xtitan6/cryptoconnect/internal/binance/models"
	"github.com/0xtitan6/cryptoconnect/internal/errs"
)

// Snapshot is a materialized, sorted view of the book: bids descending by
// price, asks ascending by price.
type Snapshot struct {
	Symbol       string
	LastUpdateID uint64
	Bids         []models.PriceLevel
	Asks         []models.PriceLevel
	Timestamp    int64
}

type state struct {
	lastUpdateID uint64
	bids         map[string]decimal.Decimal
	asks         map[string]decimal.Decimal
	timestamp    int64
}

// Engine maintains the reconciled book for a single symbol.
type Engine struct {
	symbol string

	writerMu sync.Mutex
	st       *state // nil until Seed is called

	dirty     atomic.Bool
	published atomic.Pointer[Snapshot]
}

// New creates an Engine for symbol. The book is empty (unseeded) until Seed
// is called.
func New(symbol string) *Engine {
	return &Engine{symbol: symbol}
}

// Seed replaces the book in full from a REST snapshot. Any buffered diffs
// the caller was holding during gap recovery should be discarded by the
// caller and re-applied only if they postdate this snapshot's last update
// id — Seed itself always wins over anything previously published.
func (e *Engine) Seed(snap models.DepthSnapshot) error {
	const op = "book.Seed"
	if snap.Symbol != e.symbol {
		return errs.Client(op, "symbol mismatch: engine=%s update=%s", e.symbol, snap.Symbol)
	}

	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	st := &state{
		lastUpdateID: snap.LastUpdateID,
		bids:         make(map[string]decimal.Decimal, len(snap.Bids)),
		asks:         make(map[string]decimal.Decimal, len(snap.Asks)),
		timestamp:    snap.Timestamp,
	}
	for _, lvl := range snap.Bids {
		st.bids[lvl.Price.String()] = lvl.Quantity
	}
	for _, lvl := range snap.Asks {
		st.asks[lvl.Price.String()] = lvl.Quantity
	}

	e.st = st
	e.dirty.Store(true)
	return nil
}

// ApplyDiff applies an incremental update.
//
//   - If update.LastUpdateID <= current last update id, the diff is
//     entirely stale and is silently dropped (not an error).
//   - If update.FirstUpdateID <= current last update id + 1, the diff
//     overlaps or continues the book and is applied.
//   - Otherwise a gap exists between the book and this diff; the caller
//     must re-seed. Returns errs.State(..., StateGap, ...).
func (e *Engine) ApplyDiff(update models.DepthUpdate) error {
	const op = "book.ApplyDiff"
	if update.Symbol != e.symbol {
		return errs.Client(op, "symbol mismatch: engine=%s update=%s", e.symbol, update.Symbol)
	}

	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	if e.st == nil {
		return errs.Client(op, "book not seeded")
	}

	if update.LastUpdateID <= e.st.lastUpdateID {
		return nil
	}

	if update.FirstUpdateID > e.st.lastUpdateID+1 {
		return errs.State(op, errs.StateGap,
			"out of order: last update id %d, update first id %d", e.st.lastUpdateID, update.FirstUpdateID)
	}

	for _, lvl := range update.Bids {
		applyLevel(e.st.bids, lvl)
	}
	for _, lvl := range update.Asks {
		applyLevel(e.st.asks, lvl)
	}
	e.st.lastUpdateID = update.LastUpdateID
	e.st.timestamp = update.Timestamp
	e.dirty.Store(true)
	return nil
}

func applyLevel(side map[string]decimal.Decimal, lvl models.PriceLevel) {
	key := lvl.Price.String()
	if lvl.Quantity.IsZero() {
		delete(side, key)
		return
	}
	side[key] = lvl.Quantity
}

// Snapshot returns the current materialized book. If nothing has changed
// since the last call, the previously published Snapshot is returned
// without re-sorting. Returns nil if Seed has never been called.
func (e *Engine) Snapshot() *Snapshot {
	if !e.dirty.Load() {
		return e.published.Load()
	}

	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	st := e.st
	if st == nil {
		return nil
	}

	bids := make([]models.PriceLevel, 0, len(st.bids))
	for priceStr, qty := range st.bids {
		price, _ := decimal.NewFromString(priceStr)
		bids = append(bids, models.PriceLevel{Price: price, Quantity: qty})
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })

	asks := make([]models.PriceLevel, 0, len(st.asks))
	for priceStr, qty := range st.asks {
		price, _ := decimal.NewFromString(priceStr)
		asks = append(asks, models.PriceLevel{Price: price, Quantity: qty})
	}
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })

	snap := &Snapshot{
		Symbol:       e.symbol,
		LastUpdateID: st.lastUpdateID,
		Bids:         bids,
		Asks:         asks,
		Timestamp:    st.timestamp,
	}
	e.published.Store(snap)
	e.dirty.Store(false)
	return snap
}

// BestBidAsk returns the best bid/ask from the most recently published
// snapshot. ok is false if the book is empty on either side or unseeded.
func (e *Engine) BestBidAsk() (bid, ask decimal.Decimal, ok bool) {
	snap := e.Snapshot()
	if snap == nil || len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return snap.Bids[0].Price, snap.Asks[0].Price, true
}

// MidPrice returns (bestBid+bestAsk)/2.
func (e *Engine) MidPrice() (decimal.Decimal, bool) {
	bid, ask, ok := e.BestBidAsk()
	if !ok {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}
