// Package tradeagg aggregates an exchange's append-only aggregate-trade
// stream into a gap-tolerant, queryable history.
//
// Trades arrive by increasing AggTradeID but may arrive out of order within
// a small window; a slot is reserved for every id as soon as any later id
// is seen, and left empty (a placeholder) until its own trade shows up.
// Once the live window grows past its overload threshold, the oldest
// filled trades are drained into a bounded archive so memory stays flat
// under sustained throughput.
package tradeagg

import (
	"sync"
	"sync/atomic"

	"github.com/0xtitan6/cryptoconnect/internal/binance/models"
	"github.com/0xtitan6/cryptoconnect/internal/errs"
)

type slot struct {
	id    uint64
	trade *models.AggTrade // nil = placeholder, not yet arrived
}

// Aggregator holds the live window and archive for one symbol.
type Aggregator struct {
	symbol string

	maxLive      int
	overloadFrac int // archive() returns early while the live window is at most maxLive/overloadFrac
	maxArchived  int

	mu   sync.RWMutex
	live []slot // ring modeled as a plain slice; front = live[0]

	archived atomic.Pointer[[]models.AggTrade]
}

// New creates an Aggregator. maxLive bounds the live (possibly-placeholder)
// window; archive() skips its drain while the window holds at most
// maxLive/overloadRatio slots, and otherwise drains the front down to
// maxLive. With overloadRatio >= 1 that threshold is at or below maxLive,
// so once the window is full each new id drains the front again.
// maxArchived bounds the archive's retained history.
func New(symbol string, maxLive, overloadRatio, maxArchived int) *Aggregator {
	a := &Aggregator{
		symbol:       symbol,
		maxLive:      maxLive,
		overloadFrac: overloadRatio,
		maxArchived:  maxArchived,
	}
	empty := make([]models.AggTrade, 0)
	a.archived.Store(&empty)
	return a
}

// Update ingests one trade print. Returns (true, nil) if it filled a new or
// previously-empty slot, (false, nil) if it was a stale duplicate of an
// already-filled or already-passed id.
func (a *Aggregator) Update(trade models.AggTrade) (bool, error) {
	const op = "tradeagg.Update"
	if trade.Symbol != a.symbol {
		return false, errs.Client(op, "symbol mismatch: aggregator=%s update=%s", a.symbol, trade.Symbol)
	}

	a.mu.Lock()

	if len(a.live) > 0 && trade.AggTradeID <= a.live[0].id {
		a.mu.Unlock()
		return false, nil
	}

	if len(a.live) == 0 {
		a.live = append(a.live, slot{id: trade.AggTradeID, trade: cloneTrade(trade)})
		a.mu.Unlock()
		a.archive()
		return true, nil
	}

	frontID := a.live[0].id
	index := int(trade.AggTradeID - frontID)

	if index < len(a.live) {
		if a.live[index].trade != nil {
			a.mu.Unlock()
			return false, nil
		}
		a.live[index].trade = cloneTrade(trade)
		a.mu.Unlock()
		return true, nil
	}

	for len(a.live) <= index {
		nextID := frontID + uint64(len(a.live))
		a.live = append(a.live, slot{id: nextID})
	}
	a.live[index].trade = cloneTrade(trade)
	a.mu.Unlock()

	a.archive()
	return true, nil
}

func cloneTrade(t models.AggTrade) *models.AggTrade {
	c := t
	return &c
}

// archive drains slots from the front of the live window until it holds at
// most maxLive slots, moving filled ones into the archive and discarding
// placeholders. It does nothing while the window holds at most
// maxLive/overloadFrac slots.
func (a *Aggregator) archive() {
	a.mu.Lock()
	if len(a.live) <= a.maxLive/a.overloadFrac {
		a.mu.Unlock()
		return
	}

	var drained []models.AggTrade
	for len(a.live) > a.maxLive {
		s := a.live[0]
		a.live = a.live[1:]
		if s.trade != nil {
			drained = append(drained, *s.trade)
		}
	}
	a.mu.Unlock()

	if len(drained) == 0 {
		return
	}

	for {
		old := a.archived.Load()
		next := append(append([]models.AggTrade{}, *old...), drained...)
		if len(next) > a.maxArchived {
			next = next[len(next)-a.maxArchived:]
		}
		if a.archived.CompareAndSwap(old, &next) {
			return
		}
	}
}

// View is a point-in-time read of the archive plus live (filled) trades,
// oldest first.
type View struct {
	Archived []models.AggTrade
	Live     []models.AggTrade
}

// Trades concatenates Archived and Live into a single oldest-first slice.
func (v View) Trades() []models.AggTrade {
	out := make([]models.AggTrade, 0, len(v.Archived)+len(v.Live))
	out = append(out, v.Archived...)
	out = append(out, v.Live...)
	return out
}

// Len returns the total number of materialized (non-placeholder) trades.
func (v View) Len() int { return len(v.Archived) + len(v.Live) }

// View returns the current archive snapshot plus every filled live slot.
func (a *Aggregator) View() View {
	archived := *a.archived.Load()

	a.mu.RLock()
	live := make([]models.AggTrade, 0, len(a.live))
	for _, s := range a.live {
		if s.trade != nil {
			live = append(live, *s.trade)
		}
	}
	a.mu.RUnlock()

	return View{Archived: archived, Live: live}
}
