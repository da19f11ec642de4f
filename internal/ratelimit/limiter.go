// Package ratelimit implements sliding-window weight-budget admission for
// exchange REST and WebSocket endpoints.
//
// Unlike a token bucket with continuous refill, a sliding window guarantees
// that the sum of admitted weight inside any max_window_range-wide interval
// never exceeds max_weight_limit — the property exchanges actually police.
// Admitted requests are recorded in a fixed-capacity ring; cleanup prunes
// entries that have aged out of the window before every admission check.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/0xtitan6/cryptoconnect/internal/errs"
)

type elem struct {
	at     time.Time
	weight uint64
}

// Limiter enforces a single sliding weight window.
type Limiter struct {
	window    time.Duration
	maxWeight uint64

	mu        sync.Mutex
	ring      []elem
	start     int
	size      int
	weightSum uint64
}

// New creates a Limiter admitting at most maxWeight of cumulative weight in
// any window-wide interval.
func New(window time.Duration, maxWeight uint64) *Limiter {
	return &Limiter{
		window:    window,
		maxWeight: maxWeight,
		ring:      make([]elem, maxWeight),
	}
}

func (l *Limiter) cleanup(cutoff time.Time) {
	for l.size > 0 {
		e := l.ring[l.start]
		if e.at.Before(cutoff) {
			l.weightSum -= e.weight
			l.start = (l.start + 1) % len(l.ring)
			l.size--
			continue
		}
		break
	}
}

func (l *Limiter) validate(op string, weight uint64) error {
	if weight == 0 {
		return errs.Client(op, "weight must be greater than 0")
	}
	if weight > l.maxWeight {
		return errs.Client(op, "weight %d exceeds max_weight_limit %d", weight, l.maxWeight)
	}
	return nil
}

func (l *Limiter) push(at time.Time, weight uint64) {
	end := (l.start + l.size) % len(l.ring)
	l.ring[end] = elem{at: at, weight: weight}
	l.size++
	l.weightSum += weight
}

// TryAdmit attempts to admit weight immediately, without blocking.
// It returns errs.RateLimited if admitting would exceed the window budget.
func (l *Limiter) TryAdmit(weight uint64) error {
	const op = "ratelimit.TryAdmit"
	if err := l.validate(op, weight); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.cleanup(now.Add(-l.window))

	if l.weightSum+weight > l.maxWeight {
		return errs.RateLimited(op, "exceeds max_weight_limit %d within %s", l.maxWeight, l.window)
	}
	l.push(now, weight)
	return nil
}

// AwaitAdmit blocks until weight can be admitted or ctx is cancelled.
func (l *Limiter) AwaitAdmit(ctx context.Context, weight uint64) error {
	const op = "ratelimit.AwaitAdmit"
	if err := l.validate(op, weight); err != nil {
		return err
	}

	for {
		l.mu.Lock()
		now := time.Now()
		l.cleanup(now.Add(-l.window))

		if l.weightSum+weight <= l.maxWeight {
			l.push(now, weight)
			l.mu.Unlock()
			return nil
		}

		earliest := l.ring[l.start].at
		wait := earliest.Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Group admits weight against several limiters atomically: either every
// limiter in the group admits, or none of them do and none are charged.
type Group struct {
	limiters []*Limiter
}

// NewGroup builds a Group over the given limiters. TryAdmit locks them in
// the order given here, the same order on every call of this Group; limiters
// are not reordered, so two Groups that share limiters lock them in the
// order each was built with.
func NewGroup(limiters ...*Limiter) *Group {
	return &Group{limiters: limiters}
}

// TryAdmit admits weight against every limiter in the group, all-or-nothing.
func (g *Group) TryAdmit(weight uint64) error {
	for _, l := range g.limiters {
		l.mu.Lock()
	}
	defer func() {
		for _, l := range g.limiters {
			l.mu.Unlock()
		}
	}()

	now := time.Now()
	for _, l := range g.limiters {
		l.cleanup(now.Add(-l.window))
		if err := l.validate("ratelimit.Group.TryAdmit", weight); err != nil {
			return err
		}
		if l.weightSum+weight > l.maxWeight {
			return errs.RateLimited("ratelimit.Group.TryAdmit", "exceeds max_weight_limit %d within %s", l.maxWeight, l.window)
		}
	}
	for _, l := range g.limiters {
		l.push(now, weight)
	}
	return nil
}
