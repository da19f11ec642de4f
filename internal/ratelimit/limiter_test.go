package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/0xtitan6/cryptoconnect/internal/errs"
)

func TestTryAdmitWithinBudget(t *testing.T) {
	t.Parallel()
	l := New(time.Second, 10)

	if err := l.TryAdmit(4); err != nil {
		t.Fatalf("TryAdmit: %v", err)
	}
	if err := l.TryAdmit(6); err != nil {
		t.Fatalf("TryAdmit: %v", err)
	}
	if err := l.TryAdmit(1); !errs.Is(err, errs.KindRateLimited) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
}

func TestTryAdmitRejectsZeroAndOverweight(t *testing.T) {
	t.Parallel()
	l := New(time.Second, 10)

	if err := l.TryAdmit(0); !errs.Is(err, errs.KindClient) {
		t.Fatalf("expected client error for zero weight, got %v", err)
	}
	if err := l.TryAdmit(11); !errs.Is(err, errs.KindClient) {
		t.Fatalf("expected client error for overweight, got %v", err)
	}
}

func TestWindowSlidesOpenAfterExpiry(t *testing.T) {
	t.Parallel()
	l := New(60*time.Millisecond, 5)

	if err := l.TryAdmit(5); err != nil {
		t.Fatalf("TryAdmit: %v", err)
	}
	if err := l.TryAdmit(1); err == nil {
		t.Fatalf("expected rate limited before window expiry")
	}

	time.Sleep(80 * time.Millisecond)

	if err := l.TryAdmit(5); err != nil {
		t.Fatalf("TryAdmit after window slide: %v", err)
	}
}

func TestAwaitAdmitBlocksUntilCapacityFrees(t *testing.T) {
	t.Parallel()
	l := New(80*time.Millisecond, 5)

	if err := l.TryAdmit(5); err != nil {
		t.Fatalf("TryAdmit: %v", err)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.AwaitAdmit(ctx, 1); err != nil {
		t.Fatalf("AwaitAdmit: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 60*time.Millisecond {
		t.Fatalf("expected AwaitAdmit to block roughly until window slide, got %s", elapsed)
	}
}

func TestAwaitAdmitRespectsContextCancellation(t *testing.T) {
	t.Parallel()
	l := New(time.Hour, 1)
	if err := l.TryAdmit(1); err != nil {
		t.Fatalf("TryAdmit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.AwaitAdmit(ctx, 1); err != context.DeadlineExceeded {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
}

func TestGroupAdmitsAllOrNothing(t *testing.T) {
	t.Parallel()
	a := New(time.Second, 10)
	b := New(time.Second, 3)
	g := NewGroup(a, b)

	if err := g.TryAdmit(3); err != nil {
		t.Fatalf("TryAdmit: %v", err)
	}

	// b is now exhausted (3/3); a group admit of weight 1 must fail
	// entirely, and must not charge a even though a has room.
	if err := g.TryAdmit(1); err == nil {
		t.Fatalf("expected group admit to fail when any member lacks capacity")
	}
	if err := a.TryAdmit(7); err != nil {
		t.Fatalf("a should still have its original 10 budget minus the first group admit: %v", err)
	}
}
