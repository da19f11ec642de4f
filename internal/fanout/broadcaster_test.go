package fanout

import "testing"

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New[int](4)
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(42)

	if v := <-ch1; v != 42 {
		t.Fatalf("sub1 expected 42, got %d", v)
	}
	if v := <-ch2; v != 42 {
		t.Fatalf("sub2 expected 42, got %d", v)
	}
}

func TestSlowSubscriberDropsWithoutBlockingOthers(t *testing.T) {
	b := New[int](1)
	slow, unsubSlow := b.Subscribe()
	defer unsubSlow()
	fast, unsubFast := b.Subscribe()
	defer unsubFast()

	b.Publish(1)
	b.Publish(2) // slow's buffer (cap 1) is full; this publish is dropped for slow

	if v := <-slow; v != 1 {
		t.Fatalf("slow expected only the first value 1, got %d", v)
	}
	select {
	case v := <-slow:
		t.Fatalf("slow should have dropped the second publish, got %d", v)
	default:
	}

	if v := <-fast; v != 1 {
		t.Fatalf("fast expected 1, got %d", v)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New[int](1)
	ch, unsub := b.Subscribe()
	unsub()

	_, ok := <-ch
	if ok {
		t.Fatalf("expected channel closed after unsubscribe")
	}
}
