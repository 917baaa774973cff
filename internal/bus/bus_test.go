package bus_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/headline-goat/intent-goat/internal/bus"
	"github.com/headline-goat/intent-goat/internal/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func cta(ts int64) events.Event {
	return events.Event{Type: events.TypeCTAClick, Timestamp: ts}
}

func TestBus_SubscriptionOrder(t *testing.T) {
	b := bus.New()
	var calls []string
	b.Subscribe(func(events.Event) { calls = append(calls, "first") })
	b.Subscribe(func(events.Event) { calls = append(calls, "second") })

	b.Publish(cta(1))

	if diff := cmp.Diff([]string{"first", "second"}, calls); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

// A reaction published by the first subscriber must reach the second
// subscriber after the event that caused it.
func TestBus_NestedPublishIsQueued(t *testing.T) {
	b := bus.New()
	var first, second []int64

	b.Subscribe(func(e events.Event) {
		first = append(first, e.Timestamp)
		if e.Timestamp == 1 {
			b.Publish(cta(2))
		}
	})
	b.Subscribe(func(e events.Event) {
		second = append(second, e.Timestamp)
	})

	b.Publish(cta(1))

	want := []int64{1, 2}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("first subscriber (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, second); diff != "" {
		t.Errorf("second subscriber (-want +got):\n%s", diff)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := bus.New()
	n := 0
	unsubscribe := b.Subscribe(func(events.Event) { n++ })

	b.Publish(cta(1))
	unsubscribe()
	b.Publish(cta(2))

	if n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
}

func TestBus_ConcurrentPublishersSeeOneOrder(t *testing.T) {
	b := bus.New()
	var mu sync.Mutex
	var a, c []int64
	b.Subscribe(func(e events.Event) { mu.Lock(); a = append(a, e.Timestamp); mu.Unlock() })
	b.Subscribe(func(e events.Event) { mu.Lock(); c = append(c, e.Timestamp); mu.Unlock() })

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			b.Publish(cta(ts))
		}(int64(i))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(a) != 50 {
		t.Fatalf("delivered %d events, want 50", len(a))
	}
	if diff := cmp.Diff(a, c); diff != "" {
		t.Errorf("subscribers observed different orders (-a +c):\n%s", diff)
	}
}
