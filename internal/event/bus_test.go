package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/pkg/plugin"
)

func TestPublishDeliversToTopicSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var got []string
	bus.Subscribe("a.topic", func(_ context.Context, e plugin.Event) {
		got = append(got, e.Topic)
	})
	bus.Subscribe("other.topic", func(_ context.Context, e plugin.Event) {
		t.Errorf("unexpected delivery to other.topic handler: %v", e)
	})

	_ = bus.Publish(ctx, plugin.Event{Topic: "a.topic", Source: "test"})

	if len(got) != 1 || got[0] != "a.topic" {
		t.Fatalf("got %v, want [a.topic]", got)
	}
}

func TestSubscribeAllSeesEveryTopic(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var topics []string
	bus.SubscribeAll(func(_ context.Context, e plugin.Event) {
		topics = append(topics, e.Topic)
	})

	_ = bus.Publish(ctx, plugin.Event{Topic: "x"})
	_ = bus.Publish(ctx, plugin.Event{Topic: "y"})

	if len(topics) != 2 || topics[0] != "x" || topics[1] != "y" {
		t.Fatalf("topics = %v, want [x y]", topics)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	count := 0
	unsub := bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { count++ })

	_ = bus.Publish(ctx, plugin.Event{Topic: "t"})
	unsub()
	_ = bus.Publish(ctx, plugin.Event{Topic: "t"})

	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	delivered := false
	bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { panic("boom") })
	bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { delivered = true })

	_ = bus.Publish(ctx, plugin.Event{Topic: "t"})

	if !delivered {
		t.Fatal("second handler not reached after first panicked")
	}
}

func TestReentrantPublishDrainsAfterCurrentDispatch(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var order []string
	bus.Subscribe("first", func(c context.Context, _ plugin.Event) {
		order = append(order, "first:handler1")
		// Handler publishes a follow-up event; it must be delivered after
		// the current fan-out completes, not inline.
		_ = bus.Publish(c, plugin.Event{Topic: "second"})
	})
	bus.Subscribe("first", func(_ context.Context, _ plugin.Event) {
		order = append(order, "first:handler2")
	})
	bus.Subscribe("second", func(_ context.Context, _ plugin.Event) {
		order = append(order, "second:handler")
	})

	_ = bus.Publish(ctx, plugin.Event{Topic: "first"})

	want := []string{"first:handler1", "first:handler2", "second:handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSingleProducerOrderingPreserved(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var mu sync.Mutex
	var seen []int
	bus.Subscribe("seq", func(_ context.Context, e plugin.Event) {
		mu.Lock()
		seen = append(seen, e.Payload.(int))
		mu.Unlock()
	})

	for i := 0; i < 50; i++ {
		_ = bus.Publish(ctx, plugin.Event{Topic: "seq", Payload: i})
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 50 {
		t.Fatalf("delivered %d events, want 50", len(seen))
	}
	for i, v := range seen {
		if v != i {
			t.Fatalf("seen[%d] = %d, order not preserved", i, v)
		}
	}
}

func TestConcurrentPublishersDoNotInterleaveFanout(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	// Two handlers append the same event's payload; if fan-outs
	// interleaved, the pairwise pattern would break.
	var mu sync.Mutex
	var log []any
	bus.Subscribe("t", func(_ context.Context, e plugin.Event) {
		mu.Lock()
		log = append(log, e.Payload)
		mu.Unlock()
	})
	bus.Subscribe("t", func(_ context.Context, e plugin.Event) {
		mu.Lock()
		log = append(log, e.Payload)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = bus.Publish(ctx, plugin.Event{Topic: "t", Payload: id*100 + i})
			}
		}(g)
	}
	wg.Wait()

	// Concurrent publishers may queue events on a dispatching goroutine,
	// so drain any tail still in flight.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(log)
		mu.Unlock()
		if n == 200 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(log) != 200 {
		t.Fatalf("delivered %d handler calls, want 200", len(log))
	}
	for i := 0; i < len(log); i += 2 {
		if log[i] != log[i+1] {
			t.Fatalf("fan-out interleaved at %d: %v != %v", i, log[i], log[i+1])
		}
	}
}

func TestHeartbeatPublishesTicks(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var mu sync.Mutex
	ticks := 0
	bus.Subscribe(TopicTick, func(_ context.Context, e plugin.Event) {
		if _, ok := e.Payload.(TickPayload); !ok {
			t.Errorf("tick payload has type %T", e.Payload)
		}
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	hb := NewHeartbeat(bus, 10*time.Millisecond, zap.NewNop())
	hb.Start(context.Background())
	time.Sleep(55 * time.Millisecond)
	hb.Stop()

	mu.Lock()
	defer mu.Unlock()
	if ticks < 3 {
		t.Fatalf("got %d ticks, want at least 3", ticks)
	}
}
