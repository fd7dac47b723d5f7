package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/internal/event"
	"github.com/plainview-io/plainview/pkg/plugin"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestClient(addr string) *Client {
	return &Client{
		conn:       nil, // Not needed for hub tests
		remoteAddr: addr,
		send:       make(chan Message, 256),
		logger:     testLogger(),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("10.0.0.1:1234")

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Verify channel is closed by attempting to receive.
	if _, ok := <-client.send; ok {
		t.Error("client.send channel is not closed")
	}

	// Second unregister should not panic.
	hub.Unregister(client)
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(testLogger())
	clients := []*Client{
		newTestClient("10.0.0.1:1"),
		newTestClient("10.0.0.2:2"),
		newTestClient("10.0.0.3:3"),
	}
	for _, c := range clients {
		hub.Register(c)
	}

	hub.Broadcast(Message{Topic: "alert.created", Source: "pipeline", Timestamp: time.Now()})

	for i, c := range clients {
		select {
		case got := <-c.send:
			if got.Topic != "alert.created" || got.Source != "pipeline" {
				t.Errorf("client %d received %+v", i+1, got)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("client %d did not receive message", i+1)
		}
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("10.0.0.1:1")
	hub.Register(client)

	for i := 0; i < 256; i++ {
		client.send <- Message{Topic: "telemetry.tick"}
	}

	hub.Broadcast(Message{Topic: "dropped.topic"})

	if len(client.send) != 256 {
		t.Errorf("buffer length = %d, want 256 (message should have been dropped)", len(client.send))
	}
	if got := <-client.send; got.Topic == "dropped.topic" {
		t.Error("dropped message was unexpectedly received")
	}
}

func TestConcurrentRegisterBroadcast(t *testing.T) {
	hub := NewHub(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := newTestClient("concurrent")
			hub.Register(client)

			go func() {
				for range client.send {
					// Discard messages.
				}
			}()

			time.Sleep(10 * time.Millisecond)
			hub.Unregister(client)
		}()
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast(Message{Topic: "metrics.updated"})
		}()
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0 after all unregister", hub.ClientCount())
	}
}

func TestHandlerForwardsBusEvents(t *testing.T) {
	bus := event.NewBus(testLogger())
	h := NewHandler(bus, testLogger())
	defer h.Close()

	client := newTestClient("10.0.0.1:1")
	h.hub.Register(client)

	events := []plugin.Event{
		{Topic: "node.discovered", Source: "fleet", Timestamp: time.Now()},
		{Topic: "alert.created", Source: "pipeline", Timestamp: time.Now()},
		{Topic: "incident.created", Source: "incident", Timestamp: time.Now()},
	}
	for _, e := range events {
		if err := bus.Publish(context.Background(), e); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	// Forwarding preserves emission order.
	for i, e := range events {
		select {
		case got := <-client.send:
			if got.Topic != e.Topic || got.Source != e.Source {
				t.Errorf("message %d = %+v, want topic %q", i, got, e.Topic)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("message %d not forwarded", i)
		}
	}
}

func TestHandlerCloseDetaches(t *testing.T) {
	bus := event.NewBus(testLogger())
	h := NewHandler(bus, testLogger())

	client := newTestClient("10.0.0.1:1")
	h.hub.Register(client)
	h.Close()

	if err := bus.Publish(context.Background(), plugin.Event{Topic: "telemetry.tick"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case got := <-client.send:
		t.Errorf("received %+v after Close", got)
	default:
	}
}
