package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/pkg/plugin"
)

// TopicTick is the heartbeat event published on a fixed interval so that
// idle push-channel subscribers can detect a live connection.
const TopicTick = "telemetry.tick"

// TickPayload is the heartbeat event payload.
type TickPayload struct {
	At int64 `json:"at"` // Unix milliseconds
}

// Heartbeat publishes a telemetry.tick event on a fixed interval.
type Heartbeat struct {
	bus      plugin.Publisher
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeat creates a heartbeat publisher. A zero interval defaults to 5s.
func NewHeartbeat(bus plugin.Publisher, interval time.Duration, logger *zap.Logger) *Heartbeat {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Heartbeat{bus: bus, interval: interval, logger: logger}
}

// Start begins the tick loop. Returns immediately.
func (h *Heartbeat) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				_ = h.bus.Publish(ctx, plugin.Event{
					Topic:     TopicTick,
					Source:    "heartbeat",
					Timestamp: t.UTC(),
					Payload:   TickPayload{At: t.UnixMilli()},
				})
			}
		}
	}()
	h.logger.Debug("heartbeat started", zap.Duration("interval", h.interval))
}

// Stop halts the tick loop and waits for it to exit.
func (h *Heartbeat) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
}
