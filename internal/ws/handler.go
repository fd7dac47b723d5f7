package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/plainview-io/plainview/pkg/plugin"
)

// Handler streams every bus event to connected WebSocket clients.
type Handler struct {
	hub    *Hub
	bus    plugin.EventBus
	logger *zap.Logger

	unsubscribe func()
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to all bus
// events. Events reach clients in the order the bus emitted them.
func NewHandler(bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		bus:    bus,
		logger: logger,
	}
	if bus != nil {
		h.unsubscribe = bus.SubscribeAll(h.onEvent)
		logger.Info("subscribed to bus events for WebSocket broadcasting")
	}
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/events", h.handleEventStream)
}

// Close detaches the handler from the bus.
func (h *Handler) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
}

// ClientCount reports the number of connected stream clients.
func (h *Handler) ClientCount() int {
	return h.hub.ClientCount()
}

func (h *Handler) onEvent(_ context.Context, event plugin.Event) {
	h.hub.Broadcast(Message{
		Topic:     event.Topic,
		Source:    event.Source,
		Timestamp: event.Timestamp,
		Data:      event.Payload,
	})
}

// handleEventStream upgrades the connection and streams bus events
// until the client disconnects.
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The stream is read-only telemetry, any origin may watch it.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:       conn,
		remoteAddr: r.RemoteAddr,
		send:       make(chan Message, 256),
		logger:     h.logger,
	}

	h.hub.Register(client)

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	// Client disconnected -- stop write pump and unregister.
	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}
