package ws

import "time"

// Message is the envelope for every event forwarded to WebSocket
// clients. Topic and Source mirror the bus event they came from.
type Message struct {
	Topic     string    `json:"topic"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}
