package fleet

import (
	"github.com/plainview-io/plainview/pkg/models"
)

// Event topics published by the fleet module.
const (
	TopicNodeDiscovered = "node.discovered"
	TopicNodeOffline    = "node.offline"
	TopicCommandSent    = "command.sent"
	TopicCommandAcked   = "command.acked"
	TopicTelemetry      = "fleet.telemetry"
)

// NodeDiscoveredPayload announces a newly registered field node.
type NodeDiscoveredPayload struct {
	NodeID string `json:"nodeId"`
	Type   string `json:"type"`
}

// NodeOfflinePayload announces a node passing the liveness threshold.
type NodeOfflinePayload struct {
	NodeID   string `json:"nodeId"`
	LastSeen int64  `json:"lastSeen"` // Unix milliseconds
}

// CommandSentPayload announces a command dispatched to a node.
type CommandSentPayload struct {
	CommandID string `json:"commandId"`
	NodeID    string `json:"nodeId"`
	Topic     string `json:"topic"`
	Action    string `json:"action"`
}

// CommandAckedPayload announces a node acknowledging a command.
type CommandAckedPayload struct {
	CommandID string `json:"commandId"`
	NodeID    string `json:"nodeId"`
}

// TelemetryPayload carries one generated sample for a subscribed
// node+topic pair. The flow module ingests these as a live source.
type TelemetryPayload struct {
	NodeID string                 `json:"nodeId"`
	Topic  string                 `json:"topic"`
	Sample models.TelemetrySample `json:"sample"`
}
