package incident

// Event topics published by the incident module.
const (
	TopicIncidentCreated = "incident.created"
	TopicIncidentUpdated = "incident.updated"
)

// IncidentCreatedPayload announces a new incident seeded from an alert.
type IncidentCreatedPayload struct {
	IncidentID string `json:"incidentId"`
	AlertID    string `json:"alertId"`
	Severity   string `json:"severity"`
	Title      string `json:"title"`
}

// IncidentUpdatedPayload announces an incident mutation: an appended
// alert or an explicit status/root-cause/resolution update.
type IncidentUpdatedPayload struct {
	IncidentID string `json:"incidentId"`
	Status     string `json:"status"`
	AlertID    string `json:"alertId,omitempty"`
}
