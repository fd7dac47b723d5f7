package valve

// Event topics published by the valve module.
const (
	TopicActuationRequested = "valve.actuation.requested"
	TopicActuationCompleted = "valve.actuation.completed"
)

// ActuationRequestedPayload announces an accepted actuation request.
type ActuationRequestedPayload struct {
	ActuationID string `json:"actuationId"`
	ValveID     string `json:"valveId"`
	Action      string `json:"action"`
}

// ActuationCompletedPayload announces an actuation finishing, with the
// torque the actuator reported.
type ActuationCompletedPayload struct {
	ActuationID string  `json:"actuationId"`
	ValveID     string  `json:"valveId"`
	Action      string  `json:"action"`
	TorqueNm    float64 `json:"torqueNm"`
	State       string  `json:"state"`
}
