package mission

// Event topics published by the mission module.
const (
	TopicMissionStarted   = "mission.started"
	TopicMissionCompleted = "mission.completed"
)

// MissionStartedPayload announces a mission entering playback.
type MissionStartedPayload struct {
	MissionID string  `json:"missionId"`
	Title     string  `json:"title"`
	Speed     float64 `json:"speed"`
}

// MissionCompletedPayload announces a mission reaching its terminal state.
type MissionCompletedPayload struct {
	MissionID string `json:"missionId"`
	Title     string `json:"title"`
}
