package events

// BasePayload carries the fields common to every event.
type BasePayload struct {
	Type      string `json:"type"`
	ProjectID string `json:"project_id"`
	Timestamp string `json:"timestamp"`
}

// ProjectStatusPayload announces an orchestrator status transition.
type ProjectStatusPayload struct {
	BasePayload
	Status string `json:"status"`
	Wave   int    `json:"wave"`
}

// WaveAdvancedPayload announces that a wave finished analysis and the next
// one is starting.
type WaveAdvancedPayload struct {
	BasePayload
	CompletedWave int     `json:"completed_wave"`
	BestScore     float64 `json:"best_score"`
}
