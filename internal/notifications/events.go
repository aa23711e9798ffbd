package notifications

import "time"

// EventType identifies an onboarding event pushed to dashboard clients.
type EventType string

const (
	EventProgressSaved EventType = "progress_saved"
	EventResumePrompt  EventType = "resume_prompt"
)

// Event is the wire message sent over the websocket.
type Event struct {
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
