package domain

import "time"

// SecurityEvent is one authentication or session event published to the event stream.
// It never carries raw credentials.
type SecurityEvent struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	UserID     string            `json:"user_id,omitempty"`
	Resource   string            `json:"resource"`
	IP         string            `json:"ip,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Source     string            `json:"source"`
}
