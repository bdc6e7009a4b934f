package domain

import (
	"time"

	"github.com/google/uuid"
)

// Activity event types.
const (
	EventWeatherUploaded = "weather_uploaded"
	EventWeaCreated      = "wea_created"
	EventStudyCreated    = "study_created"
	EventArtifactFetched = "artifact_fetched"
)

// ActivityEvent records a user-visible state change of a dashboard session.
type ActivityEvent struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	SessionID  string            `json:"session_id"`
	Subject    string            `json:"subject"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewActivityEvent stamps an event with a fresh ID and the package clock.
func NewActivityEvent(eventType, sessionID, subject string, attrs map[string]string) ActivityEvent {
	return ActivityEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		SessionID:  sessionID,
		Subject:    subject,
		Attributes: attrs,
		OccurredAt: Now(),
	}
}
