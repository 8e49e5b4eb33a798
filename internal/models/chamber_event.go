package models

import "time"

// Event types recorded in the chamber log.
const (
	EventStart          = "START"
	EventStop           = "STOP"
	EventEmergencyStop  = "EMERGENCY_STOP"
	EventPhaseChange    = "PHASE_CHANGE"
	EventResume         = "RESUME"
	EventError          = "ERROR"
	EventSettingsChange = "SETTINGS_CHANGE"
)

// ChamberEvent is a single log entry.
type ChamberEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
