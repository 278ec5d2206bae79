package models

import "time"

// Event types recorded by the controller.
const (
	EventStateChange   = "STATE_CHANGE"
	EventAlarm         = "ALARM"
	EventSignal        = "SIGNAL"
	EventEmergencyStop = "ESTOP"
	EventOverride      = "OVERRIDE"
	EventConfig        = "CONFIG"
)

// ControlEvent is a single log entry.
type ControlEvent struct {
	EventID     string         `json:"event_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Type        string         `json:"type"`        // STATE_CHANGE | ALARM | SIGNAL | ESTOP | OVERRIDE | CONFIG
	Description string         `json:"description"` // human-readable
	Metadata    map[string]any `json:"metadata,omitempty"`
}
