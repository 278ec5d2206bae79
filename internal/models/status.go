package models

import "time"

// Vitals is one monitor snapshot as exposed to API clients.
type Vitals struct {
	HeartRate       float64   `json:"heart_rate"`
	MAP             float64   `json:"map"`
	RespiratoryRate float64   `json:"respiratory_rate"`
	SpO2            float64   `json:"spo2"`
	Timestamp       time.Time `json:"timestamp"`
}

// PIDStatus mirrors the controller diagnostics of the last control cycle.
type PIDStatus struct {
	Error    float64 `json:"error"`
	Output   float64 `json:"output"`
	Integral float64 `json:"integral"`
}

// Status is the latest report published by the control loop.
type Status struct {
	State           string    `json:"state"`            // INITIALIZING | MONITORING | ACTIVE_CONTROL | ALARM | EMERGENCY_STOP | MANUAL_MODE
	ActuatorCommand int       `json:"actuator_command"` // degrees, 0..hardware max
	TargetAngle     int       `json:"target_angle"`
	Override        string    `json:"override"` // rule that decided the target, e.g. "spo2-critical"
	AlarmLevel      string    `json:"alarm_level"`
	AlarmCauses     []string  `json:"alarm_causes,omitempty"`
	SpO2Critical    bool      `json:"spo2_critical"`
	Stale           bool      `json:"stale"`
	SignalLoss      bool      `json:"signal_loss"`
	Vitals          *Vitals   `json:"vitals,omitempty"`
	PID             PIDStatus `json:"pid"`
	UpdatedAt       time.Time `json:"updated_at"`
}
