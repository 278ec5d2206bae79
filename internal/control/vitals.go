package control

import "time"

// Parameter names one monitored physiological value.
type Parameter string

const (
	ParamSpO2            Parameter = "spo2"
	ParamMAP             Parameter = "map"
	ParamHeartRate       Parameter = "heart_rate"
	ParamRespiratoryRate Parameter = "respiratory_rate"
	// ParamSignal is the pseudo-parameter used for stale or missing input.
	ParamSignal Parameter = "signal"
)

// evaluationOrder is the priority chain: SpO2 over MAP over heart rate.
var evaluationOrder = [...]Parameter{ParamSpO2, ParamMAP, ParamHeartRate, ParamRespiratoryRate}

// rank orders causes of equal severity. Signal loss sits right after SpO2
// because it forces the same fail-safe response.
func (p Parameter) rank() int {
	switch p {
	case ParamSpO2:
		return 0
	case ParamSignal:
		return 1
	case ParamMAP:
		return 2
	case ParamHeartRate:
		return 3
	case ParamRespiratoryRate:
		return 4
	default:
		return 5
	}
}

// Label is the short clinical name used in cause messages.
func (p Parameter) Label() string {
	switch p {
	case ParamSpO2:
		return "SpO2"
	case ParamMAP:
		return "MAP"
	case ParamHeartRate:
		return "HR"
	case ParamRespiratoryRate:
		return "RR"
	default:
		return string(p)
	}
}

// VitalsSnapshot is one sampling cycle's worth of already-scaled measurements.
// It is passed by value; nothing holds a reference to a delivered snapshot.
type VitalsSnapshot struct {
	HeartRate       float64   `json:"heart_rate"`       // bpm
	MAP             float64   `json:"map"`              // mmHg
	RespiratoryRate float64   `json:"respiratory_rate"` // breaths/min
	SpO2            float64   `json:"spo2"`             // %
	Timestamp       time.Time `json:"timestamp"`
}

// Value returns the measurement for p, or 0 for unknown parameters.
func (v VitalsSnapshot) Value(p Parameter) float64 {
	switch p {
	case ParamSpO2:
		return v.SpO2
	case ParamMAP:
		return v.MAP
	case ParamHeartRate:
		return v.HeartRate
	case ParamRespiratoryRate:
		return v.RespiratoryRate
	default:
		return 0
	}
}
