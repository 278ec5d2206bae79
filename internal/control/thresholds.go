package control

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidThresholds is returned when a threshold table violates
// critical_low <= low <= target <= high <= critical_high.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// ThresholdSpec holds the alarm bands for one parameter. Critical bounds are
// optional; a nil bound is never violated.
type ThresholdSpec struct {
	CriticalLow  *float64 `json:"critical_low,omitempty" mapstructure:"critical_low"`
	Low          float64  `json:"low" mapstructure:"low"`
	Target       float64  `json:"target" mapstructure:"target"`
	High         float64  `json:"high" mapstructure:"high"`
	CriticalHigh *float64 `json:"critical_high,omitempty" mapstructure:"critical_high"`
}

// Validate checks the ordering invariant. Values are never clamped.
func (s ThresholdSpec) Validate() error {
	for _, v := range []float64{s.Low, s.Target, s.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bound", ErrInvalidThresholds)
		}
	}
	if s.CriticalLow != nil && !(*s.CriticalLow <= s.Low) {
		return fmt.Errorf("%w: critical_low %.1f above low %.1f", ErrInvalidThresholds, *s.CriticalLow, s.Low)
	}
	if s.Low > s.Target {
		return fmt.Errorf("%w: low %.1f above target %.1f", ErrInvalidThresholds, s.Low, s.Target)
	}
	if s.Target > s.High {
		return fmt.Errorf("%w: target %.1f above high %.1f", ErrInvalidThresholds, s.Target, s.High)
	}
	if s.CriticalHigh != nil && !(s.High <= *s.CriticalHigh) {
		return fmt.Errorf("%w: high %.1f above critical_high %.1f", ErrInvalidThresholds, s.High, *s.CriticalHigh)
	}
	return nil
}

// Thresholds is the full static threshold table, one band per parameter.
type Thresholds struct {
	HeartRate       ThresholdSpec `json:"heart_rate" mapstructure:"heart_rate"`
	MAP             ThresholdSpec `json:"map" mapstructure:"map"`
	RespiratoryRate ThresholdSpec `json:"respiratory_rate" mapstructure:"respiratory_rate"`
	SpO2            ThresholdSpec `json:"spo2" mapstructure:"spo2"`
}

// For returns the band for p.
func (t Thresholds) For(p Parameter) ThresholdSpec {
	switch p {
	case ParamSpO2:
		return t.SpO2
	case ParamMAP:
		return t.MAP
	case ParamHeartRate:
		return t.HeartRate
	default:
		return t.RespiratoryRate
	}
}

// Validate checks every parameter's ordering. SpO2 may not carry a
// critical-high bound.
func (t Thresholds) Validate() error {
	for _, p := range evaluationOrder {
		if err := t.For(p).Validate(); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if t.SpO2.CriticalHigh != nil {
		return fmt.Errorf("%s: %w: critical_high is not supported", ParamSpO2, ErrInvalidThresholds)
	}
	return nil
}

// DefaultThresholds returns the adult defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HeartRate:       ThresholdSpec{CriticalLow: Bound(40), Low: 50, Target: 70, High: 100, CriticalHigh: Bound(120)},
		MAP:             ThresholdSpec{CriticalLow: Bound(50), Low: 60, Target: 85, High: 110, CriticalHigh: Bound(130)},
		RespiratoryRate: ThresholdSpec{CriticalLow: Bound(6), Low: 8, Target: 14, High: 25, CriticalHigh: Bound(35)},
		SpO2:            ThresholdSpec{CriticalLow: Bound(88), Low: 92, Target: 98, High: 100},
	}
}

// Bound returns a pointer to v for use as an optional critical bound.
func Bound(v float64) *float64 { return &v }
