package control

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidLimits is returned for an inconsistent actuator configuration.
var ErrInvalidLimits = errors.New("invalid infusion limits")

// InfusionLimits describes the actuator range and slew policy.
type InfusionLimits struct {
	HardwareMax int     `json:"hardware_max" mapstructure:"hardware_max"` // absolute mechanical maximum
	SafeMax     int     `json:"safe_max" mapstructure:"safe_max"`         // software ceiling, < HardwareMax
	Step        int     `json:"step" mapstructure:"step"`                 // max change per control cycle
	Gain        float64 `json:"gain" mapstructure:"gain"`                 // angle units per unit of PID output
}

func DefaultInfusionLimits() InfusionLimits {
	return InfusionLimits{HardwareMax: 180, SafeMax: 120, Step: 5, Gain: 10}
}

func (l InfusionLimits) Validate() error {
	switch {
	case l.HardwareMax <= 0:
		return fmt.Errorf("%w: hardware_max must be positive", ErrInvalidLimits)
	case l.SafeMax <= 0 || l.SafeMax >= l.HardwareMax:
		return fmt.Errorf("%w: safe_max %d must be in (0, %d)", ErrInvalidLimits, l.SafeMax, l.HardwareMax)
	case l.Step <= 0:
		return fmt.Errorf("%w: step must be positive", ErrInvalidLimits)
	case math.IsNaN(l.Gain) || math.IsInf(l.Gain, 0) || l.Gain <= 0:
		return fmt.Errorf("%w: gain must be positive", ErrInvalidLimits)
	}
	return nil
}

// InfusionState is owned by InfusionRateManager. CurrentAngle is the only
// value ever sent to the actuator.
type InfusionState struct {
	CurrentAngle int `json:"current_angle"`
	TargetAngle  int `json:"target_angle"`
}

// Override names the rule that decided a cycle's target angle.
type Override string

const (
	OverridePID           Override = "pid"
	OverrideSpO2Critical  Override = "spo2-critical"
	OverrideSignalLoss    Override = "signal-loss"
	OverrideMAPCritical   Override = "map-critical"
	OverrideCritical      Override = "critical"
	OverrideSpO2Warning   Override = "spo2-warning"
	OverrideManualHold    Override = "manual-hold"
	OverrideEmergencyStop Override = "emergency-stop"
)

type overrideRule struct {
	name  Override
	match func(SafetyVerdict) bool
	apply func(target, current int) int
	// immediate rules move the actuator to their target in one cycle.
	immediate bool
}

func forceZero(int, int) int { return 0 }

func noIncrease(target, current int) int { return min(target, current) }

func halve(target, _ int) int { return target / 2 }

// overrideRules is the safety priority chain, first match wins. The PID
// target applies only when no rule matches.
var overrideRules = []overrideRule{
	{OverrideSpO2Critical, func(v SafetyVerdict) bool { return v.SpO2Critical }, forceZero, true},
	{OverrideSignalLoss, func(v SafetyVerdict) bool { return v.SignalLoss }, forceZero, false},
	{OverrideMAPCritical, func(v SafetyVerdict) bool { return v.SeverityOf(ParamMAP) == SeverityCritical }, noIncrease, false},
	{OverrideCritical, func(v SafetyVerdict) bool { return v.Worst == SeverityCritical }, noIncrease, false},
	{OverrideSpO2Warning, func(v SafetyVerdict) bool {
		return v.SeverityOf(ParamSpO2) == SeverityWarning && !v.HasCriticalOtherThan(ParamSpO2)
	}, halve, false},
}

func immediate(name Override) bool {
	for _, r := range overrideRules {
		if r.name == name {
			return r.immediate
		}
	}
	return false
}

// OverrideRules lists the rule names in priority order.
func OverrideRules() []Override {
	out := make([]Override, 0, len(overrideRules))
	for _, r := range overrideRules {
		out = append(out, r.name)
	}
	return out
}

// InfusionRateManager turns PID output and safety verdicts into a bounded,
// rate-limited actuator position.
type InfusionRateManager struct {
	limits InfusionLimits
	state  InfusionState
}

func NewInfusionRateManager(l InfusionLimits) *InfusionRateManager {
	return &InfusionRateManager{limits: l}
}

// ComputeTarget derives the target angle. The relationship is inverse: a
// positive error (measured below target) reduces infusion.
func (m *InfusionRateManager) ComputeTarget(pidOutput float64, v SafetyVerdict, current int) (int, Override) {
	raw := float64(current) - math.Round(pidOutput*m.limits.Gain)
	if math.IsNaN(raw) {
		raw = 0
	}
	target := int(clampFloat(raw, 0, float64(m.limits.SafeMax)))

	for _, r := range overrideRules {
		if r.match(v) {
			return clampInt(r.apply(target, current), 0, m.limits.SafeMax), r.name
		}
	}
	return target, OverridePID
}

// Step moves current toward target by at most Step units.
func (m *InfusionRateManager) Step(target, current int) int {
	delta := clampInt(target-current, -m.limits.Step, m.limits.Step)
	return clampInt(current+delta, 0, m.limits.HardwareMax)
}

// Advance runs ComputeTarget and Step against the owned state. A critical
// SpO2 verdict skips Step and zeroes the actuator in the same cycle.
func (m *InfusionRateManager) Advance(pidOutput float64, v SafetyVerdict) (InfusionState, Override) {
	target, ov := m.ComputeTarget(pidOutput, v, m.state.CurrentAngle)
	if immediate(ov) {
		m.state = InfusionState{CurrentAngle: target, TargetAngle: target}
		return m.state, ov
	}
	m.state = InfusionState{CurrentAngle: m.Step(target, m.state.CurrentAngle), TargetAngle: target}
	return m.state, ov
}

// Hold freezes the actuator at its current position.
func (m *InfusionRateManager) Hold() {
	m.state.TargetAngle = m.state.CurrentAngle
}

// EmergencyZero drives the actuator to 0 in one cycle.
func (m *InfusionRateManager) EmergencyZero() {
	m.state = InfusionState{}
}

func (m *InfusionRateManager) State() InfusionState { return m.state }

func (m *InfusionRateManager) Limits() InfusionLimits { return m.limits }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
