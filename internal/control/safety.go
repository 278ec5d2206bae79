package control

import (
	"fmt"
	"math"
	"time"
)

// Tags for the low and high side of each parameter.
var bandTags = map[Parameter][2]string{
	ParamSpO2:            {"hypoxemia", "spo2 above range"},
	ParamMAP:             {"hypotension", "hypertension"},
	ParamHeartRate:       {"bradycardia", "tachycardia"},
	ParamRespiratoryRate: {"bradypnea", "tachypnea"},
}

const (
	tagSignalLoss     = "signal loss"
	tagInvalidReading = "invalid reading"
)

// Evaluate compares a snapshot against the threshold table. It is a pure
// function: the same inputs always produce an identical verdict.
func Evaluate(s VitalsSnapshot, t Thresholds) SafetyVerdict {
	v := SafetyVerdict{Parameters: make(map[Parameter]ParameterVerdict, len(evaluationOrder))}
	for _, p := range evaluationOrder {
		pv := classify(p, s.Value(p), t.For(p))
		v.Parameters[p] = pv
		if pv.Severity > v.Worst {
			v.Worst = pv.Severity
		}
		if pv.Severity != SeverityNormal {
			v.Causes = append(v.Causes, Cause{Parameter: p, Severity: pv.Severity, Tag: pv.Tag, Message: pv.Cause})
		}
	}
	v.SpO2Critical = v.Parameters[ParamSpO2].Severity == SeverityCritical
	sortCauses(v.Causes)
	return v
}

func classify(p Parameter, value float64, band ThresholdSpec) ParameterVerdict {
	tags := bandTags[p]
	label := p.Label()
	switch {
	case math.IsNaN(value) || math.IsInf(value, 0):
		return ParameterVerdict{
			Severity: SeverityCritical,
			Tag:      tagInvalidReading,
			Cause:    fmt.Sprintf("%s: %s is not a finite value", tagInvalidReading, label),
		}
	case band.CriticalLow != nil && value < *band.CriticalLow:
		return ParameterVerdict{
			Severity: SeverityCritical,
			Tag:      tags[0],
			Cause:    fmt.Sprintf("critical %s: %s %.1f below critical-low %.1f", tags[0], label, value, *band.CriticalLow),
		}
	case band.CriticalHigh != nil && value > *band.CriticalHigh:
		return ParameterVerdict{
			Severity: SeverityCritical,
			Tag:      tags[1],
			Cause:    fmt.Sprintf("critical %s: %s %.1f above critical-high %.1f", tags[1], label, value, *band.CriticalHigh),
		}
	case value < band.Low:
		return ParameterVerdict{
			Severity: SeverityWarning,
			Tag:      tags[0],
			Cause:    fmt.Sprintf("%s: %s %.1f below %.1f", tags[0], label, value, band.Low),
		}
	case value > band.High:
		return ParameterVerdict{
			Severity: SeverityWarning,
			Tag:      tags[1],
			Cause:    fmt.Sprintf("%s: %s %.1f above %.1f", tags[1], label, value, band.High),
		}
	}
	return ParameterVerdict{Severity: SeverityNormal}
}

// ApplyStaleness flags a verdict computed from an aging snapshot. Past
// lossAfter the verdict becomes Critical with a signal-loss cause. The input
// verdict is not modified.
func ApplyStaleness(v SafetyVerdict, age, staleAfter, lossAfter time.Duration) SafetyVerdict {
	if age <= staleAfter {
		return v
	}
	v.Stale = true
	if age <= lossAfter {
		return v
	}
	return withSignalLoss(v, age)
}

// NoSignal is the verdict used when no snapshot has ever been delivered and
// waited exceeds the signal-loss timeout.
func NoSignal(waited time.Duration) SafetyVerdict {
	return withSignalLoss(SafetyVerdict{Stale: true}, waited)
}

func withSignalLoss(v SafetyVerdict, age time.Duration) SafetyVerdict {
	causes := make([]Cause, 0, len(v.Causes)+1)
	causes = append(causes, v.Causes...)
	causes = append(causes, Cause{
		Parameter: ParamSignal,
		Severity:  SeverityCritical,
		Tag:       tagSignalLoss,
		Message:   fmt.Sprintf("%s: no vitals for %s", tagSignalLoss, age.Round(time.Millisecond)),
	})
	sortCauses(causes)
	v.Causes = causes
	v.SignalLoss = true
	v.Worst = SeverityCritical
	return v
}
