package control

import (
	"time"
)

// AlarmLevel is the signal handed to the external alarm renderer.
type AlarmLevel int

const (
	AlarmOff AlarmLevel = iota
	AlarmWarning
	AlarmCritical
)

func (l AlarmLevel) String() string {
	switch l {
	case AlarmWarning:
		return "warning"
	case AlarmCritical:
		return "critical"
	default:
		return "off"
	}
}

func (l AlarmLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func levelFor(s Severity) AlarmLevel {
	switch s {
	case SeverityCritical:
		return AlarmCritical
	case SeverityWarning:
		return AlarmWarning
	default:
		return AlarmOff
	}
}

// AlarmStatus is the derived alarm decision for one safety-check cycle.
type AlarmStatus struct {
	Level        AlarmLevel `json:"level"`
	Causes       []string   `json:"causes"`
	SpO2Critical bool       `json:"spo2_critical"`
}

type alarmLatch struct {
	cause       Cause
	normalSince time.Time // zero while the parameter is still abnormal
}

// AlarmController latches alarms per parameter. A latch clears only after
// the parameter that raised it has reported Normal for the whole debounce
// window.
type AlarmController struct {
	debounce time.Duration
	latched  map[Parameter]*alarmLatch
}

func NewAlarmController(debounce time.Duration) *AlarmController {
	return &AlarmController{debounce: debounce, latched: make(map[Parameter]*alarmLatch)}
}

// Derive folds a verdict into the latched alarm state.
func (a *AlarmController) Derive(v SafetyVerdict, now time.Time) AlarmStatus {
	for _, c := range v.Causes {
		a.latched[c.Parameter] = &alarmLatch{cause: c}
	}
	for p, l := range a.latched {
		if v.SeverityOf(p) != SeverityNormal || !reportsNormal(v, p) {
			continue
		}
		if l.normalSince.IsZero() {
			l.normalSince = now
			continue
		}
		if now.Sub(l.normalSince) >= a.debounce {
			delete(a.latched, p)
		}
	}
	return a.status()
}

// reportsNormal is false when the verdict carries no reading for p, as
// during signal loss before the first snapshot.
func reportsNormal(v SafetyVerdict, p Parameter) bool {
	if p == ParamSignal {
		return !v.SignalLoss
	}
	_, ok := v.Parameters[p]
	return ok
}

func (a *AlarmController) status() AlarmStatus {
	causes := make([]Cause, 0, len(a.latched))
	st := AlarmStatus{}
	for p, l := range a.latched {
		causes = append(causes, l.cause)
		if lv := levelFor(l.cause.Severity); lv > st.Level {
			st.Level = lv
		}
		if p == ParamSpO2 && l.cause.Severity == SeverityCritical {
			st.SpO2Critical = true
		}
	}
	sortCauses(causes)
	st.Causes = make([]string, 0, len(causes))
	for _, c := range causes {
		st.Causes = append(st.Causes, c.Message)
	}
	return st
}
