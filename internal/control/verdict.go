package control

import (
	"slices"
	"strings"
)

// Severity grades one parameter's reading.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "normal"
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Cause is one reason a verdict is not Normal.
type Cause struct {
	Parameter Parameter `json:"parameter"`
	Severity  Severity  `json:"severity"`
	Tag       string    `json:"tag"`     // e.g. "hypoxemia"
	Message   string    `json:"message"` // e.g. "critical hypoxemia: SpO2 85.0 below critical-low 88.0"
}

// ParameterVerdict is the per-parameter result of an evaluation.
type ParameterVerdict struct {
	Severity Severity `json:"severity"`
	Tag      string   `json:"tag,omitempty"`
	Cause    string   `json:"cause,omitempty"`
}

// SafetyVerdict is recomputed every safety-check cycle and never persisted.
type SafetyVerdict struct {
	Parameters map[Parameter]ParameterVerdict `json:"parameters"`
	Worst      Severity                       `json:"worst"`
	// Causes are ordered by severity, then by parameter priority.
	Causes []Cause `json:"causes,omitempty"`
	// SpO2Critical is flagged separately because it overrides every other
	// parameter when the infusion response is decided.
	SpO2Critical bool `json:"spo2_critical"`
	Stale        bool `json:"stale"`
	SignalLoss   bool `json:"signal_loss"`
}

// SeverityOf returns p's severity, Normal if p was not evaluated.
func (v SafetyVerdict) SeverityOf(p Parameter) Severity {
	if p == ParamSignal {
		if v.SignalLoss {
			return SeverityCritical
		}
		return SeverityNormal
	}
	return v.Parameters[p].Severity
}

// HasCriticalOtherThan reports whether any cause other than p is Critical.
func (v SafetyVerdict) HasCriticalOtherThan(p Parameter) bool {
	for _, c := range v.Causes {
		if c.Severity == SeverityCritical && c.Parameter != p {
			return true
		}
	}
	return false
}

// CauseMessages returns the ordered cause strings.
func (v SafetyVerdict) CauseMessages() []string {
	out := make([]string, 0, len(v.Causes))
	for _, c := range v.Causes {
		out = append(out, c.Message)
	}
	return out
}

func (v SafetyVerdict) String() string {
	if len(v.Causes) == 0 {
		return v.Worst.String()
	}
	return v.Worst.String() + ": " + strings.Join(v.CauseMessages(), " | ")
}

func sortCauses(cs []Cause) {
	slices.SortStableFunc(cs, func(a, b Cause) int {
		if a.Severity != b.Severity {
			return int(b.Severity) - int(a.Severity)
		}
		return a.Parameter.rank() - b.Parameter.rank()
	})
}
