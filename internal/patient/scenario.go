package patient

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"anesthesia_controller/internal/control"

	"gopkg.in/yaml.v3"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a script of changes applied from a given step onwards, e.g.
//
//	name: spo2-drop
//	steps:
//	  - at: 10
//	    spo2: 85
//	  - at: 20
//	    release: [spo2]
//	  - at: 25
//	    emergency_stop: true
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step pins vitals and sets signals from step At onwards. Nil fields leave
// the previous value alone.
type Step struct {
	At              int      `yaml:"at"`
	HeartRate       *float64 `yaml:"heart_rate,omitempty"`
	MAP             *float64 `yaml:"map,omitempty"`
	RespiratoryRate *float64 `yaml:"respiratory_rate,omitempty"`
	SpO2            *float64 `yaml:"spo2,omitempty"`
	// Release unpins the named vitals (heart_rate, map, respiratory_rate, spo2).
	Release        []string `yaml:"release,omitempty"`
	EmergencyStop  *bool    `yaml:"emergency_stop,omitempty"`
	ManualOverride *bool    `yaml:"manual_override,omitempty"`
	// Silent stops vitals delivery, simulating a disconnected monitor.
	Silent *bool `yaml:"silent,omitempty"`
}

// Frame is the effective scenario state at one step.
type Frame struct {
	Pins           map[control.Parameter]float64
	EmergencyStop  bool
	ManualOverride bool
	Silent         bool
}

// Apply replaces pinned vitals in s.
func (f Frame) Apply(s control.VitalsSnapshot) control.VitalsSnapshot {
	for p, v := range f.Pins {
		switch p {
		case control.ParamHeartRate:
			s.HeartRate = v
		case control.ParamMAP:
			s.MAP = v
		case control.ParamRespiratoryRate:
			s.RespiratoryRate = v
		case control.ParamSpO2:
			s.SpO2 = v
		}
	}
	return s
}

func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(b)
}

func ParseScenario(b []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	for i, st := range sc.Steps {
		if st.At < 0 {
			return nil, fmt.Errorf("%w: step %d has negative at", ErrInvalidScenario, i)
		}
		for _, name := range st.Release {
			if _, ok := parameterByName[name]; !ok {
				return nil, fmt.Errorf("%w: step %d releases unknown vital %q", ErrInvalidScenario, i, name)
			}
		}
	}
	sort.SliceStable(sc.Steps, func(i, j int) bool { return sc.Steps[i].At < sc.Steps[j].At })
	return &sc, nil
}

var parameterByName = map[string]control.Parameter{
	string(control.ParamHeartRate):       control.ParamHeartRate,
	string(control.ParamMAP):             control.ParamMAP,
	string(control.ParamRespiratoryRate): control.ParamRespiratoryRate,
	string(control.ParamSpO2):            control.ParamSpO2,
}

// At folds every step with At <= step into a frame. A nil scenario yields an
// empty frame.
func (sc *Scenario) At(step int) Frame {
	f := Frame{Pins: map[control.Parameter]float64{}}
	if sc == nil {
		return f
	}
	for _, st := range sc.Steps {
		if st.At > step {
			break
		}
		for _, name := range st.Release {
			delete(f.Pins, parameterByName[name])
		}
		pin(f.Pins, control.ParamHeartRate, st.HeartRate)
		pin(f.Pins, control.ParamMAP, st.MAP)
		pin(f.Pins, control.ParamRespiratoryRate, st.RespiratoryRate)
		pin(f.Pins, control.ParamSpO2, st.SpO2)
		if st.EmergencyStop != nil {
			f.EmergencyStop = *st.EmergencyStop
		}
		if st.ManualOverride != nil {
			f.ManualOverride = *st.ManualOverride
		}
		if st.Silent != nil {
			f.Silent = *st.Silent
		}
	}
	return f
}

func pin(m map[control.Parameter]float64, p control.Parameter, v *float64) {
	if v != nil {
		m[p] = *v
	}
}
