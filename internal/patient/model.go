// Package patient is a simulated patient used to close the loop in demos and
// headless runs. It is not a physiological model.
package patient

import (
	"errors"
	"fmt"
	"math/rand"

	"anesthesia_controller/internal/control"
)

var ErrInvalidModel = errors.New("invalid patient model")

// Baseline is the awake patient.
type Baseline struct {
	HeartRate       float64 `mapstructure:"heart_rate" yaml:"heart_rate"`
	MAP             float64 `mapstructure:"map" yaml:"map"`
	RespiratoryRate float64 `mapstructure:"respiratory_rate" yaml:"respiratory_rate"`
	SpO2            float64 `mapstructure:"spo2" yaml:"spo2"`
}

type Config struct {
	Baseline Baseline `mapstructure:"baseline"`
	// Uptake is the level gained per step at full infusion; Decay is the level
	// lost per step regardless of infusion.
	Uptake      float64 `mapstructure:"uptake"`
	Decay       float64 `mapstructure:"decay"`
	HardwareMax int     `mapstructure:"hardware_max"`
	Noise       bool    `mapstructure:"noise"`
	Seed        int64   `mapstructure:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Baseline:    Baseline{HeartRate: 75, MAP: 90, RespiratoryRate: 16, SpO2: 98},
		Uptake:      0.1,
		Decay:       0.05,
		HardwareMax: 180,
		Noise:       true,
		Seed:        1,
	}
}

func (c Config) Validate() error {
	switch {
	case c.HardwareMax <= 0:
		return fmt.Errorf("%w: hardware_max must be positive", ErrInvalidModel)
	case c.Uptake < 0 || c.Decay < 0:
		return fmt.Errorf("%w: uptake and decay must not be negative", ErrInvalidModel)
	}
	return nil
}

// Effect of a full anesthesia level on each vital.
const (
	hrPerLevel   = -30.0
	mapPerLevel  = -20.0
	rrPerLevel   = -6.0
	spo2PerLevel = -5.0
	// SpO2 only drops above this level (respiratory depression).
	spo2Onset = 0.7
)

type bounds struct{ lo, hi, noise float64 }

var (
	hrBounds   = bounds{30, 150, 2}
	mapBounds  = bounds{40, 140, 3}
	rrBounds   = bounds{4, 30, 1}
	spo2Bounds = bounds{85, 100, 0.5}
)

// Model integrates the infusion into an anesthesia level in [0, 1] and maps
// the level onto vitals.
type Model struct {
	cfg   Config
	level float64
	rng   *rand.Rand
}

func NewModel(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

// Level is the current anesthesia level.
func (m *Model) Level() float64 { return m.level }

// Step advances the model one update at the given actuator angle and
// returns the resulting vitals. The timestamp is left zero.
func (m *Model) Step(angle int) control.VitalsSnapshot {
	dose := float64(clampAngle(angle, m.cfg.HardwareMax)) / float64(m.cfg.HardwareMax)
	m.level = clamp(m.level+dose*m.cfg.Uptake-m.cfg.Decay, 0, 1)
	return m.Vitals()
}

// Vitals maps the current level onto a snapshot without advancing it.
func (m *Model) Vitals() control.VitalsSnapshot {
	b := m.cfg.Baseline
	spo2 := b.SpO2
	if m.level > spo2Onset {
		spo2 += spo2PerLevel * (m.level - spo2Onset)
	}
	return control.VitalsSnapshot{
		HeartRate:       m.vary(b.HeartRate+hrPerLevel*m.level, hrBounds),
		MAP:             m.vary(b.MAP+mapPerLevel*m.level, mapBounds),
		RespiratoryRate: m.vary(b.RespiratoryRate+rrPerLevel*m.level, rrBounds),
		SpO2:            m.vary(spo2, spo2Bounds),
	}
}

func (m *Model) vary(v float64, b bounds) float64 {
	if m.cfg.Noise {
		v += (m.rng.Float64()*2 - 1) * b.noise
	}
	return clamp(v, b.lo, b.hi)
}

func clampAngle(a, hi int) int {
	if a < 0 {
		return 0
	}
	if a > hi {
		return hi
	}
	return a
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
