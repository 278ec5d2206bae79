package control

import (
	"errors"
	"fmt"
	"math"
)

// DefaultIntegralMax bounds the accumulated integral (anti-windup).
const DefaultIntegralMax = 10.0

// ErrInvalidGains is returned for negative or non-finite PID gains.
var ErrInvalidGains = errors.New("invalid PID gains")

// Gains are the PID coefficients.
type Gains struct {
	Kp float64 `json:"kp" mapstructure:"kp"`
	Ki float64 `json:"ki" mapstructure:"ki"`
	Kd float64 `json:"kd" mapstructure:"kd"`
}

// DefaultGains returns Kp=2.0, Ki=0.5, Kd=1.0.
func DefaultGains() Gains { return Gains{Kp: 2.0, Ki: 0.5, Kd: 1.0} }

func (g Gains) Validate() error {
	for name, v := range map[string]float64{"kp": g.Kp, "ki": g.Ki, "kd": g.Kd} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidGains, name, v)
		}
	}
	return nil
}

// PIDState is the controller memory.
type PIDState struct {
	Integral  float64 `json:"integral"`
	LastError float64 `json:"last_error"`
}

// PIDDiagnostics describes the most recent update, for status reporting.
type PIDDiagnostics struct {
	Error      float64 `json:"error"`
	Output     float64 `json:"output"`
	Integral   float64 `json:"integral"`
	Derivative float64 `json:"derivative"`
}

// PIDEngine computes an unbounded control output from the primary error
// signal. Bounding happens in InfusionRateManager.
type PIDEngine struct {
	gains       Gains
	integralMax float64
	state       PIDState
	last        PIDDiagnostics
}

func NewPIDEngine(g Gains, integralMax float64) *PIDEngine {
	return &PIDEngine{gains: g, integralMax: integralMax}
}

// Update advances the controller by one control cycle. err is
// target - measured; dt is the cycle length in seconds.
func (p *PIDEngine) Update(err, dt float64) float64 {
	p.state.Integral = clampFloat(p.state.Integral+err*dt, -p.integralMax, p.integralMax)
	derivative := err - p.state.LastError
	out := p.gains.Kp*err + p.gains.Ki*p.state.Integral + p.gains.Kd*derivative
	p.state.LastError = err

	p.last = PIDDiagnostics{Error: err, Output: out, Integral: p.state.Integral, Derivative: derivative}
	return out
}

// Reset zeroes integral and last error. Call it whenever control authority
// is relinquished so stale integral action does not resurface.
func (p *PIDEngine) Reset() {
	p.state = PIDState{}
	p.last = PIDDiagnostics{}
}

func (p *PIDEngine) SetGains(g Gains) { p.gains = g }

func (p *PIDEngine) Gains() Gains { return p.gains }

func (p *PIDEngine) State() PIDState { return p.state }

func (p *PIDEngine) Diagnostics() PIDDiagnostics { return p.last }

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
