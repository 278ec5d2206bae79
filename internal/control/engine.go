package control

import (
	"errors"
	"fmt"
	"time"
)

// Nominal scheduling periods.
const (
	DefaultTickPeriod        = 100 * time.Millisecond
	DefaultSafetyPeriod      = 500 * time.Millisecond
	DefaultControlPeriod     = time.Second
	DefaultStaleAfter        = time.Second
	DefaultSignalLossTimeout = 3 * time.Second
	DefaultAlarmDebounce     = 500 * time.Millisecond
)

const causeEmergencyStop = "emergency stop"

// ErrInvalidTiming is returned for non-positive or inconsistent periods.
var ErrInvalidTiming = errors.New("invalid timing")

// Config is the static engine configuration.
type Config struct {
	TickPeriod        time.Duration
	SafetyPeriod      time.Duration
	ControlPeriod     time.Duration
	StaleAfter        time.Duration
	SignalLossTimeout time.Duration
	AlarmDebounce     time.Duration

	Thresholds  Thresholds
	Gains       Gains
	IntegralMax float64
	Limits      InfusionLimits
}

func DefaultConfig() Config {
	return Config{
		TickPeriod:        DefaultTickPeriod,
		SafetyPeriod:      DefaultSafetyPeriod,
		ControlPeriod:     DefaultControlPeriod,
		StaleAfter:        DefaultStaleAfter,
		SignalLossTimeout: DefaultSignalLossTimeout,
		AlarmDebounce:     DefaultAlarmDebounce,
		Thresholds:        DefaultThresholds(),
		Gains:             DefaultGains(),
		IntegralMax:       DefaultIntegralMax,
		Limits:            DefaultInfusionLimits(),
	}
}

func (c Config) Validate() error {
	switch {
	case c.TickPeriod <= 0 || c.SafetyPeriod <= 0 || c.ControlPeriod <= 0:
		return fmt.Errorf("%w: periods must be positive", ErrInvalidTiming)
	case c.SafetyPeriod < c.TickPeriod || c.ControlPeriod < c.TickPeriod:
		return fmt.Errorf("%w: safety and control periods must be at least one tick", ErrInvalidTiming)
	case c.StaleAfter <= 0 || c.SignalLossTimeout < c.StaleAfter:
		return fmt.Errorf("%w: signal loss timeout must not be shorter than stale-after", ErrInvalidTiming)
	case c.AlarmDebounce < 0:
		return fmt.Errorf("%w: alarm debounce must not be negative", ErrInvalidTiming)
	case !(c.IntegralMax > 0):
		return fmt.Errorf("%w: integral max must be positive", ErrInvalidGains)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.Gains.Validate(); err != nil {
		return err
	}
	return c.Limits.Validate()
}

// Output is everything one tick produces for the reporting and actuation
// collaborators.
type Output struct {
	At              time.Time       `json:"at"`
	State           SystemState     `json:"state"`
	ActuatorCommand int             `json:"actuator_command"`
	TargetAngle     int             `json:"target_angle"`
	Override        Override        `json:"override"`
	Alarm           AlarmStatus     `json:"alarm"`
	Verdict         SafetyVerdict   `json:"verdict"`
	PID             PIDDiagnostics  `json:"pid"`
	Vitals          *VitalsSnapshot `json:"vitals,omitempty"`
	Stale           bool            `json:"stale"`
	RejectedVitals  int             `json:"-"`
	SafetyRan       bool            `json:"-"`
	ControlRan      bool            `json:"-"`
	Transitions     []Transition    `json:"-"`
}

// Engine is the explicit control context. It owns every piece of mutable
// controller state and is driven by a single goroutine; it does no locking.
type Engine struct {
	cfg      Config
	pid      *PIDEngine
	infusion *InfusionRateManager
	alarms   *AlarmController
	sm       *StateMachine

	signals   Signals
	pending   []VitalsSnapshot
	vitals    VitalsSnapshot
	hasVitals bool

	started     time.Time
	lastSafety  time.Time
	lastControl time.Time

	verdict  SafetyVerdict
	alarm    AlarmStatus
	override Override
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		pid:      NewPIDEngine(cfg.Gains, cfg.IntegralMax),
		infusion: NewInfusionRateManager(cfg.Limits),
		alarms:   NewAlarmController(cfg.AlarmDebounce),
		sm:       NewStateMachine(),
		override: OverridePID,
	}, nil
}

// IngestVitals queues a snapshot for the next tick. A zero timestamp is
// stamped with that tick's time.
func (e *Engine) IngestVitals(s VitalsSnapshot) {
	e.pending = append(e.pending, s)
}

// accept moves queued snapshots into the engine against the tick clock.
// Snapshots dated more than one tick ahead of now, or older than the
// signal-loss timeout, are rejected and counted. Snapshots older than the
// current one are ignored.
func (e *Engine) accept(now time.Time) (rejected int) {
	for _, s := range e.pending {
		if s.Timestamp.IsZero() {
			s.Timestamp = now
		}
		switch {
		case s.Timestamp.After(now.Add(e.cfg.TickPeriod)),
			now.Sub(s.Timestamp) > e.cfg.SignalLossTimeout:
			rejected++
			continue
		case e.hasVitals && s.Timestamp.Before(e.vitals.Timestamp):
			continue
		}
		e.vitals = s
		e.hasVitals = true
	}
	clear(e.pending)
	e.pending = e.pending[:0]
	return rejected
}

func (e *Engine) SetEmergencyStop(on bool) { e.signals.EmergencyStop = on }

func (e *Engine) SetManualOverride(on bool) { e.signals.ManualOverride = on }

// ConfigureThresholds replaces the threshold table. An invalid table is
// rejected and the previous one stays active.
func (e *Engine) ConfigureThresholds(t Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	e.cfg.Thresholds = t
	return nil
}

// ConfigureGains replaces the PID gains without touching PID state.
func (e *Engine) ConfigureGains(kp, ki, kd float64) error {
	g := Gains{Kp: kp, Ki: ki, Kd: kd}
	if err := g.Validate(); err != nil {
		return err
	}
	e.cfg.Gains = g
	e.pid.SetGains(g)
	return nil
}

func (e *Engine) State() SystemState { return e.sm.State() }

func (e *Engine) Thresholds() Thresholds { return e.cfg.Thresholds }

func (e *Engine) Gains() Gains { return e.cfg.Gains }

func (e *Engine) PIDState() PIDState { return e.pid.State() }

// Tick runs one scheduler cycle. Within a tick the hardware signals are
// handled first, then vitals, then safety evaluation, then control, so a
// critical condition detected this tick shapes this tick's command.
func (e *Engine) Tick(now time.Time) Output {
	if e.started.IsZero() {
		e.started = now
	}
	out := Output{At: now}

	trs, act := e.sm.ApplySignals(e.signals)
	out.Transitions = append(out.Transitions, trs...)
	e.apply(act)

	out.RejectedVitals = e.accept(now)

	if due(e.lastSafety, now, e.cfg.SafetyPeriod) {
		e.lastSafety = now
		e.verdict = e.evaluate(now)
		e.alarm = e.alarms.Derive(e.verdict, now)
		out.SafetyRan = true
	}

	if due(e.lastControl, now, e.cfg.ControlPeriod) {
		dt := e.cfg.ControlPeriod.Seconds()
		if !e.lastControl.IsZero() {
			dt = now.Sub(e.lastControl).Seconds()
		}
		e.lastControl = now
		switch {
		case e.sm.Automatic():
			e.control(dt)
			out.ControlRan = true
		case e.sm.State() == StateManualMode:
			e.infusion.Hold()
			e.override = OverrideManualHold
		}
	}

	trs, act = e.sm.Advance(Observation{
		SelfTestOK:  e.hasVitals,
		Alarm:       e.alarm.Level,
		ControlRan:  out.ControlRan,
		TargetAngle: e.infusion.State().TargetAngle,
	})
	out.Transitions = append(out.Transitions, trs...)
	e.apply(act)

	st := e.infusion.State()
	out.State = e.sm.State()
	out.ActuatorCommand = st.CurrentAngle
	out.TargetAngle = st.TargetAngle
	out.Override = e.override
	out.Verdict = e.verdict
	out.Stale = e.verdict.Stale
	out.PID = e.pid.Diagnostics()
	out.Alarm = e.alarm
	if out.State == StateEmergencyStop {
		out.Alarm = AlarmStatus{
			Level:        AlarmCritical,
			Causes:       append([]string{causeEmergencyStop}, e.alarm.Causes...),
			SpO2Critical: e.alarm.SpO2Critical,
		}
	}
	if e.hasVitals {
		v := e.vitals
		out.Vitals = &v
	}
	return out
}

func (e *Engine) evaluate(now time.Time) SafetyVerdict {
	if !e.hasVitals {
		if waited := now.Sub(e.started); waited > e.cfg.SignalLossTimeout {
			return NoSignal(waited)
		}
		return SafetyVerdict{}
	}
	v := Evaluate(e.vitals, e.cfg.Thresholds)
	return ApplyStaleness(v, now.Sub(e.vitals.Timestamp), e.cfg.StaleAfter, e.cfg.SignalLossTimeout)
}

func (e *Engine) control(dt float64) {
	var pidOut float64
	if e.hasVitals && !e.verdict.SignalLoss {
		pidOut = e.pid.Update(e.cfg.Thresholds.HeartRate.Target-e.vitals.HeartRate, dt)
	}
	_, e.override = e.infusion.Advance(pidOut, e.verdict)
}

func (e *Engine) apply(act Action) {
	if act.Has(ActionResetPID) {
		e.pid.Reset()
	}
	if act.Has(ActionForceZero) {
		e.infusion.EmergencyZero()
		e.override = OverrideEmergencyStop
	}
	if act.Has(ActionHoldActuator) {
		e.infusion.Hold()
		e.override = OverrideManualHold
	}
}

func due(last, now time.Time, period time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= period
}
