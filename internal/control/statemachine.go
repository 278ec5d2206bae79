package control

// SystemState is the authoritative controller mode.
type SystemState int

const (
	StateInitializing SystemState = iota
	StateMonitoring
	StateActiveControl
	StateAlarm
	StateEmergencyStop
	StateManualMode
)

func (s SystemState) String() string {
	switch s {
	case StateMonitoring:
		return "MONITORING"
	case StateActiveControl:
		return "ACTIVE_CONTROL"
	case StateAlarm:
		return "ALARM"
	case StateEmergencyStop:
		return "EMERGENCY_STOP"
	case StateManualMode:
		return "MANUAL_MODE"
	default:
		return "INITIALIZING"
	}
}

func (s SystemState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Transition records one state change and what triggered it.
type Transition struct {
	From   SystemState `json:"from"`
	To     SystemState `json:"to"`
	Reason string      `json:"reason"`
}

// Action is a side effect the engine must apply after a transition.
type Action uint8

const (
	ActionResetPID Action = 1 << iota
	ActionForceZero
	ActionHoldActuator
)

func (a Action) Has(x Action) bool { return a&x != 0 }

// Signals are the two hardware inputs sampled at the start of every tick.
type Signals struct {
	EmergencyStop  bool
	ManualOverride bool
}

// Observation is what the rest of the tick produced.
type Observation struct {
	SelfTestOK  bool
	Alarm       AlarmLevel
	ControlRan  bool
	TargetAngle int
}

// StateMachine reconciles automatic control, alarms, emergency stop and
// manual override.
type StateMachine struct {
	state SystemState
	// episodeCritical is set while an alarm episode has reached Critical.
	episodeCritical bool
}

func NewStateMachine() *StateMachine { return &StateMachine{state: StateInitializing} }

func (sm *StateMachine) State() SystemState { return sm.state }

// Automatic reports whether PID and safety logic may move the actuator.
func (sm *StateMachine) Automatic() bool {
	switch sm.state {
	case StateMonitoring, StateActiveControl, StateAlarm:
		return true
	}
	return false
}

func (sm *StateMachine) move(to SystemState, reason string) Transition {
	tr := Transition{From: sm.state, To: to, Reason: reason}
	sm.state = to
	return tr
}

// ApplySignals handles the hardware inputs. Emergency stop wins over every
// other input, manual override included.
func (sm *StateMachine) ApplySignals(sig Signals) ([]Transition, Action) {
	var (
		trs []Transition
		act Action
	)
	if sig.EmergencyStop {
		if sm.state != StateEmergencyStop {
			trs = append(trs, sm.move(StateEmergencyStop, "emergency stop asserted"))
			act |= ActionResetPID | ActionForceZero
			sm.episodeCritical = false
		}
		return trs, act
	}
	if sm.state == StateEmergencyStop {
		trs = append(trs, sm.move(StateMonitoring, "emergency stop released"))
	}
	switch {
	case sig.ManualOverride && sm.state != StateManualMode:
		trs = append(trs, sm.move(StateManualMode, "manual override asserted"))
		act |= ActionResetPID | ActionHoldActuator
		sm.episodeCritical = false
	case !sig.ManualOverride && sm.state == StateManualMode:
		trs = append(trs, sm.move(StateMonitoring, "manual override released"))
	}
	return trs, act
}

// Advance applies self-test, alarm and target-angle transitions.
func (sm *StateMachine) Advance(obs Observation) ([]Transition, Action) {
	var (
		trs []Transition
		act Action
	)
	switch sm.state {
	case StateInitializing:
		if obs.SelfTestOK {
			trs = append(trs, sm.move(StateMonitoring, "self-test complete"))
		}
	case StateMonitoring, StateActiveControl:
		if obs.Alarm != AlarmOff {
			sm.episodeCritical = obs.Alarm == AlarmCritical
			trs = append(trs, sm.move(StateAlarm, "alarm "+obs.Alarm.String()))
			break
		}
		if !obs.ControlRan {
			break
		}
		if sm.state == StateMonitoring && obs.TargetAngle > 0 {
			trs = append(trs, sm.move(StateActiveControl, "target angle above zero"))
		} else if sm.state == StateActiveControl && obs.TargetAngle == 0 {
			trs = append(trs, sm.move(StateMonitoring, "target angle zero"))
		}
	case StateAlarm:
		if obs.Alarm == AlarmCritical {
			sm.episodeCritical = true
		}
		if obs.Alarm == AlarmOff {
			trs = append(trs, sm.move(StateMonitoring, "alarm cleared"))
			if sm.episodeCritical {
				act |= ActionResetPID
			}
			sm.episodeCritical = false
		}
	}
	return trs, act
}
