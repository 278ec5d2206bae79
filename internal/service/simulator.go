package service

import (
	"context"
	"time"

	"anesthesia_controller/internal/logger"
	"anesthesia_controller/internal/patient"
)

// CommandSource reports the actuator command the patient is receiving.
type CommandSource interface {
	Command() int
}

// SimulatorService advances the simulated patient with the current actuator
// command and delivers the resulting vitals through Control, the same path
// a real monitor uses.
type SimulatorService struct {
	model    *patient.Model
	scenario *patient.Scenario
	control  Control
	commands CommandSource
	log      *logger.Logger

	step           int
	emergencyStop  bool
	manualOverride bool
	silent         bool
}

// NewSimulatorService returns a simulator. scenario may be nil.
func NewSimulatorService(model *patient.Model, scenario *patient.Scenario, ctl Control, commands CommandSource, log *logger.Logger) *SimulatorService {
	return &SimulatorService{
		model:    model,
		scenario: scenario,
		control:  ctl,
		commands: commands,
		log:      log,
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if err := s.Step(ctx, now); err != nil && s.log != nil && ctx.Err() == nil {
				s.log.Errorw("simulator_step_failed", "step", s.step, "err", err)
			}
		}
	}
}

// Step advances the patient once and delivers vitals stamped with now,
// unless the scenario has silenced the monitor.
func (s *SimulatorService) Step(ctx context.Context, now time.Time) error {
	f := s.scenario.At(s.step)
	s.step++

	if f.EmergencyStop != s.emergencyStop {
		s.emergencyStop = f.EmergencyStop
		if err := s.control.SetEmergencyStop(ctx, f.EmergencyStop); err != nil {
			return err
		}
	}
	if f.ManualOverride != s.manualOverride {
		s.manualOverride = f.ManualOverride
		if err := s.control.SetManualOverride(ctx, f.ManualOverride); err != nil {
			return err
		}
	}

	v := s.model.Step(s.commands.Command())
	if f.Silent {
		if !s.silent && s.log != nil {
			s.log.Warnw("monitor_silenced", "step", s.step-1)
		}
		s.silent = true
		return nil
	}
	s.silent = false

	v = f.Apply(v)
	v.Timestamp = now.UTC()
	return s.control.IngestVitals(ctx, fromSnapshot(v))
}

// Steps is the number of patient updates so far.
func (s *SimulatorService) Steps() int { return s.step }
