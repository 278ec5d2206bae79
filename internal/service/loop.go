package service

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"anesthesia_controller/internal/control"
	"anesthesia_controller/internal/logger"
	"anesthesia_controller/internal/models"
	"anesthesia_controller/internal/repository"

	"github.com/google/uuid"
)

// CommandOutbox receives the actuator command after every tick. Offer must
// not block.
type CommandOutbox interface {
	Offer(angle int)
}

const changeQueueSize = 16

// LoopService is the only goroutine that touches the engine. Other
// goroutines reach it through a one-slot vitals mailbox, atomic signal
// flags and a queue of validated configuration changes.
type LoopService struct {
	engine     *control.Engine
	statusRepo repository.StatusRepo
	eventRepo  repository.EventRepo
	outbox     CommandOutbox
	log        *logger.Logger

	vitals  chan control.VitalsSnapshot
	changes chan func(*control.Engine) error
	wake    chan struct{}

	emergencyStop  atomic.Bool
	stopLatched    atomic.Bool // set on assert, cleared by the tick that sees it
	manualOverride atomic.Bool
	command        atomic.Int64

	// last reported values, loop goroutine only
	alarm      control.AlarmLevel
	stale      bool
	signalLoss bool
}

func NewLoopService(engine *control.Engine, statusRepo repository.StatusRepo, eventRepo repository.EventRepo, outbox CommandOutbox, log *logger.Logger) *LoopService {
	return &LoopService{
		engine:     engine,
		statusRepo: statusRepo,
		eventRepo:  eventRepo,
		outbox:     outbox,
		log:        log,
		vitals:     make(chan control.VitalsSnapshot, 1),
		changes:    make(chan func(*control.Engine) error, changeQueueSize),
		wake:       make(chan struct{}, 1),
	}
}

// Deliver hands a snapshot to the loop, replacing one not yet picked up.
func (l *LoopService) Deliver(v control.VitalsSnapshot) {
	for {
		select {
		case l.vitals <- v:
			return
		default:
		}
		select {
		case <-l.vitals:
		default:
		}
	}
}

// SetEmergencyStop records the hardware input. An assert is latched until a
// tick has seen it, so a release that arrives first cannot swallow the stop.
// Asserting also wakes the loop so the actuator is zeroed without waiting
// for the next tick.
func (l *LoopService) SetEmergencyStop(asserted bool) {
	if asserted {
		l.stopLatched.Store(true)
	}
	l.emergencyStop.Store(asserted)
	if asserted {
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
}

func (l *LoopService) SetManualOverride(asserted bool) { l.manualOverride.Store(asserted) }

// Submit queues a change that the loop applies at the start of its next tick.
func (l *LoopService) Submit(ctx context.Context, change func(*control.Engine) error) error {
	select {
	case l.changes <- change:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Command is the most recent actuator command.
func (l *LoopService) Command() int { return int(l.command.Load()) }

// Run ticks at the given interval until ctx is canceled.
func (l *LoopService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Step(ctx, time.Now())
		case <-l.wake:
			l.Step(ctx, time.Now())
		}
	}
}

// Step runs one engine tick at now. Run calls it from the ticker; headless
// runs call it directly with a virtual clock.
func (l *LoopService) Step(ctx context.Context, now time.Time) control.Output {
	l.drain()
	latched := l.stopLatched.Swap(false)
	l.engine.SetEmergencyStop(latched || l.emergencyStop.Load())
	l.engine.SetManualOverride(l.manualOverride.Load())

	out := l.engine.Tick(now)
	if out.RejectedVitals > 0 && l.log != nil {
		l.log.Warnw("vitals_rejected", "count", out.RejectedVitals, "reason", "timestamp out of range")
	}

	l.command.Store(int64(out.ActuatorCommand))
	if l.outbox != nil {
		l.outbox.Offer(out.ActuatorCommand)
	}
	l.record(ctx, out)
	if err := l.statusRepo.Save(ctx, toStatus(out)); err != nil && l.log != nil {
		l.log.Errorw("status_publish_failed", "err", err)
	}
	return out
}

func (l *LoopService) drain() {
	for {
		select {
		case v := <-l.vitals:
			l.engine.IngestVitals(v)
		case change := <-l.changes:
			if err := change(l.engine); err != nil && l.log != nil {
				l.log.Warnw("config_change_rejected", "err", err)
			}
		default:
			return
		}
	}
}

func (l *LoopService) record(ctx context.Context, out control.Output) {
	for _, tr := range out.Transitions {
		if l.log != nil {
			l.log.Infow("state_transition", "from", tr.From.String(), "to", tr.To.String(), "reason", tr.Reason)
		}
		l.appendEvent(ctx, out.At, models.EventStateChange,
			fmt.Sprintf("%s -> %s", tr.From, tr.To),
			map[string]any{"from": tr.From.String(), "to": tr.To.String(), "reason": tr.Reason})
	}

	if out.Alarm.Level != l.alarm {
		prev := l.alarm
		l.alarm = out.Alarm.Level
		meta := map[string]any{"level": out.Alarm.Level.String(), "previous": prev.String(), "causes": out.Alarm.Causes}
		if out.Alarm.Level == control.AlarmOff {
			if l.log != nil {
				l.log.Infow("alarm_cleared", "previous", prev.String())
			}
			l.appendEvent(ctx, out.At, models.EventAlarm, "Alarm cleared", meta)
		} else {
			if l.log != nil {
				l.log.Warnw("alarm_raised", "level", out.Alarm.Level.String(), "causes", out.Alarm.Causes)
			}
			l.appendEvent(ctx, out.At, models.EventAlarm, "Alarm "+out.Alarm.Level.String(), meta)
		}
	}

	if out.Stale != l.stale || out.Verdict.SignalLoss != l.signalLoss {
		l.stale, l.signalLoss = out.Stale, out.Verdict.SignalLoss
		desc, key := "Vitals restored", "signal_restored"
		switch {
		case l.signalLoss:
			desc, key = "Vitals signal lost", "signal_lost"
		case l.stale:
			desc, key = "Vitals stale", "signal_stale"
		}
		if l.log != nil {
			l.log.Warnw(key, "stale", l.stale, "signal_loss", l.signalLoss)
		}
		l.appendEvent(ctx, out.At, models.EventSignal, desc,
			map[string]any{"stale": l.stale, "signal_loss": l.signalLoss})
	}
}

func (l *LoopService) appendEvent(ctx context.Context, at time.Time, typ, desc string, meta map[string]any) {
	err := l.eventRepo.Append(ctx, models.ControlEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  at.UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil && l.log != nil {
		l.log.Errorw("event_append_failed", "type", typ, "err", err)
	}
}

func toStatus(out control.Output) models.Status {
	st := models.Status{
		State:           out.State.String(),
		ActuatorCommand: out.ActuatorCommand,
		TargetAngle:     out.TargetAngle,
		Override:        string(out.Override),
		AlarmLevel:      out.Alarm.Level.String(),
		AlarmCauses:     slices.Clone(out.Alarm.Causes),
		SpO2Critical:    out.Alarm.SpO2Critical,
		Stale:           out.Stale,
		SignalLoss:      out.Verdict.SignalLoss,
		PID: models.PIDStatus{
			Error:    out.PID.Error,
			Output:   out.PID.Output,
			Integral: out.PID.Integral,
		},
		UpdatedAt: out.At,
	}
	if out.Vitals != nil {
		v := fromSnapshot(*out.Vitals)
		st.Vitals = &v
	}
	return st
}
