package service

import (
	"context"
	"errors"
	"time"

	"anesthesia_controller/internal/control"
	"anesthesia_controller/internal/logger"
	"anesthesia_controller/internal/models"
	"anesthesia_controller/internal/repository"

	"github.com/google/uuid"
)

// ControlService validates operator input and forwards it to the loop.
type ControlService struct {
	loop      *LoopService
	eventRepo repository.EventRepo
	log       *logger.Logger
}

func NewControlService(loop *LoopService, eventRepo repository.EventRepo, log *logger.Logger) *ControlService {
	return &ControlService{loop: loop, eventRepo: eventRepo, log: log}
}

// IsValidationError reports whether err is a rejected input rather than a
// failure of the service itself.
func IsValidationError(err error) bool {
	for _, target := range []error{
		control.ErrInvalidThresholds,
		control.ErrInvalidGains,
		control.ErrInvalidLimits,
		control.ErrInvalidTiming,
		ErrInvalidFilter,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IngestVitals delivers a monitor snapshot. Vitals are not recorded as events.
func (s *ControlService) IngestVitals(ctx context.Context, v models.Vitals) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.loop.Deliver(toSnapshot(v))
	return nil
}

func (s *ControlService) SetEmergencyStop(ctx context.Context, asserted bool) error {
	s.loop.SetEmergencyStop(asserted)
	desc := "Emergency stop released"
	if asserted {
		desc = "Emergency stop asserted"
	}
	if s.log != nil {
		s.log.Warnw("emergency_stop", "asserted", asserted, "operator", operatorOf(ctx))
	}
	return s.appendEvent(ctx, models.EventEmergencyStop, desc, map[string]any{"asserted": asserted})
}

func (s *ControlService) SetManualOverride(ctx context.Context, asserted bool) error {
	s.loop.SetManualOverride(asserted)
	desc := "Manual override released"
	if asserted {
		desc = "Manual override asserted"
	}
	if s.log != nil {
		s.log.Infow("manual_override", "asserted", asserted, "operator", operatorOf(ctx))
	}
	return s.appendEvent(ctx, models.EventOverride, desc, map[string]any{"asserted": asserted})
}

// ConfigureThresholds rejects an invalid table; the active one stays in place.
func (s *ControlService) ConfigureThresholds(ctx context.Context, t control.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.loop.Submit(ctx, func(e *control.Engine) error { return e.ConfigureThresholds(t) }); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Infow("thresholds_updated", "operator", operatorOf(ctx))
	}
	return s.appendEvent(ctx, models.EventConfig, "Thresholds updated", map[string]any{"thresholds": t})
}

// ConfigureGains replaces the PID gains without resetting the integral.
func (s *ControlService) ConfigureGains(ctx context.Context, g control.Gains) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if err := s.loop.Submit(ctx, func(e *control.Engine) error { return e.ConfigureGains(g.Kp, g.Ki, g.Kd) }); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Infow("gains_updated", "kp", g.Kp, "ki", g.Ki, "kd", g.Kd, "operator", operatorOf(ctx))
	}
	return s.appendEvent(ctx, models.EventConfig, "PID gains updated", map[string]any{"kp": g.Kp, "ki": g.Ki, "kd": g.Kd})
}

// appendEvent attributes the event to the operator found in ctx, if any.
func (s *ControlService) appendEvent(ctx context.Context, typ, desc string, meta map[string]any) error {
	if op, ok := OperatorFrom(ctx); ok {
		meta["operator"] = op
	}
	return s.eventRepo.Append(ctx, models.ControlEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
}

// operatorOf names the event source for logs; config reloads carry no operator.
func operatorOf(ctx context.Context) string {
	if op, ok := OperatorFrom(ctx); ok {
		return op
	}
	return "system"
}

func toSnapshot(v models.Vitals) control.VitalsSnapshot {
	return control.VitalsSnapshot{
		HeartRate:       v.HeartRate,
		MAP:             v.MAP,
		RespiratoryRate: v.RespiratoryRate,
		SpO2:            v.SpO2,
		Timestamp:       v.Timestamp,
	}
}

func fromSnapshot(v control.VitalsSnapshot) models.Vitals {
	return models.Vitals{
		HeartRate:       v.HeartRate,
		MAP:             v.MAP,
		RespiratoryRate: v.RespiratoryRate,
		SpO2:            v.SpO2,
		Timestamp:       v.Timestamp,
	}
}
