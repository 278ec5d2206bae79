package service

import (
	"context"
	"time"

	"anesthesia_controller/internal/control"
	"anesthesia_controller/internal/logger"
	"anesthesia_controller/internal/models"
	"anesthesia_controller/internal/repository"
)

// Authorization issues and verifies operator bearer tokens.
type Authorization interface {
	GenerateToken(username, password string) (string, error)
	// ParseToken returns the operator username carried by the token.
	ParseToken(accessToken string) (string, error)
}

// Control accepts operator and monitor input for the control loop. Every
// method validates synchronously; accepted changes take effect at the
// loop's next tick.
type Control interface {
	IngestVitals(ctx context.Context, v models.Vitals) error
	SetEmergencyStop(ctx context.Context, asserted bool) error
	SetManualOverride(ctx context.Context, asserted bool) error
	ConfigureThresholds(ctx context.Context, t control.Thresholds) error
	ConfigureGains(ctx context.Context, g control.Gains) error
}

// Monitoring exposes the latest published status.
type Monitoring interface {
	GetStatus(ctx context.Context) (models.Status, error)
}

// EventLog exposes the bounded event history with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ControlEvent, error)
}

// Simulator feeds the loop from the simulated patient.
// Stop via context cancellation in main() for graceful shutdown.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Control
	Monitoring
	EventLog
	Authorization
	// Simulator is nil when the patient simulator is disabled.
	Simulator Simulator
	Loop      *LoopService
}

// Deps are the collaborators that do not come from the repository layer.
type Deps struct {
	Engine     *control.Engine
	Outbox     CommandOutbox
	SigningKey string
	TokenTTL   time.Duration
	Log        *logger.Logger
}

// NewService wires the repository layer and the engine into concrete services.
func NewService(repos *repository.Repository, d Deps) *Service {
	loop := NewLoopService(d.Engine, repos.StatusRepo, repos.EventRepo, d.Outbox, d.Log)
	return &Service{
		Control:       NewControlService(loop, repos.EventRepo, d.Log),
		Monitoring:    NewMonitoringService(repos.StatusRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, d.SigningKey, d.TokenTTL),
		Loop:          loop,
	}
}
