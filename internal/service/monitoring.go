package service

import (
	"context"
	"time"

	"anesthesia_controller/internal/control"
	"anesthesia_controller/internal/models"
	"anesthesia_controller/internal/repository"
)

type MonitoringService struct {
	statusRepo repository.StatusRepo
}

func NewMonitoringService(statusRepo repository.StatusRepo) *MonitoringService {
	return &MonitoringService{statusRepo: statusRepo}
}

// GetStatus returns the latest published status.
// Before the loop's first tick it returns a baseline INITIALIZING snapshot.
func (s *MonitoringService) GetStatus(ctx context.Context) (models.Status, error) {
	st, err := s.statusRepo.Load(ctx)
	if err != nil {
		return models.Status{}, err
	}
	if st.UpdatedAt.IsZero() {
		return baselineStatus(), nil
	}
	st.UpdatedAt = toUTC(st.UpdatedAt)
	return st, nil
}

// baselineStatus is what an operator sees before the loop has started.
func baselineStatus() models.Status {
	return models.Status{
		State:      control.StateInitializing.String(),
		Override:   string(control.OverridePID),
		AlarmLevel: control.AlarmOff.String(),
		UpdatedAt:  time.Now().UTC(),
	}
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
