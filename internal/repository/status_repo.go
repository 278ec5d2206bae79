package repository

import (
	"context"
	"sync"
	"time"

	"anesthesia_controller/internal/models"
)

// StatusMemory keeps the most recent status report.
type StatusMemory struct {
	mu     sync.RWMutex
	status models.Status
}

func NewStatusMemory() *StatusMemory {
	return &StatusMemory{}
}

// Save replaces the stored report. UpdatedAt is stored as UTC and set if zero.
func (r *StatusMemory) Save(ctx context.Context, s models.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	} else {
		s.UpdatedAt = s.UpdatedAt.UTC()
	}
	s.AlarmCauses = append([]string(nil), s.AlarmCauses...)
	if s.Vitals != nil {
		v := *s.Vitals
		s.Vitals = &v
	}

	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
	return nil
}

// Load returns the stored report, or a zero Status if nothing was saved yet.
func (r *StatusMemory) Load(ctx context.Context) (models.Status, error) {
	if err := ctx.Err(); err != nil {
		return models.Status{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.status
	s.AlarmCauses = append([]string(nil), s.AlarmCauses...)
	if s.Vitals != nil {
		v := *s.Vitals
		s.Vitals = &v
	}
	return s, nil
}
