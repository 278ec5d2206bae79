package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"anesthesia_controller/internal/models"
	"anesthesia_controller/internal/repository"
)

// LogFilter selects events from the bounded history. Zero values do not
// filter.
type LogFilter struct {
	From     time.Time // inclusive
	To       time.Time // inclusive
	Type     string    // STATE_CHANGE, ALARM, SIGNAL, ESTOP, OVERRIDE or CONFIG
	Operator string    // operator that caused ESTOP, OVERRIDE and CONFIG events
	Limit    int       // newest N after the other filters
}

// ErrInvalidFilter wraps every rejected LogFilter.
var ErrInvalidFilter = errors.New("invalid event filter")

var (
	errInvalidTimeRange = fmt.Errorf("%w: from must not be after to", ErrInvalidFilter)
	errUnknownEventType = fmt.Errorf("%w: unknown event type", ErrInvalidFilter)
	errNegativeLimit    = fmt.Errorf("%w: limit must not be negative", ErrInvalidFilter)
)

var knownEventTypes = map[string]bool{
	models.EventStateChange:   true,
	models.EventAlarm:         true,
	models.EventSignal:        true,
	models.EventEmergencyStop: true,
	models.EventOverride:      true,
	models.EventConfig:        true,
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

// List returns matching events oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ControlEvent, error) {
	f, err := f.normalize()
	if err != nil {
		return nil, err
	}
	events, err := s.eventRepo.List(ctx, f.From, f.To, f.Type)
	if err != nil {
		return nil, err
	}
	return f.narrow(events), nil
}

// normalize converts bounds to UTC, canonicalizes the type and validates.
func (f LogFilter) normalize() (LogFilter, error) {
	f.From, f.To = toUTC(f.From), toUTC(f.To)
	f.Type = strings.ToUpper(strings.TrimSpace(f.Type))
	f.Operator = strings.TrimSpace(f.Operator)

	switch {
	case !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To):
		return LogFilter{}, errInvalidTimeRange
	case f.Type != "" && !knownEventTypes[f.Type]:
		return LogFilter{}, fmt.Errorf("%w %q", errUnknownEventType, f.Type)
	case f.Limit < 0:
		return LogFilter{}, errNegativeLimit
	}
	return f, nil
}

// narrow applies the filters the repository does not know about.
func (f LogFilter) narrow(events []models.ControlEvent) []models.ControlEvent {
	if f.Operator != "" {
		kept := events[:0:0]
		for _, e := range events {
			if op, _ := e.Metadata["operator"].(string); op == f.Operator {
				kept = append(kept, e)
			}
		}
		events = kept
	}
	if f.Limit > 0 && len(events) > f.Limit {
		events = events[len(events)-f.Limit:]
	}
	return events
}
