package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"anesthesia_controller/internal/models"

	"github.com/google/uuid"
)

// DefaultEventCapacity is used when a non-positive capacity is configured.
const DefaultEventCapacity = 1024

// EventRing is a bounded in-memory event log. Once full, the oldest event is
// overwritten.
type EventRing struct {
	mu     sync.RWMutex
	buf    []models.ControlEvent
	next   int
	filled bool
}

func NewEventRing(capacity int) *EventRing {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventRing{buf: make([]models.ControlEvent, capacity)}
}

// Append stores a new event. If EventID or OccurredAt are empty, they’re set.
func (r *EventRing) Append(ctx context.Context, e models.ControlEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}
	e.Type = strings.ToUpper(strings.TrimSpace(e.Type))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.filled = true
	}
	return nil
}

// List returns events filtered by [from, to] (inclusive) and/or type, ordered ASC.
func (r *EventRing) List(ctx context.Context, from, to time.Time, typ string) ([]models.ControlEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	typ = strings.ToUpper(strings.TrimSpace(typ))

	r.mu.RLock()
	stored := r.ordered()
	r.mu.RUnlock()

	out := make([]models.ControlEvent, 0, len(stored))
	for _, e := range stored {
		if !from.IsZero() && e.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.OccurredAt.After(to) {
			continue
		}
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// ordered returns the stored events oldest first. Callers hold the lock.
func (r *EventRing) ordered() []models.ControlEvent {
	if !r.filled {
		return append([]models.ControlEvent(nil), r.buf[:r.next]...)
	}
	out := make([]models.ControlEvent, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}
