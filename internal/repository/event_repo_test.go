package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"anesthesia_controller/internal/models"
)

func TestEventRing_Append_SetsDefaults(t *testing.T) {
	t.Parallel()

	r := NewEventRing(4)
	before := time.Now().UTC()
	if err := r.Append(context.Background(), models.ControlEvent{Type: "  estop ", Description: "hello"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := r.List(context.Background(), time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 event, got %d", len(got))
	}
	e := got[0]
	if e.EventID == "" {
		t.Fatalf("expected generated event id")
	}
	if e.Type != models.EventEmergencyStop {
		t.Fatalf("type not normalized: %q", e.Type)
	}
	if e.OccurredAt.Location() != time.UTC || e.OccurredAt.Before(before.Add(-time.Second)) {
		t.Fatalf("unexpected occurred_at: %v", e.OccurredAt)
	}
}

func TestEventRing_Append_KeepsGivenIDAndConvertsToUTC(t *testing.T) {
	t.Parallel()

	r := NewEventRing(4)
	loc := time.FixedZone("UTC+3", 3*3600)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, loc)
	if err := r.Append(context.Background(), models.ControlEvent{EventID: "id-1", OccurredAt: at, Type: "ALARM"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, _ := r.List(context.Background(), time.Time{}, time.Time{}, "")
	if got[0].EventID != "id-1" {
		t.Fatalf("event id overwritten: %q", got[0].EventID)
	}
	if !got[0].OccurredAt.Equal(at) || got[0].OccurredAt.Location() != time.UTC {
		t.Fatalf("want %v in UTC, got %v", at, got[0].OccurredAt)
	}
}

func TestEventRing_OverwritesOldest(t *testing.T) {
	t.Parallel()

	r := NewEventRing(3)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_ = r.Append(context.Background(), models.ControlEvent{
			EventID:    fmt.Sprintf("e%d", i),
			OccurredAt: base.Add(time.Duration(i) * time.Second),
			Type:       models.EventAlarm,
		})
	}

	got, err := r.List(context.Background(), time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"e2", "e3", "e4"}
	if len(got) != len(want) {
		t.Fatalf("want %d events, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].EventID != id {
			t.Fatalf("position %d: want %s, got %s", i, id, got[i].EventID)
		}
	}
}

func TestEventRing_List_Filters(t *testing.T) {
	t.Parallel()

	r := NewEventRing(16)
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	events := []models.ControlEvent{
		{EventID: "1", OccurredAt: base, Type: models.EventStateChange},
		{EventID: "2", OccurredAt: base.Add(time.Hour), Type: models.EventAlarm},
		{EventID: "3", OccurredAt: base.Add(2 * time.Hour), Type: models.EventAlarm},
		{EventID: "4", OccurredAt: base.Add(3 * time.Hour), Type: models.EventAlarm},
	}
	for _, e := range events {
		_ = r.Append(context.Background(), e)
	}

	tests := []struct {
		name     string
		from, to time.Time
		typ      string
		wantIDs  []string
	}{
		{name: "no filters", wantIDs: []string{"1", "2", "3", "4"}},
		{name: "type only", typ: " alarm ", wantIDs: []string{"2", "3", "4"}},
		{name: "inclusive range", from: base.Add(time.Hour), to: base.Add(2 * time.Hour), wantIDs: []string{"2", "3"}},
		{name: "range and type", from: base, to: base.Add(time.Hour), typ: "STATE_CHANGE", wantIDs: []string{"1"}},
		{name: "empty result", from: base.Add(10 * time.Hour), wantIDs: nil},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := r.List(context.Background(), tc.from, tc.to, tc.typ)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tc.wantIDs) {
				t.Fatalf("want %v, got %+v", tc.wantIDs, got)
			}
			for i, id := range tc.wantIDs {
				if got[i].EventID != id {
					t.Fatalf("position %d: want %s, got %s", i, id, got[i].EventID)
				}
			}
		})
	}
}

func TestEventRing_CanceledContext(t *testing.T) {
	t.Parallel()

	r := NewEventRing(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Append(ctx, models.ControlEvent{Type: "x"}); err == nil {
		t.Fatalf("expected error on canceled context")
	}
	if _, err := r.List(ctx, time.Time{}, time.Time{}, ""); err == nil {
		t.Fatalf("expected error on canceled context")
	}
}
