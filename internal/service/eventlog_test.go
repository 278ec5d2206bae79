package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"anesthesia_controller/internal/models"
	"anesthesia_controller/internal/repository"
)

// fakeEventRepo records the arguments of List.
type fakeEventRepo struct {
	gotFrom time.Time
	gotTo   time.Time
	gotType string

	events []models.ControlEvent
	err    error

	calls int
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]models.ControlEvent, error) {
	f.calls++
	f.gotFrom = from
	f.gotTo = to
	f.gotType = typ
	return f.events, f.err
}

func (f *fakeEventRepo) Append(ctx context.Context, e models.ControlEvent) error {
	return nil
}

func TestLogFilter_normalize(t *testing.T) {
	t.Parallel()

	plus2 := time.FixedZone("UTC+2", 2*3600)
	toUTCTime := time.Date(2025, time.September, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		in      LogFilter
		want    LogFilter
		wantErr error
	}{
		{name: "empty filter", in: LogFilter{}, want: LogFilter{}},
		{
			name: "bounds to UTC, type uppercased, operator trimmed",
			in: LogFilter{
				From:     time.Date(2025, time.September, 10, 10, 0, 0, 0, plus2),
				To:       toUTCTime,
				Type:     " estop ",
				Operator: " nurse ",
				Limit:    5,
			},
			want: LogFilter{
				From:     time.Date(2025, time.September, 10, 8, 0, 0, 0, time.UTC),
				To:       toUTCTime,
				Type:     models.EventEmergencyStop,
				Operator: "nurse",
				Limit:    5,
			},
		},
		{
			name: "from after to",
			in: LogFilter{
				From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
			},
			wantErr: errInvalidTimeRange,
		},
		{name: "unknown type", in: LogFilter{Type: "telemetry"}, wantErr: errUnknownEventType},
		{name: "negative limit", in: LogFilter{Limit: -1}, wantErr: errNegativeLimit},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.in.normalize()
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err: got %v, want %v", err, tc.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidFilter) {
					t.Fatalf("%v does not wrap ErrInvalidFilter", err)
				}
				return
			}
			if !got.From.Equal(tc.want.From) || !got.To.Equal(tc.want.To) {
				t.Fatalf("bounds: got %v..%v, want %v..%v", got.From, got.To, tc.want.From, tc.want.To)
			}
			if !got.From.IsZero() && got.From.Location() != time.UTC {
				t.Fatalf("from not in UTC: %v", got.From.Location())
			}
			if got.Type != tc.want.Type || got.Operator != tc.want.Operator || got.Limit != tc.want.Limit {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestEventLogService_List_DelegatesNormalizedParams(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{events: []models.ControlEvent{{EventID: "1"}}}
	svc := NewEventLogService(frepo)

	from := time.Date(2025, time.October, 1, 10, 0, 0, 0, time.FixedZone("UTC+5", 5*3600))
	to := time.Date(2025, time.October, 1, 12, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))

	out, err := svc.List(context.Background(), LogFilter{From: from, To: to, Type: "  alarm "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].EventID != "1" {
		t.Fatalf("unexpected events: %+v", out)
	}
	if !frepo.gotFrom.Equal(time.Date(2025, time.October, 1, 5, 0, 0, 0, time.UTC)) {
		t.Fatalf("repo gotFrom=%v", frepo.gotFrom)
	}
	if !frepo.gotTo.Equal(time.Date(2025, time.October, 1, 14, 30, 0, 0, time.UTC)) {
		t.Fatalf("repo gotTo=%v", frepo.gotTo)
	}
	if frepo.gotType != models.EventAlarm {
		t.Fatalf("repo gotType=%q", frepo.gotType)
	}
}

func TestEventLogService_List_ValidationSkipsRepo(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{}
	svc := NewEventLogService(frepo)

	_, err := svc.List(context.Background(), LogFilter{Type: "VITALS"})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter; got %v", err)
	}
	if !IsValidationError(err) {
		t.Fatalf("filter errors must count as validation errors")
	}
	if frepo.calls != 0 {
		t.Fatalf("repo called %d times on a rejected filter", frepo.calls)
	}
}

func TestEventLogService_List_RepoErrorPropagation(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{err: errors.New("ring closed")}
	svc := NewEventLogService(frepo)

	if _, err := svc.List(context.Background(), LogFilter{}); !errors.Is(err, frepo.err) {
		t.Fatalf("expected repo error to propagate; got %v", err)
	}
}

// Operator attribution and limits against the real ring buffer.
func TestEventLogService_List_OperatorAndLimit(t *testing.T) {
	t.Parallel()

	ring := repository.NewEventRing(16)
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	add := func(i int, typ, op string) {
		meta := map[string]any{"asserted": true}
		if op != "" {
			meta["operator"] = op
		}
		if err := ring.Append(context.Background(), models.ControlEvent{
			EventID:    string(rune('a' + i)),
			OccurredAt: base.Add(time.Duration(i) * time.Second),
			Type:       typ,
			Metadata:   meta,
		}); err != nil {
			t.Fatal(err)
		}
	}
	add(0, models.EventEmergencyStop, "nurse")
	add(1, models.EventStateChange, "")
	add(2, models.EventConfig, "anesthetist")
	add(3, models.EventOverride, "nurse")
	add(4, models.EventEmergencyStop, "nurse")

	svc := NewEventLogService(ring)
	ids := func(evs []models.ControlEvent) string {
		s := ""
		for _, e := range evs {
			s += e.EventID
		}
		return s
	}

	cases := []struct {
		name string
		f    LogFilter
		want string
	}{
		{"all", LogFilter{}, "abcde"},
		{"operator", LogFilter{Operator: "nurse"}, "ade"},
		{"operator and type", LogFilter{Operator: "nurse", Type: "estop"}, "ae"},
		{"newest two", LogFilter{Limit: 2}, "de"},
		{"limit above count", LogFilter{Limit: 10}, "abcde"},
		{"operator newest one", LogFilter{Operator: "nurse", Limit: 1}, "e"},
		{"unknown operator", LogFilter{Operator: "surgeon"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.List(context.Background(), tc.f)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if ids(got) != tc.want {
				t.Fatalf("got %q, want %q", ids(got), tc.want)
			}
		})
	}
}
