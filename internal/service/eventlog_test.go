package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hvac_gateway/internal/models"
)

// fakeEventRepo satisfies repository.EventRepo and records what it was given.
type fakeEventRepo struct {
	mu sync.Mutex

	gotFrom time.Time
	gotTo   time.Time
	gotOp   models.Operation

	events    []models.CommandEvent
	appended  []models.CommandEvent
	err       error
	appendErr error

	calls int
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, op models.Operation) ([]models.CommandEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFrom = from
	f.gotTo = to
	f.gotOp = op
	return f.events, f.err
}

func (f *fakeEventRepo) Append(ctx context.Context, e models.CommandEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, e)
	return f.appendErr
}

func (f *fakeEventRepo) appends() []models.CommandEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CommandEvent(nil), f.appended...)
}

func Test_normalizeToUTC(t *testing.T) {
	t.Parallel()

	if got := normalizeToUTC(time.Time{}); !got.IsZero() {
		t.Fatalf("zero time changed: %v", got)
	}
	in := time.Date(2025, time.August, 1, 12, 34, 56, 0, time.FixedZone("UTC+3", 3*3600))
	got := normalizeToUTC(in)
	want := time.Date(2025, time.August, 1, 9, 34, 56, 0, time.UTC)
	if got.Location() != time.UTC || !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func Test_normalizeAndValidateFilter(t *testing.T) {
	t.Parallel()

	fromLocal := time.Date(2025, time.September, 10, 10, 0, 0, 0, time.FixedZone("UTC+2", 2*3600))
	toUTC := time.Date(2025, time.September, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		in       LogFilter
		wantFrom time.Time
		wantTo   time.Time
		wantOp   models.Operation
		wantErr  error
	}{
		{name: "all zero ok", in: LogFilter{}},
		{
			name: "from after to",
			in: LogFilter{
				From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
			},
			wantErr: errInvalidTimeRange,
		},
		{
			name:     "normalize tz and operation",
			in:       LogFilter{From: fromLocal, To: toUTC, Operation: " set_mode "},
			wantFrom: time.Date(2025, time.September, 10, 8, 0, 0, 0, time.UTC),
			wantTo:   toUTC,
			wantOp:   models.OpSetMode,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotFrom, gotTo, gotOp, err := normalizeAndValidateFilter(tc.in)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v; got %v", tc.wantErr, err)
			}
			if !gotFrom.Equal(tc.wantFrom) || !gotTo.Equal(tc.wantTo) || gotOp != tc.wantOp {
				t.Fatalf("got (%v, %v, %q); want (%v, %v, %q)", gotFrom, gotTo, gotOp, tc.wantFrom, tc.wantTo, tc.wantOp)
			}
		})
	}
}

func TestEventLogService_List_DelegatesNormalizedParams(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{events: []models.CommandEvent{{EventID: "1"}}}
	svc := NewEventLogService(frepo)

	from := time.Date(2025, time.October, 1, 10, 0, 0, 0, time.FixedZone("UTC+5", 5*3600))
	to := time.Date(2025, time.October, 1, 12, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))

	out, err := svc.List(context.Background(), LogFilter{From: from, To: to, Operation: "set_valve"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].EventID != "1" || frepo.calls != 1 {
		t.Fatalf("unexpected result %+v (calls=%d)", out, frepo.calls)
	}
	if !frepo.gotFrom.Equal(time.Date(2025, time.October, 1, 5, 0, 0, 0, time.UTC)) {
		t.Fatalf("repo gotFrom=%v", frepo.gotFrom)
	}
	if !frepo.gotTo.Equal(time.Date(2025, time.October, 1, 14, 30, 0, 0, time.UTC)) {
		t.Fatalf("repo gotTo=%v", frepo.gotTo)
	}
	if frepo.gotOp != models.OpSetValve {
		t.Fatalf("repo gotOp=%q", frepo.gotOp)
	}
}

func TestEventLogService_List_ValidationError(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{}
	svc := NewEventLogService(frepo)

	_, err := svc.List(context.Background(), LogFilter{
		From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, errInvalidTimeRange) {
		t.Fatalf("expected errInvalidTimeRange; got %v", err)
	}
	if frepo.calls != 0 {
		t.Fatalf("repo should not be called on validation error, calls=%d", frepo.calls)
	}
}

func TestEventLogService_List_RepoErrorPropagation(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{err: errors.New("db down")}
	svc := NewEventLogService(frepo)

	if _, err := svc.List(context.Background(), LogFilter{}); !errors.Is(err, frepo.err) {
		t.Fatalf("expected repo error to propagate; got %v", err)
	}
}
