package scheduler

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-scheduler/internal/domain/alarm"
	"github.com/oshokin/alarm-scheduler/internal/metrics"
)

// newYork has DST transitions on 2026-03-08 and 2026-11-01.
func newYork(t *testing.T) *time.Location {
	t.Helper()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	return loc
}

func TestScheduler_OneShotTriggersAfterDelay(t *testing.T) {
	t.Parallel()

	timers := newFakeTimers()
	clock := &fixedClock{now: time.UnixMilli(1000)}
	s := New(timers, WithClock(clock), WithLocation(time.UTC))

	ack, err := s.Schedule(context.Background(), &alarm.Request{
		Identifier: 1,
		Title:      "T",
		Body:       "B",
		Mode:       alarm.OneShot(5),
	})
	require.NoError(t, err)
	require.Equal(t, 1, ack.Identifier)
	require.Equal(t, int64(6000), ack.TriggerAt.UnixMilli())

	w, ok := timers.get(1)
	require.True(t, ok)
	require.Equal(t, int64(6000), w.TriggerAt.UnixMilli())
}

func TestScheduler_DailyTrigger(t *testing.T) {
	t.Parallel()

	loc := newYork(t)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before time of day fires today",
			now:  time.Date(2026, 6, 10, 8, 0, 0, 0, loc),
			want: time.Date(2026, 6, 10, 9, 0, 0, 0, loc),
		},
		{
			name: "after time of day fires tomorrow",
			now:  time.Date(2026, 6, 10, 10, 0, 0, 0, loc),
			want: time.Date(2026, 6, 11, 9, 0, 0, 0, loc),
		},
		{
			name: "exactly at time of day fires tomorrow",
			now:  time.Date(2026, 6, 10, 9, 0, 0, 0, loc),
			want: time.Date(2026, 6, 11, 9, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			timers := newFakeTimers()
			s := New(timers, WithClock(&fixedClock{now: tt.now}), WithLocation(loc))

			ack, err := s.Schedule(context.Background(), &alarm.Request{Identifier: 2, Mode: alarm.Daily(9, 0)})
			require.NoError(t, err)
			require.True(t, ack.TriggerAt.Equal(tt.want), "got %s, want %s", ack.TriggerAt, tt.want)
			require.True(t, ack.TriggerAt.After(tt.now))
		})
	}
}

func TestScheduler_ScheduleReplacesSameIdentifier(t *testing.T) {
	t.Parallel()

	timers := newFakeTimers()
	clock := &fixedClock{now: time.UnixMilli(0)}
	s := New(timers, WithClock(clock))
	ctx := context.Background()

	_, err := s.Schedule(ctx, &alarm.Request{Identifier: 7, Title: "first", Mode: alarm.OneShot(10)})
	require.NoError(t, err)

	second, err := s.Schedule(ctx, &alarm.Request{Identifier: 7, Title: "second", Mode: alarm.OneShot(20)})
	require.NoError(t, err)

	pending := s.Pending(ctx)
	require.Len(t, pending, 1)
	require.Equal(t, "second", pending[0].Request.Title)
	require.True(t, pending[0].TriggerAt.Equal(second.TriggerAt))
}

func TestScheduler_ScheduleDailyClearsPrevious(t *testing.T) {
	t.Parallel()

	timers := newFakeTimers()
	s := New(timers, WithClock(&fixedClock{now: time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)}), WithLocation(time.UTC))
	ctx := context.Background()

	_, err := s.Schedule(ctx, &alarm.Request{Identifier: 10000, Title: "once", Mode: alarm.OneShot(60)})
	require.NoError(t, err)

	ack, err := s.ScheduleDaily(ctx, &alarm.Request{Identifier: 10000, Title: "daily", Mode: alarm.Daily(9, 0)})
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), ack.TriggerAt)

	pending := s.Pending(ctx)
	require.Len(t, pending, 1)
	require.Equal(t, "daily", pending[0].Request.Title)
	require.True(t, pending[0].Request.Mode.IsDaily())
}

func TestScheduler_ScheduleDailyCancelRefused(t *testing.T) {
	t.Parallel()

	timers := newFakeTimers()
	timers.cancelErr = errRefused
	s := New(timers)

	_, err := s.ScheduleDaily(context.Background(), &alarm.Request{Identifier: 3, Mode: alarm.Daily(9, 0)})
	require.ErrorIs(t, err, errRefused)

	kind, ok := alarm.KindOf(err)
	require.True(t, ok)
	require.Equal(t, alarm.SchedulingError, kind)
}

func TestScheduler_RegistrationRefusedSurfaces(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	timers := newFakeTimers()
	timers.registerErr = errRefused
	s := New(timers, WithMetrics(m))

	_, err = s.Schedule(context.Background(), &alarm.Request{Identifier: 1, Mode: alarm.OneShot(5)})
	require.ErrorIs(t, err, errRefused)

	kind, ok := alarm.KindOf(err)
	require.True(t, ok)
	require.Equal(t, alarm.SchedulingError, kind)
	require.Empty(t, timers.Pending())

	count, err := testutil.GatherAndCount(reg, "alarm_schedule_failures_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestScheduler_ValidationFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		strict bool
		req    *alarm.Request
	}{
		{name: "nil request", req: nil},
		{name: "hour out of range", req: &alarm.Request{Identifier: 1, Mode: alarm.Daily(24, 0)}},
		{name: "minute out of range", req: &alarm.Request{Identifier: 1, Mode: alarm.Daily(9, 60)}},
		{name: "unknown mode", req: &alarm.Request{Identifier: 1}},
		{name: "strict zero delay", strict: true, req: &alarm.Request{Identifier: 1, Mode: alarm.OneShot(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			timers := newFakeTimers()
			s := New(timers, WithStrictTriggers(tt.strict))

			_, err := s.Schedule(context.Background(), tt.req)
			require.ErrorIs(t, err, alarm.ErrInvalidRequest)

			kind, _ := alarm.KindOf(err)
			require.Equal(t, alarm.SchedulingError, kind)
			require.Empty(t, timers.Pending())
		})
	}
}

func TestScheduler_PermissiveAcceptsPastDelay(t *testing.T) {
	t.Parallel()

	timers := newFakeTimers()
	s := New(timers, WithClock(&fixedClock{now: time.UnixMilli(10_000)}))

	ack, err := s.Schedule(context.Background(), &alarm.Request{Identifier: 1, Mode: alarm.OneShot(-5)})
	require.NoError(t, err)
	require.Equal(t, int64(5000), ack.TriggerAt.UnixMilli())
}

func TestScheduler_CancelUnknownIsNoop(t *testing.T) {
	t.Parallel()

	timers := newFakeTimers()
	s := New(timers, WithClock(&fixedClock{now: time.UnixMilli(0)}))
	ctx := context.Background()

	_, err := s.Schedule(ctx, &alarm.Request{Identifier: 1, Mode: alarm.OneShot(5)})
	require.NoError(t, err)

	ack, err := s.Cancel(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, 42, ack.Identifier)
	require.Len(t, timers.Pending(), 1)

	_, err = s.Cancel(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, timers.Pending())
}

func TestScheduler_CancelRefusedSurfaces(t *testing.T) {
	t.Parallel()

	timers := newFakeTimers()
	timers.cancelErr = errRefused
	s := New(timers)

	_, err := s.Cancel(context.Background(), 1)
	require.ErrorIs(t, err, errRefused)

	kind, ok := alarm.KindOf(err)
	require.True(t, ok)
	require.Equal(t, alarm.CancellationError, kind)
}

func TestScheduler_RearmFallsBackAfterDowntime(t *testing.T) {
	t.Parallel()

	timers := newFakeTimers()
	// Three days after the previous trigger, at 10:00.
	clock := &fixedClock{now: time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)}
	s := New(timers, WithClock(clock), WithLocation(time.UTC))

	req := &alarm.Request{Identifier: 2, Mode: alarm.Daily(9, 0)}
	ctx := context.Background()

	require.NoError(t, timers.RegisterExactWake(ctx, 2, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC), nil))

	fired, ok := timers.take(2)
	require.True(t, ok)

	ack, err := s.Rearm(ctx, req, fired)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC), ack.TriggerAt)
}

func TestScheduler_ScheduleDailyInvalidKeepsPrevious(t *testing.T) {
	t.Parallel()

	timers := newFakeTimers()
	clock := &fixedClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	s := New(timers, WithClock(clock), WithLocation(time.UTC))
	ctx := context.Background()

	_, err := s.ScheduleDaily(ctx, &alarm.Request{Identifier: 7, Title: "kept", Mode: alarm.Daily(9, 0)})
	require.NoError(t, err)

	for _, mode := range []alarm.Mode{alarm.Daily(24, 0), alarm.Daily(9, 60)} {
		_, err = s.ScheduleDaily(ctx, &alarm.Request{Identifier: 7, Mode: mode})
		require.ErrorIs(t, err, alarm.ErrInvalidRequest)

		w, ok := timers.get(7)
		require.True(t, ok)
		require.Equal(t, time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC), w.TriggerAt)
	}

	pending := s.Pending(ctx)
	require.Len(t, pending, 1)
	require.Equal(t, "kept", pending[0].Request.Title)
}

func TestScheduler_PendingSkipsUndecodable(t *testing.T) {
	t.Parallel()

	timers := newFakeTimers()
	ctx := context.Background()

	require.NoError(t, timers.RegisterExactWake(ctx, 5, time.UnixMilli(1), []byte("garbage")))

	s := New(timers, WithClock(&fixedClock{now: time.UnixMilli(0)}))

	_, err := s.Schedule(ctx, &alarm.Request{Identifier: 6, Title: "ok", Mode: alarm.OneShot(1)})
	require.NoError(t, err)

	pending := s.Pending(ctx)
	require.Len(t, pending, 1)
	require.Equal(t, 6, pending[0].Request.Identifier)
}
