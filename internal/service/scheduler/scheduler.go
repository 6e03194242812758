package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/alarm-scheduler/internal/domain/alarm"
	"github.com/oshokin/alarm-scheduler/internal/logger"
	"github.com/oshokin/alarm-scheduler/internal/metrics"
	"github.com/oshokin/alarm-scheduler/internal/timer"
)

// TimerService is the exact-wake service alarms are registered with.
type TimerService interface {
	RegisterExactWake(ctx context.Context, id int, triggerAt time.Time, payload []byte) error
	ReregisterExactWake(ctx context.Context, fired timer.Wake, triggerAt time.Time, payload []byte) error
	Cancel(ctx context.Context, id int) error
	Pending() []timer.Wake
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// systemClock reads the wall clock.
type systemClock struct{}

// Now returns time.Now.
func (systemClock) Now() time.Time { return time.Now() }

// Ack acknowledges a registration.
type Ack struct {
	// Identifier is the registered alarm slot.
	Identifier int
	// TriggerAt is when the alarm will fire, zero for cancellations.
	TriggerAt time.Time
}

// Pending describes a registered alarm.
type Pending struct {
	Request   *alarm.Request
	TriggerAt time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLocation sets the zone daily alarms are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithStrictTriggers rejects one-shot alarms with a non-positive delay.
func WithStrictTriggers(strict bool) Option {
	return func(s *Scheduler) {
		s.strict = strict
	}
}

// WithMetrics records scheduling outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// Scheduler computes trigger instants and registers them with the timer service.
// It holds no alarm state of its own.
type Scheduler struct {
	timers  TimerService
	clock   Clock
	loc     *time.Location
	strict  bool
	metrics *metrics.Metrics
}

// New creates a scheduler backed by timers.
func New(timers TimerService, opts ...Option) *Scheduler {
	s := &Scheduler{
		timers: timers,
		clock:  systemClock{},
		loc:    time.Local,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Location returns the zone daily alarms are computed in.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Schedule registers req, replacing any alarm pending under the same identifier.
// Refusals are returned as alarm.SchedulingError.
func (s *Scheduler) Schedule(ctx context.Context, req *alarm.Request) (*Ack, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	return s.register(ctx, req, req.TriggerAt(s.clock.Now(), s.loc))
}

// ScheduleDaily cancels whatever is pending under req.Identifier, then schedules req.
// An invalid request is refused before anything is cancelled.
func (s *Scheduler) ScheduleDaily(ctx context.Context, req *alarm.Request) (*Ack, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	if err := s.timers.Cancel(ctx, req.Identifier); err != nil {
		s.metrics.ScheduleFailed(modeLabel(req))

		return nil, alarm.NewError(alarm.SchedulingError, req.Identifier, fmt.Errorf("clear previous alarm: %w", err))
	}

	return s.register(ctx, req, req.TriggerAt(s.clock.Now(), s.loc))
}

// Cancel removes the alarm pending under id. Unknown identifiers succeed.
// Refusals are returned as alarm.CancellationError.
func (s *Scheduler) Cancel(ctx context.Context, id int) (*Ack, error) {
	if err := s.timers.Cancel(ctx, id); err != nil {
		s.metrics.CancelFailed()
		logger.ErrorKV(ctx, "Alarm cancellation refused", "alarm_id", id, "error", err)

		return nil, alarm.NewError(alarm.CancellationError, id, err)
	}

	s.metrics.Cancelled()
	logger.InfoKV(ctx, "Alarm cancelled", "alarm_id", id)

	return &Ack{Identifier: id}, nil
}

// Rearm registers the occurrence of a daily request on the day after fired.
// When that instant has already passed (the process was down), the next
// occurrence after now is used instead. If the identifier was cancelled or
// scheduled again while fired was being handled, the error wraps
// timer.ErrSuperseded and nothing is registered.
func (s *Scheduler) Rearm(ctx context.Context, req *alarm.Request, fired timer.Wake) (*Ack, error) {
	next := alarm.FollowingDailyTrigger(fired.TriggerAt, req.Mode.Hour, req.Mode.Minute, s.loc)

	if now := s.clock.Now(); !next.After(now) {
		next = alarm.NextDailyTrigger(now, req.Mode.Hour, req.Mode.Minute, s.loc)
	}

	return s.arm(ctx, req, next, func(payload []byte) error {
		return s.timers.ReregisterExactWake(ctx, fired, next, payload)
	})
}

// Pending lists registered alarms ordered by trigger instant.
// Entries whose payload cannot be decoded are skipped.
func (s *Scheduler) Pending(ctx context.Context) []Pending {
	wakes := s.timers.Pending()
	result := make([]Pending, 0, len(wakes))

	for _, w := range wakes {
		req, err := DecodePayload(w.Payload)
		if err != nil {
			logger.WarnKV(ctx, "Skipping undecodable pending alarm", "alarm_id", w.ID, "error", err)

			continue
		}

		result = append(result, Pending{Request: req, TriggerAt: w.TriggerAt})
	}

	return result
}

// validate refuses malformed requests as alarm.SchedulingError.
func (s *Scheduler) validate(req *alarm.Request) error {
	if err := req.Validate(s.strict); err != nil {
		s.metrics.ScheduleFailed(modeLabel(req))

		return alarm.NewError(alarm.SchedulingError, identifierOf(req), err)
	}

	return nil
}

// register hands req to the timer service for triggerAt, replacing any pending alarm.
func (s *Scheduler) register(ctx context.Context, req *alarm.Request, triggerAt time.Time) (*Ack, error) {
	return s.arm(ctx, req, triggerAt, func(payload []byte) error {
		return s.timers.RegisterExactWake(ctx, req.Identifier, triggerAt, payload)
	})
}

// arm encodes req and passes the payload to submit.
func (s *Scheduler) arm(ctx context.Context, req *alarm.Request, triggerAt time.Time, submit func(payload []byte) error) (*Ack, error) {
	payload, err := EncodePayload(req)
	if err != nil {
		s.metrics.ScheduleFailed(modeLabel(req))

		return nil, alarm.NewError(alarm.SchedulingError, req.Identifier, err)
	}

	if err = submit(payload); err != nil {
		if !errors.Is(err, timer.ErrSuperseded) {
			s.metrics.ScheduleFailed(modeLabel(req))
			logger.ErrorKV(ctx, "Alarm registration refused", "alarm_id", req.Identifier, "error", err)
		}

		return nil, alarm.NewError(alarm.SchedulingError, req.Identifier, err)
	}

	s.metrics.Scheduled(modeLabel(req))

	logger.InfoKV(ctx, "Alarm scheduled",
		"alarm_id", req.Identifier,
		"mode", req.Mode.String(),
		"trigger_at", triggerAt.In(s.loc).Format(time.RFC3339),
		"trigger_ms", triggerAt.UnixMilli(),
		"in", triggerAt.Sub(s.clock.Now()).Round(time.Second).String(),
	)

	return &Ack{Identifier: req.Identifier, TriggerAt: triggerAt}, nil
}

// modeLabel names the mode for metrics.
func modeLabel(req *alarm.Request) string {
	if req == nil {
		return "unknown"
	}

	return string(req.Mode.Kind)
}

// identifierOf tolerates nil requests in error paths.
func identifierOf(req *alarm.Request) int {
	if req == nil {
		return 0
	}

	return req.Identifier
}
