package alarm

import (
	"errors"
	"fmt"
)

// Kind discriminates the scheduling mode of a request.
type Kind string

const (
	// KindOneShot fires once after a relative delay.
	KindOneShot Kind = "one_shot"
	// KindDaily fires every day at a fixed local time of day.
	KindDaily Kind = "daily"
)

// ErrInvalidRequest is the cause of every validation failure.
var ErrInvalidRequest = errors.New("invalid alarm request")

// Mode describes when a request is due.
// Only the fields matching Kind are meaningful.
type Mode struct {
	// Kind selects between OneShot and Daily.
	Kind Kind
	// DelaySeconds is the relative delay of a one-shot alarm.
	DelaySeconds int
	// Hour is the local hour (0..23) of a daily alarm.
	Hour int
	// Minute is the local minute (0..59) of a daily alarm.
	Minute int
}

// OneShot returns a mode firing once delaySeconds after scheduling.
func OneShot(delaySeconds int) Mode {
	return Mode{Kind: KindOneShot, DelaySeconds: delaySeconds}
}

// Daily returns a mode firing every day at hour:minute local time.
func Daily(hour, minute int) Mode {
	return Mode{Kind: KindDaily, Hour: hour, Minute: minute}
}

// IsDaily reports whether the mode recurs.
func (m Mode) IsDaily() bool {
	return m.Kind == KindDaily
}

// String renders the mode for logs.
func (m Mode) String() string {
	switch m.Kind {
	case KindDaily:
		return fmt.Sprintf("daily %02d:%02d", m.Hour, m.Minute)
	case KindOneShot:
		return fmt.Sprintf("once in %ds", m.DelaySeconds)
	default:
		return "unknown"
	}
}

// Request is the unit of work submitted to the scheduler.
type Request struct {
	// Identifier names the alarm slot; scheduling the same identifier again replaces it.
	Identifier int
	// Title is forwarded verbatim to the notification sink.
	Title string
	// Body is forwarded verbatim to the notification sink.
	Body string
	// Mode decides how the trigger instant is computed.
	Mode Mode
}

// Validate checks the request shape.
// Daily bounds are always enforced. With strict set, one-shot delays must be positive;
// otherwise non-positive delays are accepted and fire as soon as possible.
func (r *Request) Validate(strict bool) error {
	if r == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}

	switch r.Mode.Kind {
	case KindOneShot:
		if strict && r.Mode.DelaySeconds <= 0 {
			return fmt.Errorf("%w: delay must be positive, got %d", ErrInvalidRequest, r.Mode.DelaySeconds)
		}
	case KindDaily:
		if r.Mode.Hour < 0 || r.Mode.Hour > 23 {
			return fmt.Errorf("%w: hour %d out of range 0..23", ErrInvalidRequest, r.Mode.Hour)
		}

		if r.Mode.Minute < 0 || r.Mode.Minute > 59 {
			return fmt.Errorf("%w: minute %d out of range 0..59", ErrInvalidRequest, r.Mode.Minute)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, r.Mode.Kind)
	}

	return nil
}
