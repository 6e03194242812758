package notification

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/oshokin/alarm-scheduler/internal/config"
	"github.com/oshokin/alarm-scheduler/internal/logger"
)

// ErrPermissionDenied is returned when the user has not granted notification permission.
var ErrPermissionDenied = errors.New("notification permission denied")

// Sink shows notifications.
type Sink interface {
	// Show displays title and body under id, replacing any notification with the same id.
	Show(ctx context.Context, id int, title, body string) error
}

// Notification is a shown notification.
type Notification struct {
	ID      int
	Title   string
	Body    string
	ShownAt time.Time
}

// LogSink writes notifications to the log. It is the default for headless hosts.
type LogSink struct{}

// Show logs the notification.
func (LogSink) Show(ctx context.Context, id int, title, body string) error {
	logger.InfoKV(ctx, "Notification", "alarm_id", id, "title", title, "body", body)

	return nil
}

// Gate refuses deliveries while permission is revoked.
// Permission can be flipped at runtime, for example on configuration reload.
type Gate struct {
	next    Sink
	granted atomic.Bool
}

// NewGate wraps next with a permission check.
func NewGate(next Sink, granted bool) *Gate {
	g := &Gate{next: next}
	g.granted.Store(granted)

	return g
}

// SetGranted updates the permission.
func (g *Gate) SetGranted(granted bool) {
	g.granted.Store(granted)
}

// Granted reports the current permission.
func (g *Gate) Granted() bool {
	return g.granted.Load()
}

// Show delegates when permission is granted.
func (g *Gate) Show(ctx context.Context, id int, title, body string) error {
	if !g.granted.Load() {
		return ErrPermissionDenied
	}

	return g.next.Show(ctx, id, title, body)
}

// RateLimited spaces out deliveries with a token bucket.
type RateLimited struct {
	next    Sink
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond deliveries per second with an equal burst.
func NewRateLimited(next Sink, perSecond int) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

// Show waits for a token, then delegates.
func (r *RateLimited) Show(ctx context.Context, id int, title, body string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for delivery slot: %w", err)
	}

	return r.next.Show(ctx, id, title, body)
}

// Build assembles the sink chain described by settings: driver, optional rate
// limit, and the permission gate on the outside.
func Build(settings config.SinkConfig) (*Gate, error) {
	var (
		base Sink
		err  error
	)

	switch settings.Driver {
	case config.SinkLog, "":
		base = LogSink{}
	case config.SinkMemory:
		base = NewMemorySink()
	case config.SinkTelegram:
		base, err = NewTelegramSink(settings.Telegram.Token, settings.Telegram.ChatID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown sink driver %q", settings.Driver)
	}

	if settings.RatePerSec > 0 {
		base = NewRateLimited(base, settings.RatePerSec)
	}

	return NewGate(base, settings.SinkEnabled()), nil
}
