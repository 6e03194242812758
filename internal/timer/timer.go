package timer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/alarm-scheduler/internal/logger"
	"github.com/oshokin/alarm-scheduler/internal/repository/wake"
)

// DefaultMaxSleep caps a single sleep of the run loop.
const DefaultMaxSleep = 60 * time.Second

var (
	// ErrExactAlarmDenied is returned when exact wake-ups are not permitted.
	ErrExactAlarmDenied = errors.New("exact alarms are not permitted")
	// ErrStopped is returned once the service has shut down.
	ErrStopped = errors.New("timer service stopped")
	// ErrSuperseded is returned by ReregisterExactWake when the identifier was
	// registered again or cancelled while its previous wake-up was firing.
	ErrSuperseded = errors.New("wake superseded while firing")
	// errAlreadyRunning is returned when Run is called twice.
	errAlreadyRunning = errors.New("timer service already running")
)

// Wake is a pending wake-up.
type Wake struct {
	// ID is the caller-chosen identifier.
	ID int
	// TriggerAt is the instant the handler must be invoked.
	TriggerAt time.Time
	// Payload is carried verbatim to the handler.
	Payload []byte
	// Generation is assigned by the service and changes with every registration.
	Generation uint64
}

// Handler is invoked for every wake-up that comes due.
type Handler interface {
	OnFire(ctx context.Context, wake Wake)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, wake Wake)

// OnFire calls f.
func (f HandlerFunc) OnFire(ctx context.Context, wake Wake) {
	f(ctx, wake)
}

// Option configures a Service.
type Option func(*Service)

// WithExactAlarms grants or revokes exact wake-ups.
func WithExactAlarms(granted bool) Option {
	return func(s *Service) {
		s.exactGranted = granted
	}
}

// WithMaxSleep overrides DefaultMaxSleep.
func WithMaxSleep(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxSleep = d
		}
	}
}

// Service is an in-process exact-wake timer service.
type Service struct {
	// repo persists pending wake-ups.
	repo wake.Repository
	// exactGranted gates RegisterExactWake.
	exactGranted bool
	// maxSleep caps each wait of the run loop.
	maxSleep time.Duration

	// mu guards everything below.
	mu      sync.Mutex
	pending wakeHeap
	index   map[int]*entry
	// firing maps identifiers with a handler in flight to the generation that
	// fired. Register and Cancel drop the entry.
	firing  map[int]uint64
	seq     uint64
	running bool
	stopped bool

	// changed nudges the run loop after the earliest trigger may have moved.
	changed chan struct{}
	// inflight tracks handler goroutines.
	inflight sync.WaitGroup
}

// New creates a service persisting to repo. A nil repo keeps wake-ups in memory only.
func New(repo wake.Repository, opts ...Option) *Service {
	if repo == nil {
		repo = wake.NewMemoryRepository()
	}

	s := &Service{
		repo:         repo,
		exactGranted: true,
		maxSleep:     DefaultMaxSleep,
		index:        make(map[int]*entry),
		firing:       make(map[int]uint64),
		changed:      make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RegisterExactWake registers payload to be delivered at triggerAt under id,
// replacing any wake-up pending for the same id. The wake-up is exact and
// allowed while the host is idle: it fires at triggerAt, or immediately when
// triggerAt is already past.
func (s *Service) RegisterExactWake(ctx context.Context, id int, triggerAt time.Time, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	return s.register(ctx, id, triggerAt, payload)
}

// ReregisterExactWake registers the next wake-up for fired from inside its
// handler. It returns ErrSuperseded when RegisterExactWake or Cancel was called
// for the same identifier after fired came due, so a concurrent cancel or
// replacement is never undone.
func (s *Service) ReregisterExactWake(ctx context.Context, fired Wake, triggerAt time.Time, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	if generation, ok := s.firing[fired.ID]; !ok || generation != fired.Generation {
		return ErrSuperseded
	}

	return s.register(ctx, fired.ID, triggerAt, payload)
}

// register persists and queues a wake-up. Caller holds mu.
func (s *Service) register(ctx context.Context, id int, triggerAt time.Time, payload []byte) error {
	if !s.exactGranted {
		return ErrExactAlarmDenied
	}

	w := Wake{
		ID:         id,
		TriggerAt:  triggerAt,
		Payload:    slices.Clone(payload),
		Generation: s.seq + 1,
	}

	err := s.repo.Save(ctx, wake.Record{ID: w.ID, TriggerAt: w.TriggerAt, Payload: w.Payload})
	if err != nil {
		return fmt.Errorf("persist wake: %w", err)
	}

	s.seq++
	delete(s.firing, id)
	s.pending.upsert(s.index, w)
	s.nudge()

	logger.DebugKV(ctx, "Exact wake registered", "alarm_id", id, "trigger_at", triggerAt)

	return nil
}

// Cancel removes the wake-up pending under id. Unknown ids are not an error.
func (s *Service) Cancel(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete wake: %w", err)
	}

	delete(s.firing, id)

	if s.pending.remove(s.index, id) {
		s.nudge()
		logger.DebugKV(ctx, "Exact wake cancelled", "alarm_id", id)
	}

	return nil
}

// SetExactAlarms grants or revokes exact wake-ups at runtime.
// Already pending wake-ups are kept either way.
func (s *Service) SetExactAlarms(granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exactGranted = granted
}

// Pending returns a snapshot of the pending wake-ups ordered by trigger instant.
func (s *Service) Pending() []Wake {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Wake, 0, len(s.pending))
	for _, e := range s.pending {
		w := e.wake
		w.Payload = slices.Clone(w.Payload)
		result = append(result, w)
	}

	slices.SortFunc(result, func(a, b Wake) int {
		if c := a.TriggerAt.Compare(b.TriggerAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return result
}

// Run restores persisted wake-ups and dispatches due ones to handler until ctx
// is done. On shutdown it waits for in-flight handlers, which may still
// register wake-ups, before refusing further calls.
func (s *Service) Run(ctx context.Context, handler Handler) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()

		return ErrStopped
	}

	if s.running {
		s.mu.Unlock()

		return errAlreadyRunning
	}

	s.running = true
	s.mu.Unlock()

	ctx = logger.WithName(ctx, "timer")

	restored, err := s.restore(ctx)
	if err != nil {
		s.shutdown()

		return err
	}

	logger.InfoKV(ctx, "Timer service started", "restored", restored)

	// Fires must complete their re-registration even while the service shuts down.
	fireCtx := context.WithoutCancel(ctx)

	for {
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)

		if wait, ok := s.nextWait(); ok {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			s.inflight.Wait()
			s.shutdown()
			logger.Info(ctx, "Timer service stopped")

			return nil
		case <-s.changed:
		case <-timerC:
			s.dispatchDue(fireCtx, handler)
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

// restore loads persisted wake-ups not already registered in memory.
func (s *Service) restore(ctx context.Context) (int, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore wakes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0

	for _, record := range records {
		if _, ok := s.index[record.ID]; ok {
			continue
		}

		s.seq++
		s.pending.upsert(s.index, Wake{
			ID:         record.ID,
			TriggerAt:  record.TriggerAt,
			Payload:    record.Payload,
			Generation: s.seq,
		})
		restored++
	}

	return restored, nil
}

// nextWait returns how long to sleep before the earliest wake-up, capped at maxSleep.
// ok is false when nothing is pending.
func (s *Service) nextWait() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.pending.peek()
	if next == nil {
		return 0, false
	}

	wait := time.Until(next.wake.TriggerAt)

	return min(max(wait, 0), s.maxSleep), true
}

// dispatchDue takes every due wake-up off the heap and starts its handler.
// The persisted record stays until the handler returns, so a crash mid-fire
// replays the wake-up on the next start.
func (s *Service) dispatchDue(ctx context.Context, handler Handler) {
	now := time.Now()

	s.mu.Lock()
	due := s.pending.popDue(s.index, func(w Wake) bool {
		return !w.TriggerAt.After(now)
	})

	for _, w := range due {
		s.firing[w.ID] = w.Generation
	}
	s.mu.Unlock()

	for _, w := range due {
		s.inflight.Add(1)

		go func() {
			defer s.inflight.Done()
			defer s.settle(ctx, w)
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorKV(ctx, "Panic in wake handler", "alarm_id", w.ID, "panic", r, "stack", string(debug.Stack()))
				}
			}()

			logger.DebugKV(ctx, "Wake fired", "alarm_id", w.ID, "trigger_at", w.TriggerAt, "lateness", now.Sub(w.TriggerAt))
			handler.OnFire(ctx, w)
		}()
	}
}

// settle runs after the handler for w returned. The persisted record is
// deleted unless a newer registration for the same identifier is pending or
// still firing.
func (s *Service) settle(ctx context.Context, w Wake) {
	s.mu.Lock()
	defer s.mu.Unlock()

	generation, firing := s.firing[w.ID]
	own := firing && generation == w.Generation

	if own {
		delete(s.firing, w.ID)
	}

	if _, pending := s.index[w.ID]; pending || (firing && !own) {
		return
	}

	if err := s.repo.Delete(ctx, w.ID); err != nil {
		logger.ErrorKV(ctx, "Failed to consume persisted wake", "alarm_id", w.ID, "error", err)
	}
}

// shutdown refuses further registrations.
func (s *Service) shutdown() {
	s.mu.Lock()
	s.stopped = true
	s.running = false
	s.mu.Unlock()
}

// nudge wakes the run loop without blocking. Caller holds mu.
func (s *Service) nudge() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
