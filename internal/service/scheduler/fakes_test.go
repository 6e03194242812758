package scheduler

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/alarm-scheduler/internal/timer"
)

var errRefused = errors.New("refused by platform")

// fakeTimers is an identifier-keyed stand-in for the timer service.
type fakeTimers struct {
	mu          sync.Mutex
	pending     map[int]timer.Wake
	firing      map[int]uint64
	generation  uint64
	registerErr error
	cancelErr   error
	registers   int
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{
		pending: make(map[int]timer.Wake),
		firing:  make(map[int]uint64),
	}
}

func (f *fakeTimers) RegisterExactWake(_ context.Context, id int, triggerAt time.Time, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.register(id, triggerAt, payload)
}

func (f *fakeTimers) ReregisterExactWake(_ context.Context, fired timer.Wake, triggerAt time.Time, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.registerErr != nil {
		return f.registerErr
	}

	if generation, ok := f.firing[fired.ID]; !ok || generation != fired.Generation {
		return timer.ErrSuperseded
	}

	return f.register(fired.ID, triggerAt, payload)
}

func (f *fakeTimers) register(id int, triggerAt time.Time, payload []byte) error {
	if f.registerErr != nil {
		return f.registerErr
	}

	f.generation++
	f.registers++
	f.pending[id] = timer.Wake{ID: id, TriggerAt: triggerAt, Payload: payload, Generation: f.generation}
	delete(f.firing, id)

	return nil
}

func (f *fakeTimers) Cancel(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelErr != nil {
		return f.cancelErr
	}

	delete(f.pending, id)
	delete(f.firing, id)

	return nil
}

func (f *fakeTimers) Pending() []timer.Wake {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]timer.Wake, 0, len(f.pending))
	for _, w := range f.pending {
		result = append(result, w)
	}

	slices.SortFunc(result, func(a, b timer.Wake) int { return a.TriggerAt.Compare(b.TriggerAt) })

	return result
}

// take consumes the registration under id the way the timer service does before firing.
func (f *fakeTimers) take(id int) (timer.Wake, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.pending[id]
	if ok {
		delete(f.pending, id)
		f.firing[id] = w.Generation
	}

	return w, ok
}

func (f *fakeTimers) get(id int) (timer.Wake, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.pending[id]

	return w, ok
}

// fixedClock is a settable clock.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fixedClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

// failingSink always refuses.
type failingSink struct {
	err   error
	calls int
}

func (s *failingSink) Show(context.Context, int, string, string) error {
	s.calls++

	return s.err
}

// panickingSink panics on every call.
type panickingSink struct{}

func (panickingSink) Show(context.Context, int, string, string) error {
	panic("sink exploded")
}
