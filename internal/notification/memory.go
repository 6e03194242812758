package notification

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemorySink keeps the currently shown notifications in a map keyed by identifier.
type MemorySink struct {
	mu    sync.Mutex
	shown map[int]Notification
	count int
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		shown: make(map[int]Notification),
	}
}

// Show records the notification, replacing one with the same id.
func (m *MemorySink) Show(_ context.Context, id int, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shown[id] = Notification{
		ID:      id,
		Title:   title,
		Body:    body,
		ShownAt: time.Now(),
	}
	m.count++

	return nil
}

// Get returns the notification shown under id.
func (m *MemorySink) Get(id int) (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.shown[id]

	return n, ok
}

// All returns the shown notifications ordered by id.
func (m *MemorySink) All() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Notification, 0, len(m.shown))
	for _, n := range m.shown {
		result = append(result, n)
	}

	slices.SortFunc(result, func(a, b Notification) int { return cmp.Compare(a.ID, b.ID) })

	return result
}

// Deliveries returns how many times Show succeeded.
func (m *MemorySink) Deliveries() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.count
}
