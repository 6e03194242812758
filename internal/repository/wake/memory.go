package wake

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// MemoryRepository keeps records in a map. Nothing survives a restart.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[int]Record
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[int]Record),
	}
}

// Save stores a copy of the record, replacing any previous one.
func (r *MemoryRepository) Save(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record.Payload = slices.Clone(record.Payload)
	r.records[record.ID] = record

	return nil
}

// Delete removes the record.
func (r *MemoryRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, id)

	return nil
}

// List returns copies of all records ordered by trigger instant.
func (r *MemoryRepository) List(context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Record, 0, len(r.records))
	for _, record := range r.records {
		record.Payload = slices.Clone(record.Payload)
		result = append(result, record)
	}

	sortRecords(result)

	return result, nil
}

// Close is a no-op.
func (r *MemoryRepository) Close() error {
	return nil
}

// sortRecords orders by trigger instant, then by ID for stable output.
func sortRecords(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		if c := a.TriggerAt.Compare(b.TriggerAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})
}
