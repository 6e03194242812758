package wake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/alarm-scheduler/internal/config"
)

// Record is one pending wake-up.
type Record struct {
	// ID is the alarm identifier.
	ID int
	// TriggerAt is the absolute instant the wake-up is due.
	TriggerAt time.Time
	// Payload is the opaque request carried to the fire handler.
	Payload []byte
}

// Repository defines persistence operations for pending wake-ups.
type Repository interface {
	// Save inserts or replaces the record with the same ID.
	Save(ctx context.Context, record Record) error
	// Delete removes the record with the given ID; a missing record is not an error.
	Delete(ctx context.Context, id int) error
	// List returns every pending record ordered by trigger instant.
	List(ctx context.Context) ([]Record, error)
	// Close releases resources held by the backend.
	Close() error
}

// Open builds the repository selected by the store settings.
//
//nolint:ireturn // Callers pick the backend through configuration.
func Open(ctx context.Context, settings config.StoreConfig) (Repository, error) {
	switch strings.ToLower(settings.Driver) {
	case config.StoreMemory:
		return NewMemoryRepository(), nil
	case config.StoreFile:
		return NewFileRepository(settings.Path), nil
	case config.StoreSQLite, "":
		return OpenSQLite(ctx, settings.Path, settings.BusyTimeout)
	default:
		return nil, fmt.Errorf("unknown store driver %q", settings.Driver)
	}
}
