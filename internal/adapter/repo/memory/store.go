package memory

import (
	"sync"

	"worldsync/internal/app/ports"
)

// Store keeps the most recent weather events in process memory.
type Store struct {
	mu       sync.RWMutex
	capacity int
	events   []ports.WeatherEventRecord
}

// NewStore keeps at most capacity events; capacity <= 0 keeps everything.
func NewStore(capacity int) *Store {
	return &Store{capacity: capacity}
}
