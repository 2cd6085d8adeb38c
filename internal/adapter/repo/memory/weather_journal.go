package memory

import (
	"context"

	"worldsync/internal/app/ports"
)

type WeatherJournal struct {
	store *Store
}

func NewWeatherJournal(store *Store) WeatherJournal {
	return WeatherJournal{store: store}
}

func (j WeatherJournal) Append(_ context.Context, ev ports.WeatherEventRecord) error {
	j.store.mu.Lock()
	defer j.store.mu.Unlock()
	j.store.events = append(j.store.events, ev)
	if c := j.store.capacity; c > 0 && len(j.store.events) > c {
		j.store.events = append([]ports.WeatherEventRecord(nil), j.store.events[len(j.store.events)-c:]...)
	}
	return nil
}

func (j WeatherJournal) List(_ context.Context, limit int) ([]ports.WeatherEventRecord, error) {
	j.store.mu.RLock()
	defer j.store.mu.RUnlock()
	n := len(j.store.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ports.WeatherEventRecord, 0, n)
	for i := len(j.store.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, j.store.events[i])
	}
	return out, nil
}
