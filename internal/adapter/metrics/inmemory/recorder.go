package inmemory

import (
	"sync"

	"worldsync/internal/app/ports"
	"worldsync/internal/domain/world"
)

type Snapshot struct {
	FetchTotal       uint64            `json:"fetch_total"`
	FetchFailure     uint64            `json:"fetch_failure"`
	AppliedTotal     uint64            `json:"applied_total"`
	AppliedByState   map[string]uint64 `json:"applied_by_state"`
	SkippedUnmapped  uint64            `json:"skipped_unmapped"`
	SkippedEmpty     uint64            `json:"skipped_empty"`
	StaleDiscarded   uint64            `json:"stale_discarded"`
	MutationsDropped uint64            `json:"mutations_dropped"`
}

// Recorder counts weather sync outcomes in memory for /ops/kpi.
type Recorder struct {
	mu      sync.Mutex
	fetch   uint64
	failure uint64
	applied map[string]uint64
	skipped map[ports.SkipReason]uint64
	stale   uint64
	dropped uint64
}

func NewRecorder() *Recorder {
	return &Recorder{
		applied: map[string]uint64{},
		skipped: map[ports.SkipReason]uint64{},
	}
}

func (r *Recorder) RecordFetch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetch++
}

func (r *Recorder) RecordFetchFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure++
}

func (r *Recorder) RecordApplied(state world.WeatherState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied[string(state)]++
}

func (r *Recorder) RecordSkipped(reason ports.SkipReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped[reason]++
}

func (r *Recorder) RecordStale() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func (r *Recorder) RecordDropped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Snapshot{
		FetchTotal:       r.fetch,
		FetchFailure:     r.failure,
		AppliedByState:   make(map[string]uint64, len(r.applied)),
		SkippedUnmapped:  r.skipped[ports.SkipUnmapped],
		SkippedEmpty:     r.skipped[ports.SkipEmptyPayload],
		StaleDiscarded:   r.stale,
		MutationsDropped: r.dropped,
	}
	for k, v := range r.applied {
		out.AppliedByState[k] = v
		out.AppliedTotal += v
	}
	return out
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}
