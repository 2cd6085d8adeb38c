package ports

import (
	"context"
	"time"

	"worldsync/internal/domain/world"
)

type WeatherEventRecord struct {
	SessionID      string             `json:"session_id"`
	Location       string             `json:"location"`
	Classification string             `json:"classification"`
	State          world.WeatherState `json:"state"`
	DurationTicks  int64              `json:"duration_ticks"`
	AppliedAt      time.Time          `json:"applied_at"`
}

// WeatherJournal is an append-only history of applied weather changes.
// It is never read back to restore world state.
type WeatherJournal interface {
	Append(ctx context.Context, event WeatherEventRecord) error
	// List returns up to limit events, newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]WeatherEventRecord, error)
}
