package ports

import "worldsync/internal/domain/world"

type SkipReason string

const (
	SkipEmptyPayload SkipReason = "empty_payload"
	SkipUnmapped     SkipReason = "unmapped"
)

type SyncMetrics interface {
	RecordFetch()
	RecordFetchFailure()
	RecordApplied(state world.WeatherState)
	RecordSkipped(reason SkipReason)
	RecordStale()
	RecordDropped()
}
