package timesync

import (
	"context"
	"time"

	"worldsync/internal/app/ports"
	"worldsync/internal/domain/world"
)

type UseCase struct {
	Clock world.Clock
	Now   func() time.Time
	World ports.World
}

// OnTick pins the world's time of day to the wall clock. Mirror worlds are
// left alone. It does no I/O and is safe to call every tick.
func (u UseCase) OnTick(w ports.World) {
	if w == nil || !w.Authoritative() {
		return
	}
	w.SetTimeOfDay(u.Clock.TicksAt(u.now()))
}

// Realtime reports the wall-clock time recovered from the world's current
// tick value. It never mutates the world.
func (u UseCase) Realtime(_ context.Context) (Response, error) {
	if u.World == nil {
		return Response{}, ports.ErrWorldUnavailable
	}
	ticks := u.World.TimeOfDay()
	wall := u.Clock.WallClockAt(ticks)
	return Response{
		World:         u.World.Name(),
		Ticks:         ticks,
		SecondsOfDay:  int64(wall / time.Second),
		WallClock:     world.FormatTimeOfDay(wall),
		OffsetSeconds: int64(u.Clock.Offset() / time.Second),
	}, nil
}

func (u UseCase) now() time.Time {
	if u.Now == nil {
		return time.Now()
	}
	return u.Now()
}
