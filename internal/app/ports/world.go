package ports

import "worldsync/internal/domain/world"

// World is the handle to the game world owned by the tick loop.
type World interface {
	Name() string
	// Authoritative is false for mirror worlds that replay another world's state.
	Authoritative() bool
	TimeOfDay() int64
	SetTimeOfDay(ticks int64)
	Weather() (state world.WeatherState, remainingTicks int64)
	SetWeather(change world.WeatherChange)
}

// Mutation is a world write executed on the tick goroutine.
type Mutation func(w World)

// WorldMutator hands mutations computed elsewhere to the world owner.
// Submit never blocks and reports false when the mutation was dropped.
type WorldMutator interface {
	Submit(m Mutation) bool
}
