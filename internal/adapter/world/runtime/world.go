package runtime

import (
	"sync"

	"worldsync/internal/domain/world"
)

// World is the in-memory state of one game world. Reads and writes are
// mutex-guarded so HTTP queries may read while the tick loop writes.
type World struct {
	mu            sync.RWMutex
	name          string
	authoritative bool
	timeOfDay     int64
	weather       world.WeatherState
	weatherTicks  int64
}

func NewWorld(name string, authoritative bool) *World {
	if name == "" {
		name = "overworld"
	}
	return &World{
		name:          name,
		authoritative: authoritative,
		weather:       world.WeatherClear,
	}
}

func (w *World) Name() string {
	return w.name
}

func (w *World) Authoritative() bool {
	return w.authoritative
}

func (w *World) TimeOfDay() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.timeOfDay
}

func (w *World) SetTimeOfDay(ticks int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeOfDay = normalizeTicks(ticks)
}

func (w *World) Weather() (world.WeatherState, int64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.weather, w.weatherTicks
}

func (w *World) SetWeather(change world.WeatherChange) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.weather = change.State
	w.weatherTicks = change.DurationTicks
}

// advance runs the natural cycle for one tick: daylight moves forward and the
// current weather counts down, reverting to clear when it runs out.
func (w *World) advance() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeOfDay = normalizeTicks(w.timeOfDay + 1)
	if w.weatherTicks <= 0 {
		return
	}
	w.weatherTicks--
	if w.weatherTicks == 0 && w.weather != world.WeatherClear {
		w.weather = world.WeatherClear
	}
}

func normalizeTicks(ticks int64) int64 {
	ticks %= world.TicksPerDay
	if ticks < 0 {
		ticks += world.TicksPerDay
	}
	return ticks
}
