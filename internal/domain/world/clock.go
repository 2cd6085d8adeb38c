package world

import (
	"fmt"
	"time"
)

const (
	TicksPerDay   int64 = 24000
	SecondsPerDay int64 = 86400

	DefaultOffset = 6 * time.Hour
)

type ClockConfig struct {
	// Offset is subtracted from the wall clock before mapping, so real
	// midnight lands on tick (24h-Offset)/3.6s rather than tick 0.
	Offset time.Duration
}

// Clock maps wall-clock time of day onto the in-game day and back. One real
// day is exactly one in-game day.
type Clock struct {
	cfg ClockConfig
}

func NewClock(cfg ClockConfig) Clock {
	cfg.Offset = wrapDay(cfg.Offset)
	return Clock{cfg: cfg}
}

func DefaultClock() Clock {
	return NewClock(ClockConfig{Offset: DefaultOffset})
}

func (c Clock) Offset() time.Duration {
	return c.cfg.Offset
}

// TicksAt returns the in-game tick value for the wall-clock time of day of
// now, evaluated in now's location. The result is always in [0, TicksPerDay).
func (c Clock) TicksAt(now time.Time) int64 {
	secs := SecondOfDay(now) - int64(c.cfg.Offset/time.Second)
	secs = mod(secs, SecondsPerDay)
	return secs * TicksPerDay / SecondsPerDay
}

// WallClockAt inverts TicksAt. The result is the time elapsed since real
// midnight and lies within one tick (3.6s) below the wall clock that produced
// ticks.
func (c Clock) WallClockAt(ticks int64) time.Duration {
	ticks = mod(ticks, TicksPerDay)
	d := time.Duration(ticks) * (24 * time.Hour) / time.Duration(TicksPerDay)
	return wrapDay(d + c.cfg.Offset)
}

func SecondOfDay(t time.Time) int64 {
	h, m, s := t.Clock()
	return int64(h)*3600 + int64(m)*60 + int64(s)
}

// FormatTimeOfDay renders a duration since midnight as HH:MM:SS, truncating
// sub-second precision.
func FormatTimeOfDay(d time.Duration) string {
	d = wrapDay(d)
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

func wrapDay(d time.Duration) time.Duration {
	day := 24 * time.Hour
	d %= day
	if d < 0 {
		d += day
	}
	return d
}

func mod(a, b int64) int64 {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}
