package world

import (
	"strings"
	"time"
)

type WeatherState string

const (
	WeatherClear   WeatherState = "clear"
	WeatherRain    WeatherState = "rain"
	WeatherThunder WeatherState = "thunder"
)

const (
	ShortWeatherTicks int64 = 600
	LongWeatherTicks  int64 = 1200
)

// WeatherChange is a weather state to apply and how many ticks it lasts
// before the world falls back to clear skies.
type WeatherChange struct {
	State         WeatherState `json:"state"`
	DurationTicks int64        `json:"duration_ticks"`
}

// MapClassification maps an external classification such as "Rain" onto a
// world weather change. Matching ignores case and surrounding whitespace;
// unknown classifications report false.
func MapClassification(classification string) (WeatherChange, bool) {
	switch strings.ToLower(strings.TrimSpace(classification)) {
	case "clear":
		return WeatherChange{State: WeatherClear, DurationTicks: ShortWeatherTicks}, true
	case "rain", "drizzle":
		return WeatherChange{State: WeatherRain, DurationTicks: LongWeatherTicks}, true
	case "thunderstorm":
		return WeatherChange{State: WeatherThunder, DurationTicks: LongWeatherTicks}, true
	default:
		return WeatherChange{}, false
	}
}

type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

// Sample is one decoded weather report for a location.
type Sample struct {
	Location   string      `json:"location"`
	Conditions []Condition `json:"conditions"`
	FetchedAt  time.Time   `json:"fetched_at"`
}

// Primary returns the first condition; the rest are informational only.
func (s Sample) Primary() (Condition, bool) {
	if len(s.Conditions) == 0 {
		return Condition{}, false
	}
	return s.Conditions[0], true
}
