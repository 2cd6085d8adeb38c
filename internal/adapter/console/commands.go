package console

import (
	"context"
	"errors"
	"strings"

	"worldsync/internal/app/timesync"
	"worldsync/internal/app/weathersync"
)

type WeatherControl interface {
	Start(location string) (weathersync.StartResult, error)
	Stop() weathersync.StopResult
	Status() weathersync.Status
}

type TimeQuery interface {
	Realtime(ctx context.Context) (timesync.Response, error)
}

// RegisterDefaults installs the weather and time commands.
func RegisterDefaults(r *Registry, weather WeatherControl, clock TimeQuery) error {
	cmds := []Command{
		{
			Name:  "startweather",
			Usage: "startweather <location>",
			Help:  "Sync world weather with a real city",
			Run: func(_ context.Context, args []string) Result {
				location := strings.Join(args, " ")
				res, err := weather.Start(location)
				if errors.Is(err, weathersync.ErrInvalidLocation) {
					return Failure("Usage: startweather <location>")
				}
				if err != nil {
					return Failure("Could not start weather sync: %v", err)
				}
				if res.Replaced {
					return Success("Weather sync switched from %s to %s", res.PreviousLocation, res.Location)
				}
				return Success("Weather sync started for %s", res.Location)
			},
		},
		{
			Name: "stopweather",
			Help: "Stop syncing weather",
			Run: func(context.Context, []string) Result {
				res := weather.Stop()
				if !res.WasActive {
					return Success("Weather sync is not active")
				}
				return Success("Weather sync stopped for %s", res.Location)
			},
		},
		{
			Name: "weatherstatus",
			Help: "Show the weather sync session",
			Run: func(context.Context, []string) Result {
				st := weather.Status()
				if !st.Active {
					return Success("Weather sync is not active")
				}
				if st.LastError != "" {
					return Success("Weather sync active for %s, last fetch failed: %s", st.Location, st.LastError)
				}
				if st.LastClassification != "" {
					return Success("Weather sync active for %s, last condition %s", st.Location, st.LastClassification)
				}
				return Success("Weather sync active for %s", st.Location)
			},
		},
		{
			Name: "realtime",
			Help: "Show the real world time the world clock maps to",
			Run: func(ctx context.Context, _ []string) Result {
				res, err := clock.Realtime(ctx)
				if err != nil {
					return Failure("Real world time unavailable: %v", err)
				}
				return Success("Real world time: %s", res.WallClock)
			},
		},
	}
	for _, c := range cmds {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return r.Register(Command{
		Name: "help",
		Help: "List commands",
		Run: func(context.Context, []string) Result {
			var b strings.Builder
			b.WriteString("Commands:")
			for _, c := range r.Commands() {
				b.WriteString("\n  ")
				b.WriteString(c.Usage)
				if c.Help != "" {
					b.WriteString(" - ")
					b.WriteString(c.Help)
				}
			}
			return Success("%s", b.String())
		},
	})
}
