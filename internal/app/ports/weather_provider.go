package ports

import (
	"context"

	"worldsync/internal/domain/world"
)

type WeatherProvider interface {
	Current(ctx context.Context, location string) (world.Sample, error)
}
