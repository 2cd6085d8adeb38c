package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"worldsync/internal/app/ports"

	"github.com/go-redis/redis/v8"
)

const DefaultKey = "worldsync:weather_events"

// WeatherJournal stores events as JSON in a capped Redis list, newest at the
// head.
type WeatherJournal struct {
	client   *redis.Client
	key      string
	capacity int64
}

func NewWeatherJournal(client *redis.Client, key string, capacity int) *WeatherJournal {
	if key == "" {
		key = DefaultKey
	}
	return &WeatherJournal{client: client, key: key, capacity: int64(capacity)}
}

// Open connects to addr and checks the connection.
func Open(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

func (j *WeatherJournal) Append(ctx context.Context, ev ports.WeatherEventRecord) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal weather event: %w", err)
	}
	pipe := j.client.TxPipeline()
	pipe.LPush(ctx, j.key, data)
	if j.capacity > 0 {
		pipe.LTrim(ctx, j.key, 0, j.capacity-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append weather event: %w", err)
	}
	return nil
}

func (j *WeatherJournal) List(ctx context.Context, limit int) ([]ports.WeatherEventRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := j.client.LRange(ctx, j.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list weather events: %w", err)
	}
	out := make([]ports.WeatherEventRecord, 0, len(raw))
	for _, item := range raw {
		var ev ports.WeatherEventRecord
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode weather event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}
