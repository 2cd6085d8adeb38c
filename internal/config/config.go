package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"worldsync/internal/adapter/weather/openweather"
	"worldsync/internal/domain/world"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultFile = "config.yaml"

// Duration reads Go durations ("5m") and bare seconds (300) from YAML, the
// same forms the environment overrides accept.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	World    WorldConfig    `yaml:"world"`
	Weather  WeatherConfig  `yaml:"weather"`
	Journal  JournalConfig  `yaml:"journal"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Console  ConsoleConfig  `yaml:"console"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
	// CORSOrigins lists browser origins allowed to call the API, comma
	// separated. Empty allows any origin.
	CORSOrigins string `yaml:"cors_origins"`
}

type WorldConfig struct {
	Name string `yaml:"name"`
	// Authoritative is nil when unset; mirrors set it to false.
	Authoritative *bool `yaml:"authoritative"`
	TickRate      int   `yaml:"tick_rate"`
	QueueSize     int   `yaml:"queue_size"`
	// TimeOffset is nil when unset; 0 is a valid offset.
	TimeOffset *Duration `yaml:"time_offset"`
}

func (w WorldConfig) IsAuthoritative() bool {
	return w.Authoritative == nil || *w.Authoritative
}

func (w WorldConfig) Offset() time.Duration {
	if w.TimeOffset == nil {
		return world.DefaultOffset
	}
	return w.TimeOffset.Std()
}

type WeatherConfig struct {
	APIKey      string   `yaml:"api_key"`
	Endpoint    string   `yaml:"endpoint"`
	Interval    Duration `yaml:"interval"`
	HTTPTimeout Duration `yaml:"http_timeout"`
	// Location, when set, starts a session at boot.
	Location string `yaml:"location"`
}

type JournalConfig struct {
	Limit int `yaml:"limit"`
}

type DatabaseConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ConsoleConfig struct {
	Stdin bool `yaml:"stdin"`
}

// Load reads .env, then the YAML file named by CONFIG_FILE (config.yaml by
// default), then environment overrides. A missing default file is not an
// error; a missing file named explicitly is.
func Load() (*Config, error) {
	_ = godotenv.Load()

	file := os.Getenv("CONFIG_FILE")
	explicit := file != ""
	if !explicit {
		file = DefaultFile
	}
	return load(file, explicit, os.LookupEnv)
}

func load(file string, explicit bool, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", file, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	dur := func(key string, dst *Duration) bool {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return false
		}
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return false
		}
		*dst = Duration(d)
		return true
	}
	flag := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}

	str("WORLDSYNC_LISTEN", &c.Server.Listen)
	str("WORLDSYNC_CORS_ORIGINS", &c.Server.CORSOrigins)
	str("WORLDSYNC_WORLD_NAME", &c.World.Name)
	num("WORLDSYNC_TICK_RATE", &c.World.TickRate)
	num("WORLDSYNC_QUEUE_SIZE", &c.World.QueueSize)
	var offset Duration
	if dur("WORLDSYNC_TIME_OFFSET", &offset) {
		c.World.TimeOffset = &offset
	}
	if _, ok := lookup("WORLDSYNC_AUTHORITATIVE"); ok {
		authoritative := c.World.IsAuthoritative()
		flag("WORLDSYNC_AUTHORITATIVE", &authoritative)
		c.World.Authoritative = &authoritative
	}

	str("OPENWEATHER_API_KEY", &c.Weather.APIKey)
	str("WORLDSYNC_WEATHER_ENDPOINT", &c.Weather.Endpoint)
	dur("WORLDSYNC_WEATHER_INTERVAL", &c.Weather.Interval)
	dur("WORLDSYNC_HTTP_TIMEOUT", &c.Weather.HTTPTimeout)
	str("WORLDSYNC_WEATHER_LOCATION", &c.Weather.Location)

	num("WORLDSYNC_JOURNAL_LIMIT", &c.Journal.Limit)
	str("WORLDSYNC_DB_DSN", &c.Database.DSN)
	flag("WORLDSYNC_DB_MIGRATE", &c.Database.Migrate)
	str("WORLDSYNC_REDIS_ADDR", &c.Redis.Addr)
	str("WORLDSYNC_REDIS_PASSWORD", &c.Redis.Password)
	num("WORLDSYNC_REDIS_DB", &c.Redis.DB)
	str("WORLDSYNC_LOG_LEVEL", &c.Log.Level)
	flag("WORLDSYNC_CONSOLE_STDIN", &c.Console.Stdin)

	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.World.Name == "" {
		c.World.Name = "overworld"
	}
	if c.World.TickRate == 0 {
		c.World.TickRate = 20
	}
	if c.World.QueueSize == 0 {
		c.World.QueueSize = 64
	}
	if c.World.TimeOffset == nil {
		offset := Duration(world.DefaultOffset)
		c.World.TimeOffset = &offset
	}
	if c.Weather.Endpoint == "" {
		c.Weather.Endpoint = openweather.DefaultEndpoint
	}
	if c.Weather.Interval == 0 {
		c.Weather.Interval = Duration(300 * time.Second)
	}
	if c.Weather.HTTPTimeout == 0 {
		c.Weather.HTTPTimeout = Duration(30 * time.Second)
	}
	if c.Journal.Limit == 0 {
		c.Journal.Limit = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Weather.APIKey = strings.TrimSpace(c.Weather.APIKey)
	c.Log.Level = strings.ToLower(c.Log.Level)
}

func (c *Config) validate() error {
	if c.World.TickRate < 1 || c.World.TickRate > 1000 {
		return fmt.Errorf("world.tick_rate must be between 1 and 1000, got %d", c.World.TickRate)
	}
	if c.World.QueueSize < 1 {
		return fmt.Errorf("world.queue_size must be positive, got %d", c.World.QueueSize)
	}
	if c.Weather.Interval.Std() < time.Second {
		return fmt.Errorf("weather.interval must be at least 1s, got %s", c.Weather.Interval)
	}
	if c.Weather.HTTPTimeout.Std() <= 0 {
		return fmt.Errorf("weather.http_timeout must be positive, got %s", c.Weather.HTTPTimeout)
	}
	if strings.Count(c.Weather.Endpoint, "%s") != 2 {
		return fmt.Errorf("weather.endpoint must contain two %%s placeholders (location, api key)")
	}
	if c.Journal.Limit < 1 {
		return fmt.Errorf("journal.limit must be positive, got %d", c.Journal.Limit)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}

// parseDuration accepts Go durations ("5m") and bare seconds ("300").
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
