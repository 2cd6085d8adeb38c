package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"worldsync/internal/adapter/console"
	httpadapter "worldsync/internal/adapter/http"
	metricsinmem "worldsync/internal/adapter/metrics/inmemory"
	gormrepo "worldsync/internal/adapter/repo/gorm"
	memoryrepo "worldsync/internal/adapter/repo/memory"
	redisrepo "worldsync/internal/adapter/repo/redis"
	"worldsync/internal/adapter/schedule"
	"worldsync/internal/adapter/weather/openweather"
	worldruntime "worldsync/internal/adapter/world/runtime"
	"worldsync/internal/app/ports"
	"worldsync/internal/app/timesync"
	"worldsync/internal/app/weathersync"
	"worldsync/internal/config"
	"worldsync/internal/domain/world"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	hlog.SetLevel(logLevel(cfg.Log.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kpiRecorder := metricsinmem.NewRecorder()
	w := worldruntime.NewWorld(cfg.World.Name, cfg.World.IsAuthoritative())
	loop := worldruntime.NewLoop(w, worldruntime.Config{
		TickRate:  cfg.World.TickRate,
		QueueSize: cfg.World.QueueSize,
		OnDrop:    kpiRecorder.RecordDropped,
	})

	timeUC := timesync.UseCase{
		Clock: world.NewClock(world.ClockConfig{Offset: cfg.World.Offset()}),
		Now:   time.Now,
		World: w,
	}
	loop.OnTick(timeUC.OnTick)

	journal, closeJournal, err := buildJournal(ctx, cfg)
	if err != nil {
		log.Fatalf("build weather journal: %v", err)
	}

	if cfg.Weather.APIKey == "" {
		hlog.Warnf("OPENWEATHER_API_KEY is not set; weather fetches will fail until it is configured")
	}
	weatherSvc := weathersync.NewService(weathersync.Config{
		Interval:     cfg.Weather.Interval.Std(),
		FetchTimeout: cfg.Weather.HTTPTimeout.Std(),
	}, weathersync.Deps{
		Provider: openweather.NewClient(openweather.Config{
			Endpoint: cfg.Weather.Endpoint,
			APIKey:   cfg.Weather.APIKey,
			Timeout:  cfg.Weather.HTTPTimeout.Std(),
		}),
		Mutator:   loop,
		Scheduler: schedule.NewCron(),
		Journal:   journal,
		Metrics:   kpiRecorder,
	})

	registry := console.NewRegistry()
	if err := console.RegisterDefaults(registry, weatherSvc, timeUC); err != nil {
		log.Fatalf("register console commands: %v", err)
	}

	h := httpadapter.Handler{
		Weather:      weatherSvc,
		Time:         timeUC,
		Journal:      journal,
		Console:      registry,
		KPI:          kpiRecorder,
		HistoryLimit: cfg.Journal.Limit,
		CORSOrigins:  cfg.Server.CORSOrigins,
	}

	s := server.Default(server.WithHostPorts(cfg.Server.Listen))
	h.RegisterRoutes(s)
	s.OnShutdown = append(s.OnShutdown, func(c context.Context) {
		if err := weatherSvc.Close(c); err != nil {
			hlog.Warnf("weather sync shutdown: %v", err)
		}
		cancel()
		closeJournal()
	})

	go func() {
		_ = loop.Run(ctx)
	}()

	if loc := strings.TrimSpace(cfg.Weather.Location); loc != "" {
		if _, err := weatherSvc.Start(loc); err != nil {
			hlog.Errorf("start weather sync for %s: %v", loc, err)
		}
	}
	if cfg.Console.Stdin {
		go runConsole(ctx, os.Stdin, os.Stdout, registry)
	}

	log.Printf("worldsync server listening on %s (world %s)", cfg.Server.Listen, w.Name())
	s.Spin()
}

// buildJournal picks Postgres, then Redis, then memory.
func buildJournal(ctx context.Context, cfg *config.Config) (ports.WeatherJournal, func(), error) {
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		db, err := gormrepo.OpenPostgres(dsn)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.Migrate {
			if err := gormrepo.ApplyMigrations(ctx, db, gormrepo.Migrations()); err != nil {
				return nil, nil, err
			}
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		hlog.Infof("weather journal: postgres")
		return gormrepo.NewWeatherJournalRepo(db), closeDB, nil
	}
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		client, err := redisrepo.Open(ctx, addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		hlog.Infof("weather journal: redis %s", addr)
		return redisrepo.NewWeatherJournal(client, cfg.Redis.Key, cfg.Journal.Limit), func() { _ = client.Close() }, nil
	}
	hlog.Infof("weather journal: memory")
	return memoryrepo.NewWeatherJournal(memoryrepo.NewStore(cfg.Journal.Limit)), func() {}, nil
}

type lineExecutor interface {
	Execute(ctx context.Context, line string) console.Result
}

// runConsole executes one command per input line until EOF or ctx ends.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, exec lineExecutor) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		res := exec.Execute(ctx, line)
		fmt.Fprintln(out, res.Feedback)
	}
}

func logLevel(level string) hlog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return hlog.LevelDebug
	case "warn":
		return hlog.LevelWarn
	case "error":
		return hlog.LevelError
	default:
		return hlog.LevelInfo
	}
}
