package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"worldsync/internal/app/ports"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

type Config struct {
	TickRate  int
	QueueSize int
	// OnDrop is called when Submit rejects a mutation because the queue is full.
	OnDrop func()
}

// TickListener runs on the tick goroutine once per tick, after queued
// mutations have been applied.
type TickListener func(w ports.World)

// Loop owns a World and is the only goroutine that mutates it. Work computed
// on other goroutines reaches the world through Submit.
type Loop struct {
	cfg   Config
	world *World
	queue chan ports.Mutation

	mu        sync.Mutex
	listeners []TickListener

	ticks atomic.Int64
}

func DefaultConfig() Config {
	return Config{
		TickRate:  20,
		QueueSize: 64,
	}
}

func NewLoop(w *World, cfg Config) *Loop {
	def := DefaultConfig()
	if cfg.TickRate <= 0 {
		cfg.TickRate = def.TickRate
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	return &Loop{
		cfg:   cfg,
		world: w,
		queue: make(chan ports.Mutation, cfg.QueueSize),
	}
}

func (l *Loop) World() *World {
	return l.world
}

func (l *Loop) OnTick(fn TickListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

func (l *Loop) Submit(m ports.Mutation) bool {
	if m == nil {
		return false
	}
	select {
	case l.queue <- m:
		return true
	default:
		hlog.Warnf("world %s mutation queue full (%d), dropping mutation", l.world.Name(), cap(l.queue))
		if l.cfg.OnDrop != nil {
			l.cfg.OnDrop()
		}
		return false
	}
}

// Tick runs a single tick synchronously. Run calls it on every timer beat;
// tests call it directly.
func (l *Loop) Tick() {
	l.drain()
	l.world.advance()

	l.mu.Lock()
	listeners := make([]TickListener, len(l.listeners))
	copy(listeners, l.listeners)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(l.world)
	}
	l.ticks.Add(1)
}

func (l *Loop) Ticks() int64 {
	return l.ticks.Load()
}

func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(l.cfg.TickRate))
	defer ticker.Stop()

	hlog.Infof("world %s tick loop started at %d tps", l.world.Name(), l.cfg.TickRate)
	for {
		select {
		case <-ctx.Done():
			hlog.Infof("world %s tick loop stopped after %d ticks", l.world.Name(), l.Ticks())
			return ctx.Err()
		case <-ticker.C:
			l.Tick()
		}
	}
}

// drain applies what is queued when the tick starts; mutations submitted
// while draining wait for the next tick.
func (l *Loop) drain() {
	for n := len(l.queue); n > 0; n-- {
		select {
		case m := <-l.queue:
			m(l.world)
		default:
			return
		}
	}
}
