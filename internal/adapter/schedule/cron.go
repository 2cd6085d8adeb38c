package schedule

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/robfig/cron/v3"
)

// ErrIntervalTooShort is returned for intervals below cron's one second
// resolution.
var ErrIntervalTooShort = errors.New("schedule interval must be at least one second")

// Cron runs periodic jobs on robfig/cron. Each Every call gets its own
// cron instance so cancelling one job never touches another.
type Cron struct{}

func NewCron() *Cron {
	return &Cron{}
}

// Every runs fn once per interval, starting one interval from now. Runs may
// overlap when fn outlives the interval; callers that hand work to their own
// goroutines return quickly anyway.
func (c *Cron) Every(interval time.Duration, fn func()) (func(), error) {
	if fn == nil {
		return nil, errors.New("schedule job is nil")
	}
	if interval < time.Second {
		return nil, fmt.Errorf("%w: got %s", ErrIntervalTooShort, interval)
	}

	runner := cron.New(cron.WithChain(cron.Recover(cronLogger{})))
	runner.Schedule(cron.Every(interval), cron.FuncJob(fn))
	runner.Start()
	hlog.Debugf("scheduled job every %s", interval)

	var once sync.Once
	return func() {
		once.Do(func() {
			runner.Stop()
		})
	}, nil
}

// cronLogger routes cron's panic reports through hlog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	hlog.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	hlog.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
