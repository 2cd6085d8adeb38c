package weathersync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"worldsync/internal/app/ports"
	"worldsync/internal/domain/world"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/google/uuid"
)

var (
	ErrInvalidLocation = errors.New("weather sync location is required")
	ErrClosed          = errors.New("weather sync service closed")
)

// Scheduler runs fn once per interval until cancel is called. Implementations
// must not wait for fn to return before the next run becomes due.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func(), err error)
}

type Config struct {
	Interval     time.Duration
	FetchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:     300 * time.Second,
		FetchTimeout: 30 * time.Second,
	}
}

type Deps struct {
	Provider  ports.WeatherProvider
	Mutator   ports.WorldMutator
	Scheduler Scheduler
	Journal   ports.WeatherJournal
	Metrics   ports.SyncMetrics
	Now       func() time.Time
	NewID     func() string
}

// Service polls the weather provider for one location at a time and hands
// mapped weather changes to the world owner. It is Idle until Start and
// returns to Idle on Stop.
type Service struct {
	cfg  Config
	deps Deps

	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *session
	last    lastFetch
	closed  bool

	inflight sync.WaitGroup

	records       chan ports.WeatherEventRecord
	stopJournal   chan struct{}
	journalDone   chan struct{}
	journalCtx    context.Context
	journalCancel context.CancelFunc
}

type session struct {
	id         string
	location   string
	startedAt  time.Time
	ctx        context.Context
	cancel     context.CancelFunc
	unschedule func()
}

func (s *session) stop() {
	if s.unschedule != nil {
		s.unschedule()
	}
	s.cancel()
}

type lastFetch struct {
	classification string
	at             time.Time
	err            string
}

const journalBuffer = 64

func NewService(cfg Config, deps Deps) *Service {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:    cfg,
		deps:   deps,
		base:   base,
		cancel: cancel,
	}
	if deps.Journal != nil {
		s.records = make(chan ports.WeatherEventRecord, journalBuffer)
		s.stopJournal = make(chan struct{})
		s.journalDone = make(chan struct{})
		s.journalCtx, s.journalCancel = context.WithCancel(context.Background())
		go s.runJournal()
	}
	return s
}

// Start begins a session for location and dispatches the first fetch
// immediately. An active session is replaced: the new schedule is installed
// before the old one is cancelled, all under the service lock, so at most one
// schedule belongs to the current session and a failed Start leaves the
// previous session running.
func (s *Service) Start(location string) (StartResult, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return StartResult{}, ErrInvalidLocation
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return StartResult{}, ErrClosed
	}
	ctx, cancel := context.WithCancel(s.base)
	sess := &session{
		id:        s.deps.NewID(),
		location:  location,
		startedAt: s.deps.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	unschedule, err := s.deps.Scheduler.Every(s.cfg.Interval, func() { s.dispatch(sess) })
	if err != nil {
		s.mu.Unlock()
		cancel()
		return StartResult{}, fmt.Errorf("schedule weather fetch: %w", err)
	}
	sess.unschedule = unschedule

	prev := s.current
	if prev != nil {
		prev.stop()
	}
	s.current = sess
	s.last = lastFetch{}
	s.mu.Unlock()

	res := StartResult{SessionID: sess.id, Location: location}
	if prev != nil {
		res.Replaced = true
		res.PreviousLocation = prev.location
		hlog.Infof("weather sync for %s replaced by %s (session %s)", prev.location, location, sess.id)
	} else {
		hlog.Infof("weather sync started for %s every %s (session %s)", location, s.cfg.Interval, sess.id)
	}

	s.dispatch(sess)
	return res, nil
}

// Stop ends the active session. Stopping while Idle is a no-op.
func (s *Service) Stop() StopResult {
	s.mu.Lock()
	sess := s.current
	s.current = nil
	if sess != nil {
		sess.stop()
	}
	s.mu.Unlock()

	if sess == nil {
		hlog.Infof("weather sync is not active")
		return StopResult{}
	}
	hlog.Infof("weather sync stopped for %s (session %s)", sess.location, sess.id)
	return StopResult{WasActive: true, SessionID: sess.id, Location: sess.location}
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Status{IntervalSeconds: int64(s.cfg.Interval / time.Second)}
	if s.current == nil {
		return out
	}
	out.Active = true
	out.SessionID = s.current.id
	out.Location = s.current.location
	startedAt := s.current.startedAt
	out.StartedAt = &startedAt
	out.LastClassification = s.last.classification
	if !s.last.at.IsZero() {
		lastFetch := s.last.at
		out.LastFetchAt = &lastFetch
	}
	out.LastError = s.last.err
	return out
}

// Close stops the active session, cancels in-flight requests and waits for
// them to finish or for ctx to expire.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.current != nil {
		s.current.stop()
		s.current = nil
	}
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		// Fetches still running may record after this point; their events stay
		// in the buffer and never reach the journal.
		err = ctx.Err()
		s.abandonJournal()
	}
	s.stopJournalWorker()
	return err
}

// stopJournalWorker returns once the worker has written what was buffered
// and exited, so the journal backend can be closed afterwards.
func (s *Service) stopJournalWorker() {
	if s.stopJournal == nil {
		return
	}
	close(s.stopJournal)
	<-s.journalDone
}

// abandonJournal makes the worker skip whatever is still buffered.
func (s *Service) abandonJournal() {
	if s.journalCancel != nil {
		s.journalCancel()
	}
}

func (s *Service) isCurrent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.id == id
}

// dispatch starts one fetch in the background. The scheduler never waits for
// it, so a slow response may overlap the next scheduled fetch.
func (s *Service) dispatch(sess *session) {
	s.mu.Lock()
	if s.current == nil || s.current.id != sess.id {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		s.fetch(sess)
	}()
}

func (s *Service) fetch(sess *session) {
	ctx, cancel := context.WithTimeout(sess.ctx, s.cfg.FetchTimeout)
	defer cancel()

	s.deps.Metrics.RecordFetch()
	sample, err := s.deps.Provider.Current(ctx, sess.location)
	if !s.isCurrent(sess.id) {
		hlog.Debugf("discarding weather result for %s: session %s no longer active", sess.location, sess.id)
		s.deps.Metrics.RecordStale()
		return
	}
	if err != nil {
		s.deps.Metrics.RecordFetchFailure()
		s.noteFetch(sess.id, "", err)
		hlog.Errorf("failed to fetch weather data for %s: %v", sess.location, err)
		return
	}
	s.apply(sess, sample)
}

func (s *Service) apply(sess *session, sample world.Sample) {
	cond, ok := sample.Primary()
	if !ok {
		s.noteFetch(sess.id, "", nil)
		s.deps.Metrics.RecordSkipped(ports.SkipEmptyPayload)
		hlog.Warnf("weather data for %s is empty", sess.location)
		return
	}
	s.noteFetch(sess.id, cond.Main, nil)

	change, ok := world.MapClassification(cond.Main)
	if !ok {
		s.deps.Metrics.RecordSkipped(ports.SkipUnmapped)
		hlog.Infof("other weather condition for %s: %s", sess.location, cond.Main)
		return
	}

	id, location := sess.id, sess.location
	accepted := s.deps.Mutator.Submit(func(w ports.World) {
		// The session may have stopped while this mutation sat in the queue.
		if !s.isCurrent(id) {
			hlog.Debugf("discarding queued weather change for %s: session %s no longer active", location, id)
			s.deps.Metrics.RecordStale()
			return
		}
		w.SetWeather(change)
		s.deps.Metrics.RecordApplied(change.State)
		hlog.Infof("applied weather condition %s to %s: %s for %d ticks", cond.Main, w.Name(), change.State, change.DurationTicks)
		s.record(ports.WeatherEventRecord{
			SessionID:      id,
			Location:       location,
			Classification: cond.Main,
			State:          change.State,
			DurationTicks:  change.DurationTicks,
			AppliedAt:      s.deps.Now(),
		})
	})
	if !accepted {
		hlog.Warnf("weather change %s for %s dropped by world queue", change.State, location)
	}
}

func (s *Service) noteFetch(id, classification string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.id != id {
		return
	}
	s.last = lastFetch{classification: classification, at: s.deps.Now()}
	if err != nil {
		s.last.err = err.Error()
	}
}

// record runs on the tick goroutine and must not block it.
func (s *Service) record(rec ports.WeatherEventRecord) {
	if s.records == nil {
		return
	}
	select {
	case s.records <- rec:
	default:
		hlog.Warnf("weather journal backlog full, dropping event for session %s", rec.SessionID)
	}
}

func (s *Service) runJournal() {
	defer close(s.journalDone)
	defer s.journalCancel()
	for {
		select {
		case rec := <-s.records:
			s.appendRecord(rec)
		case <-s.stopJournal:
			for {
				select {
				case rec := <-s.records:
					if s.journalCtx.Err() != nil {
						hlog.Warnf("weather journal closed, dropping %d buffered events", len(s.records)+1)
						return
					}
					s.appendRecord(rec)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) appendRecord(rec ports.WeatherEventRecord) {
	ctx, cancel := context.WithTimeout(s.journalCtx, 5*time.Second)
	defer cancel()
	if err := s.deps.Journal.Append(ctx, rec); err != nil {
		hlog.Errorf("append weather journal event for %s: %v", rec.Location, err)
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordFetch()                     {}
func (nopMetrics) RecordFetchFailure()              {}
func (nopMetrics) RecordApplied(world.WeatherState) {}
func (nopMetrics) RecordSkipped(ports.SkipReason)   {}
func (nopMetrics) RecordStale()                     {}
func (nopMetrics) RecordDropped()                   {}
