package weathersync

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"worldsync/internal/app/ports"
	"worldsync/internal/domain/world"
)

type fakeScheduler struct {
	mu      sync.Mutex
	next    int
	jobs    map[int]func()
	calls   []time.Duration
	failErr error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: map[int]func(){}}
}

func (s *fakeScheduler) Every(interval time.Duration, fn func()) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	s.calls = append(s.calls, interval)
	id := s.next
	s.next++
	s.jobs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.jobs, id)
	}, nil
}

func (s *fakeScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// fire runs every active job once, as if the interval elapsed.
func (s *fakeScheduler) fire() {
	s.mu.Lock()
	jobs := make([]func(), 0, len(s.jobs))
	for _, fn := range s.jobs {
		jobs = append(jobs, fn)
	}
	s.mu.Unlock()
	for _, fn := range jobs {
		fn()
	}
}

type fakeProvider struct {
	mu        sync.Mutex
	sample    world.Sample
	err       error
	block     chan struct{}
	gates     map[string]chan struct{}
	samples   map[string]world.Sample
	locations []string
}

func (p *fakeProvider) Current(ctx context.Context, location string) (world.Sample, error) {
	p.mu.Lock()
	p.locations = append(p.locations, location)
	block, sample, err := p.block, p.sample, p.err
	if gate, ok := p.gates[location]; ok {
		block = gate
	}
	if s, ok := p.samples[location]; ok {
		sample = s
	}
	p.mu.Unlock()

	if block != nil {
		<-block
	}
	sample.Location = location
	return sample, err
}

func (p *fakeProvider) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.locations...)
}

type fakeMutator struct {
	mu        sync.Mutex
	queued    []ports.Mutation
	rejectAll bool
}

func (m *fakeMutator) Submit(fn ports.Mutation) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejectAll {
		return false
	}
	m.queued = append(m.queued, fn)
	return true
}

func (m *fakeMutator) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queued)
}

// drain plays the tick goroutine: it applies everything queued so far.
func (m *fakeMutator) drain(w ports.World) {
	m.mu.Lock()
	queued := m.queued
	m.queued = nil
	m.mu.Unlock()
	for _, fn := range queued {
		fn(w)
	}
}

type fakeWorld struct {
	state world.WeatherState
	ticks int64
	sets  int
}

func (w *fakeWorld) Name() string        { return "overworld" }
func (w *fakeWorld) Authoritative() bool { return true }
func (w *fakeWorld) TimeOfDay() int64    { return 0 }
func (w *fakeWorld) SetTimeOfDay(int64)  {}
func (w *fakeWorld) Weather() (world.WeatherState, int64) {
	return w.state, w.ticks
}
func (w *fakeWorld) SetWeather(c world.WeatherChange) {
	w.state = c.State
	w.ticks = c.DurationTicks
	w.sets++
}

type countingMetrics struct {
	mu       sync.Mutex
	fetches  int
	failures int
	applied  map[world.WeatherState]int
	skipped  map[ports.SkipReason]int
	stale    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{applied: map[world.WeatherState]int{}, skipped: map[ports.SkipReason]int{}}
}

func (m *countingMetrics) RecordFetch()        { m.mu.Lock(); m.fetches++; m.mu.Unlock() }
func (m *countingMetrics) RecordFetchFailure() { m.mu.Lock(); m.failures++; m.mu.Unlock() }
func (m *countingMetrics) RecordApplied(s world.WeatherState) {
	m.mu.Lock()
	m.applied[s]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordSkipped(r ports.SkipReason) {
	m.mu.Lock()
	m.skipped[r]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordStale()   { m.mu.Lock(); m.stale++; m.mu.Unlock() }
func (m *countingMetrics) RecordDropped() {}

type memJournal struct {
	mu     sync.Mutex
	events []ports.WeatherEventRecord
}

func (j *memJournal) Append(_ context.Context, ev ports.WeatherEventRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
	return nil
}

func (j *memJournal) List(context.Context, int) ([]ports.WeatherEventRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]ports.WeatherEventRecord(nil), j.events...), nil
}

type harness struct {
	svc       *Service
	sched     *fakeScheduler
	provider  *fakeProvider
	mutator   *fakeMutator
	metrics   *countingMetrics
	journal   *memJournal
	worldView *fakeWorld
}

func newHarness(t *testing.T, main string) *harness {
	t.Helper()
	h := &harness{
		sched:     newFakeScheduler(),
		provider:  &fakeProvider{},
		mutator:   &fakeMutator{},
		metrics:   newCountingMetrics(),
		journal:   &memJournal{},
		worldView: &fakeWorld{state: world.WeatherClear},
	}
	if main != "" {
		h.provider.sample = world.Sample{Conditions: []world.Condition{{Main: main}}}
	}
	ids := 0
	h.svc = NewService(Config{Interval: time.Minute}, Deps{
		Provider:  h.provider,
		Mutator:   h.mutator,
		Scheduler: h.sched,
		Journal:   h.journal,
		Metrics:   h.metrics,
		NewID: func() string {
			ids++
			return "session-" + strconv.Itoa(ids)
		},
	})
	t.Cleanup(func() { _ = h.svc.Close(context.Background()) })
	return h
}

// settle waits for every fetch dispatched so far. Dispatch registers with the
// wait group before returning, so this is deterministic.
func (h *harness) settle() {
	h.svc.inflight.Wait()
}

func TestStart_FetchesImmediatelyAndAppliesOnTick(t *testing.T) {
	h := newHarness(t, "Rain")

	res, err := h.svc.Start("  London ")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if res.Location != "London" || res.Replaced {
		t.Fatalf("unexpected start result: %+v", res)
	}
	h.settle()

	if got := h.provider.calls(); len(got) != 1 || got[0] != "London" {
		t.Fatalf("provider calls=%v want [London]", got)
	}
	if h.worldView.sets != 0 {
		t.Fatalf("world mutated off the tick goroutine")
	}
	h.mutator.drain(h.worldView)

	if h.worldView.state != world.WeatherRain || h.worldView.ticks != world.LongWeatherTicks {
		t.Fatalf("weather=%s/%d want rain/%d", h.worldView.state, h.worldView.ticks, world.LongWeatherTicks)
	}
	if h.metrics.applied[world.WeatherRain] != 1 {
		t.Fatalf("applied metrics=%v", h.metrics.applied)
	}
	if len(h.sched.calls) != 1 || h.sched.calls[0] != time.Minute {
		t.Fatalf("scheduler calls=%v want [1m]", h.sched.calls)
	}
}

func TestStart_RejectsBlankLocation(t *testing.T) {
	h := newHarness(t, "Rain")

	for _, loc := range []string{"", "   "} {
		if _, err := h.svc.Start(loc); !errors.Is(err, ErrInvalidLocation) {
			t.Fatalf("Start(%q) err=%v want ErrInvalidLocation", loc, err)
		}
	}
	if h.sched.active() != 0 || h.svc.Status().Active {
		t.Fatalf("expected service to stay idle")
	}
}

func TestStart_TwiceLeavesOneSchedule(t *testing.T) {
	h := newHarness(t, "Clear")

	if _, err := h.svc.Start("London"); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	res, err := h.svc.Start("Paris")
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !res.Replaced || res.PreviousLocation != "London" {
		t.Fatalf("unexpected replace result: %+v", res)
	}
	if got := h.sched.active(); got != 1 {
		t.Fatalf("active schedules=%d want 1", got)
	}
	if st := h.svc.Status(); st.Location != "Paris" || st.SessionID != res.SessionID {
		t.Fatalf("status=%+v", st)
	}

	h.settle()
	h.sched.fire()
	h.settle()
	calls := h.provider.calls()
	if last := calls[len(calls)-1]; last != "Paris" {
		t.Fatalf("timer fetched %q want Paris", last)
	}
}

func TestStart_ScheduleFailureKeepsPreviousSession(t *testing.T) {
	h := newHarness(t, "Clear")
	first, err := h.svc.Start("London")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	boom := errors.New("scheduler down")
	h.sched.failErr = boom
	if _, err := h.svc.Start("Paris"); !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
	st := h.svc.Status()
	if !st.Active || st.SessionID != first.SessionID || st.Location != "London" {
		t.Fatalf("previous session lost: %+v", st)
	}
	if h.sched.active() != 1 {
		t.Fatalf("active schedules=%d want 1", h.sched.active())
	}
}

func TestStop_IdleIsNoop(t *testing.T) {
	h := newHarness(t, "Rain")

	res := h.svc.Stop()
	if res.WasActive {
		t.Fatalf("expected WasActive=false when idle")
	}
	if h.svc.Status().Active {
		t.Fatalf("expected idle status")
	}
}

func TestStop_CancelsScheduleAndFurtherFetches(t *testing.T) {
	h := newHarness(t, "Rain")
	started, _ := h.svc.Start("London")
	h.settle()

	res := h.svc.Stop()
	if !res.WasActive || res.SessionID != started.SessionID || res.Location != "London" {
		t.Fatalf("stop result=%+v", res)
	}
	if h.sched.active() != 0 {
		t.Fatalf("schedule still active after Stop")
	}
	before := len(h.provider.calls())
	h.sched.fire()
	h.settle()
	if after := len(h.provider.calls()); after != before {
		t.Fatalf("fetches after stop=%d want %d", after, before)
	}
}

func TestFetch_ResultDiscardedWhenSessionStoppedMidRequest(t *testing.T) {
	h := newHarness(t, "Thunderstorm")
	release := make(chan struct{})
	h.provider.block = release

	h.svc.Start("London")
	h.svc.Stop()
	close(release)
	h.settle()

	if h.mutator.pending() != 0 {
		t.Fatalf("stale fetch submitted a mutation")
	}
	if h.metrics.stale != 1 {
		t.Fatalf("stale=%d want 1", h.metrics.stale)
	}
}

func TestFetch_ResultFromReplacedSessionDiscarded(t *testing.T) {
	h := newHarness(t, "Thunderstorm")
	release := make(chan struct{})
	h.provider.gates = map[string]chan struct{}{"London": release}
	h.provider.samples = map[string]world.Sample{
		"Paris": {Conditions: []world.Condition{{Main: "Clear"}}},
	}

	h.svc.Start("London")
	h.svc.Start("Paris")
	close(release)
	h.settle()

	h.mutator.drain(h.worldView)
	if h.worldView.sets != 1 || h.worldView.state != world.WeatherClear {
		t.Fatalf("sets=%d state=%s want one clear change from Paris", h.worldView.sets, h.worldView.state)
	}
	if h.metrics.stale != 1 {
		t.Fatalf("stale=%d want 1", h.metrics.stale)
	}
}

func TestApply_QueuedMutationDroppedAfterStop(t *testing.T) {
	h := newHarness(t, "Rain")
	h.svc.Start("London")
	h.settle()
	if h.mutator.pending() != 1 {
		t.Fatalf("pending=%d want 1", h.mutator.pending())
	}

	h.svc.Stop()
	h.mutator.drain(h.worldView)

	if h.worldView.sets != 0 {
		t.Fatalf("queued change applied after stop")
	}
}

func TestFetch_MappingTable(t *testing.T) {
	cases := []struct {
		main  string
		state world.WeatherState
		ticks int64
	}{
		{"Clear", world.WeatherClear, world.ShortWeatherTicks},
		{"rain", world.WeatherRain, world.LongWeatherTicks},
		{"Drizzle", world.WeatherRain, world.LongWeatherTicks},
		{"THUNDERSTORM", world.WeatherThunder, world.LongWeatherTicks},
	}
	for _, tc := range cases {
		h := newHarness(t, tc.main)
		h.worldView.state = world.WeatherRain
		h.svc.Start("London")
		h.settle()
		h.mutator.drain(h.worldView)
		if h.worldView.state != tc.state || h.worldView.ticks != tc.ticks {
			t.Fatalf("%s: weather=%s/%d want %s/%d", tc.main, h.worldView.state, h.worldView.ticks, tc.state, tc.ticks)
		}
	}
}

func TestFetch_UnmappedAndEmptyLeaveWorldAlone(t *testing.T) {
	cases := []struct {
		name   string
		main   string
		reason ports.SkipReason
	}{
		{"unmapped", "Snow", ports.SkipUnmapped},
		{"empty", "", ports.SkipEmptyPayload},
	}
	for _, tc := range cases {
		h := newHarness(t, tc.main)
		h.svc.Start("London")
		h.settle()

		if h.mutator.pending() != 0 {
			t.Fatalf("%s: mutation submitted", tc.name)
		}
		if h.metrics.skipped[tc.reason] != 1 {
			t.Fatalf("%s: skipped=%v", tc.name, h.metrics.skipped)
		}
		if !h.svc.Status().Active {
			t.Fatalf("%s: session should remain active", tc.name)
		}
	}
}

func TestFetch_ErrorKeepsSessionActive(t *testing.T) {
	h := newHarness(t, "")
	h.provider.err = errors.New("status 401")

	h.svc.Start("London")
	h.settle()

	st := h.svc.Status()
	if !st.Active {
		t.Fatalf("session stopped after fetch error")
	}
	if st.LastError != "status 401" {
		t.Fatalf("last error=%q", st.LastError)
	}
	if h.metrics.failures != 1 || h.mutator.pending() != 0 {
		t.Fatalf("failures=%d pending=%d", h.metrics.failures, h.mutator.pending())
	}

	h.provider.mu.Lock()
	h.provider.err = nil
	h.provider.sample = world.Sample{Conditions: []world.Condition{{Main: "Rain"}}}
	h.provider.mu.Unlock()
	h.sched.fire()
	h.settle()
	if h.mutator.pending() != 1 {
		t.Fatalf("next tick of the timer did not recover")
	}
	if st := h.svc.Status(); st.LastError != "" || st.LastClassification != "Rain" {
		t.Fatalf("status after recovery=%+v", st)
	}
}

func TestFetch_QueueRejectionIsNotFatal(t *testing.T) {
	h := newHarness(t, "Rain")
	h.mutator.rejectAll = true

	h.svc.Start("London")
	h.settle()

	if !h.svc.Status().Active {
		t.Fatalf("session stopped after dropped mutation")
	}
}

func TestApply_JournalsAppliedChange(t *testing.T) {
	h := newHarness(t, "Drizzle")
	res, _ := h.svc.Start("London")
	h.settle()
	h.mutator.drain(h.worldView)

	if err := h.svc.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	events, _ := h.journal.List(context.Background(), 0)
	if len(events) != 1 {
		t.Fatalf("events=%d want 1", len(events))
	}
	ev := events[0]
	if ev.SessionID != res.SessionID || ev.Location != "London" || ev.Classification != "Drizzle" || ev.State != world.WeatherRain {
		t.Fatalf("event=%+v", ev)
	}
}

func TestClose_RejectsFurtherStarts(t *testing.T) {
	h := newHarness(t, "Rain")
	h.svc.Start("London")

	if err := h.svc.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if h.sched.active() != 0 {
		t.Fatalf("schedule survived Close")
	}
	if _, err := h.svc.Start("Paris"); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v want ErrClosed", err)
	}
	if err := h.svc.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestClose_ExpiredContextStillStopsJournalWorker(t *testing.T) {
	h := newHarness(t, "Rain")
	h.provider.block = make(chan struct{})
	t.Cleanup(func() { close(h.provider.block) })

	h.svc.Start("London")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.svc.Close(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	select {
	case <-h.svc.journalDone:
	default:
		t.Fatalf("journal worker still running after Close")
	}

	// A fetch finishing after shutdown must not reach the closed backend.
	h.svc.record(ports.WeatherEventRecord{SessionID: "late", Location: "London"})
	if events, _ := h.journal.List(context.Background(), 0); len(events) != 0 {
		t.Fatalf("events=%d want 0", len(events))
	}
}

func TestStatus_TimestampsOmittedUntilSet(t *testing.T) {
	h := newHarness(t, "Rain")
	h.provider.block = make(chan struct{})

	raw, err := json.Marshal(h.svc.Status())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var idle map[string]any
	if err := json.Unmarshal(raw, &idle); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"started_at", "last_fetch_at"} {
		if _, ok := idle[key]; ok {
			t.Fatalf("idle status carries %s: %s", key, raw)
		}
	}

	h.svc.Start("London")
	st := h.svc.Status()
	if st.StartedAt == nil || st.LastFetchAt != nil {
		t.Fatalf("before first result started=%v last_fetch=%v", st.StartedAt, st.LastFetchAt)
	}

	close(h.provider.block)
	h.settle()
	if st := h.svc.Status(); st.LastFetchAt == nil {
		t.Fatalf("last fetch time missing after result")
	}
}
