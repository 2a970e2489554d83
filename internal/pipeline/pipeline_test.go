package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/realtime-news-crawler/internal/clock/system"
	"github.com/JakeFAU/realtime-news-crawler/internal/dispatcher"
	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
	"github.com/JakeFAU/realtime-news-crawler/internal/producer"
	"github.com/JakeFAU/realtime-news-crawler/internal/queue/memory"
	"github.com/JakeFAU/realtime-news-crawler/internal/registry"
	"github.com/JakeFAU/realtime-news-crawler/internal/worker"
)

type staticLister struct{ keys []string }

func (l staticLister) List(_ context.Context, page int) ([]harvest.Listing, error) {
	if page != 1 {
		return nil, nil
	}
	out := make([]harvest.Listing, 0, len(l.keys))
	for _, k := range l.keys {
		out = append(out, harvest.Listing{DedupKey: k})
	}
	return out, nil
}

type echoFetcher struct{}

func (echoFetcher) Fetch(_ context.Context, item harvest.WorkItem) (harvest.FetchedArticle, error) {
	return harvest.FetchedArticle{URL: item.DedupKey, Kind: item.Kind}, nil
}

type passAnalyzer struct{}

func (passAnalyzer) Analyze(_ context.Context, a harvest.FetchedArticle) (harvest.AnalyzedArticle, error) {
	return harvest.AnalyzedArticle{FetchedArticle: a}, nil
}

type slowStore struct {
	delay time.Duration
	gate  chan struct{}

	mu    sync.Mutex
	saved map[string]int
}

func (s *slowStore) Save(_ context.Context, a harvest.AnalyzedArticle) (harvest.StoreResult, error) {
	if s.gate != nil {
		<-s.gate
	}
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]int)
	}
	s.saved[a.URL]++
	return harvest.StoreResult{ID: int64(len(s.saved))}, nil
}

func (s *slowStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() (string, error) { return fmt.Sprintf("id-%d", s.n.Add(1)), nil }

type harness struct {
	pipeline *Pipeline
	queue    *memory.Queue
	store    *slowStore
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, items int, workers int, store *slowStore, cfg Config) harness {
	t.Helper()

	keys := make([]string, items)
	for i := range keys {
		keys[i] = fmt.Sprintf("https://example.test/%d", i)
	}
	reg, err := registry.New(registry.Source{Kind: harvest.KindNews, Lister: staticLister{keys: keys}, Fetcher: echoFetcher{}})
	require.NoError(t, err)

	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	q := memory.NewQueue(0)
	prod := producer.New(reg, q, &seqIDs{}, system.New(), logger)
	sched := producer.NewScheduler(prod, time.Hour, logger)

	runners := make([]dispatcher.Runner, workers)
	for i := range runners {
		runners[i] = worker.New(i, q, reg, passAnalyzer{}, store, logger)
	}
	pool := dispatcher.New(q, runners)

	return harness{
		pipeline: New(cfg, sched, pool, q, prod, logger),
		queue:    q,
		store:    store,
		logs:     logs,
	}
}

func TestShutdownDrainsEveryEnqueuedItem(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 40, 5, &slowStore{delay: 2 * time.Millisecond}, Config{})
	require.NoError(t, h.pipeline.Start(context.Background()))
	require.Equal(t, StateRunning, h.pipeline.State())

	require.NoError(t, h.pipeline.Shutdown(context.Background()))

	require.Equal(t, StateStopped, h.pipeline.State())
	require.Equal(t, 40, h.store.Count())
	require.Zero(t, h.queue.Len())
	require.Zero(t, h.queue.Pending())
	require.Len(t, h.logs.FilterMessage("sentinel received, worker exiting").AllUntimed(), 5)

	select {
	case <-h.pipeline.Stopped():
	default:
		t.Fatal("stopped channel not closed")
	}
}

func TestShutdownIsIdempotentWhileDraining(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	h := newHarness(t, 10, 2, &slowStore{gate: gate}, Config{})
	require.NoError(t, h.pipeline.Start(context.Background()))

	first := make(chan error, 1)
	go func() { first <- h.pipeline.Shutdown(context.Background()) }()

	require.Eventually(t, func() bool {
		return h.pipeline.State() == StateDraining
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.pipeline.Shutdown(context.Background()), "second request is ignored")
	require.Equal(t, StateDraining, h.pipeline.State())

	close(gate)
	require.NoError(t, <-first)
	require.Equal(t, StateStopped, h.pipeline.State())
	require.Equal(t, 10, h.store.Count())
	require.Len(t, h.logs.FilterMessage("sentinel received, worker exiting").AllUntimed(), 2)
	require.NoError(t, h.pipeline.Shutdown(context.Background()))
}

func TestLifecycleMisuse(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1, 1, &slowStore{}, Config{})
	require.ErrorIs(t, h.pipeline.Shutdown(context.Background()), ErrNotStarted)

	require.NoError(t, h.pipeline.Start(context.Background()))
	require.ErrorIs(t, h.pipeline.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, h.pipeline.Shutdown(context.Background()))
}

func TestShutdownTimeout(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	defer close(gate)
	h := newHarness(t, 3, 1, &slowStore{gate: gate}, Config{ShutdownTimeout: 30 * time.Millisecond})
	require.NoError(t, h.pipeline.Start(context.Background()))

	err := h.pipeline.Shutdown(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StateDraining, h.pipeline.State())
}

func TestRunOnceProcessesSingleCycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 12, 3, &slowStore{}, Config{})
	stats, err := h.pipeline.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, stats.Enqueued)
	require.Equal(t, 12, h.store.Count())
	require.Equal(t, StateStopped, h.pipeline.State())
}

func TestStatusReportsLastCycle(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	h := newHarness(t, 4, 2, &slowStore{gate: gate}, Config{})

	st := h.pipeline.Status()
	require.Equal(t, "idle", st.State)
	require.Nil(t, st.LastCycle)

	require.NoError(t, h.pipeline.Start(context.Background()))
	st = h.pipeline.Status()
	require.Equal(t, "running", st.State)
	require.Equal(t, 2, st.Workers)
	require.NotNil(t, st.LastCycle)
	require.Equal(t, 4, st.LastCycle.Enqueued)
	require.Equal(t, 4, st.Pending)

	close(gate)
	require.NoError(t, h.pipeline.Shutdown(context.Background()))
	require.Equal(t, "stopped", h.pipeline.Status().State)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "draining", StateDraining.String())
	require.Equal(t, "state(9)", State(9).String())
}

// blockingLister returns nothing for the initial cycle and blocks every later
// cycle until release closes.
type blockingLister struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (l *blockingLister) List(_ context.Context, _ int) ([]harvest.Listing, error) {
	if l.calls.Add(1) == 1 {
		return nil, nil
	}
	select {
	case l.entered <- struct{}{}:
	default:
	}
	<-l.release
	return nil, nil
}

func TestShutdownTimeoutBoundsInflightTimedCycle(t *testing.T) {
	t.Parallel()

	lister := &blockingLister{entered: make(chan struct{}, 1), release: make(chan struct{})}
	defer close(lister.release)
	reg, err := registry.New(registry.Source{Kind: harvest.KindNews, Lister: lister, Fetcher: echoFetcher{}})
	require.NoError(t, err)

	q := memory.NewQueue(0)
	logger := zap.NewNop()
	prod := producer.New(reg, q, &seqIDs{}, system.New(), logger)
	sched := producer.NewScheduler(prod, time.Second, logger)
	pool := dispatcher.New(q, []dispatcher.Runner{worker.New(0, q, reg, passAnalyzer{}, &slowStore{}, logger)})
	p := New(Config{ShutdownTimeout: 50 * time.Millisecond}, sched, pool, q, prod, logger)

	require.NoError(t, p.Start(context.Background()))
	select {
	case <-lister.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed cycle never started")
	}

	start := time.Now()
	err = p.Shutdown(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorContains(t, err, "stop cycle timer")
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, StateDraining, p.State())
}
