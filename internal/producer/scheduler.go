package producer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/logging"
)

// ErrSchedulerStopped is returned by RunNow and Start after Stop.
var ErrSchedulerStopped = errors.New("producer: scheduler stopped")

// CycleRunner runs one harvest cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (CycleStats, error)
}

// Scheduler fires cycles on a fixed period. Firings that land while a cycle
// is still running are skipped.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	cron     *cron.Cron
	logger   *zap.Logger

	mu       sync.Mutex
	started  bool
	stopped  bool
	inflight sync.WaitGroup
}

// NewScheduler builds a Scheduler. Intervals below one second are raised to
// one second.
func NewScheduler(runner CycleRunner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := logging.NewCronLogger(logger)
	return &Scheduler{
		runner:   runner,
		interval: interval,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger: logger,
	}
}

// RunNow runs one cycle synchronously on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context) (CycleStats, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return CycleStats{}, ErrSchedulerStopped
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	return s.runner.RunCycle(ctx)
}

// Start activates the periodic timer. The first timed cycle fires one
// interval after Start. ctx is handed to every timed cycle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.started {
		return nil
	}
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.tick(ctx)
	}))
	s.cron.Start()
	s.started = true
	s.logger.Info("cycle timer started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.RunNow(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCycleRunning), errors.Is(err, ErrSchedulerStopped):
		s.logger.Debug("timed cycle skipped", zap.Error(err))
	default:
		s.logger.Error("timed cycle failed", zap.Error(err))
	}
}

// Stop halts the timer and blocks until any in-flight cycle returns or ctx
// ends. After Stop no further cycle can start, even when ctx ended first.
// Stop is idempotent.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("await in-flight cycle: %w", ctx.Err())
	}
}
