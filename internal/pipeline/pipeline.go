// Package pipeline owns the harvest pipeline lifecycle: the producer timer,
// the worker pool and the queue they share, and the sentinel-based drain
// that takes the pipeline from RUNNING through DRAINING to STOPPED.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/metrics"
	"github.com/JakeFAU/realtime-news-crawler/internal/producer"
)

// State is the pipeline lifecycle state.
type State int32

// Lifecycle states. Transitions only move forward.
const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Errors returned by lifecycle calls made in the wrong state.
var (
	ErrAlreadyStarted = errors.New("pipeline: already started")
	ErrNotStarted     = errors.New("pipeline: not started")
)

// Scheduler drives producer cycles.
type Scheduler interface {
	RunNow(ctx context.Context) (producer.CycleStats, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Pool is the fixed worker pool.
type Pool interface {
	Start(ctx context.Context)
	SendSentinels(ctx context.Context) error
	Join(ctx context.Context) error
	Size() int
}

// Queue is the drain side of the work queue.
type Queue interface {
	Wait(ctx context.Context) error
	Len() int
	Pending() int
}

// CycleSource reports the last completed producer cycle.
type CycleSource interface {
	LastCycle() (producer.CycleStats, bool)
}

// Config tunes the lifecycle.
type Config struct {
	// ShutdownTimeout bounds Shutdown when positive. Zero waits for a full drain.
	ShutdownTimeout time.Duration
}

// Pipeline is the explicit context object tying producer, pool and queue
// together. It is built once at startup and shared by reference.
type Pipeline struct {
	cfg       Config
	scheduler Scheduler
	pool      Pool
	queue     Queue
	cycles    CycleSource
	logger    *zap.Logger

	state     atomic.Int32
	startDone chan struct{}
	stopped   chan struct{}
}

// New assembles a Pipeline in the idle state.
func New(cfg Config, scheduler Scheduler, pool Pool, queue Queue, cycles CycleSource, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		scheduler: scheduler,
		pool:      pool,
		queue:     queue,
		cycles:    cycles,
		logger:    logger.Named("pipeline"),
		startDone: make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Stopped is closed once the pipeline reaches STOPPED.
func (p *Pipeline) Stopped() <-chan struct{} {
	return p.stopped
}

// Start runs one cycle synchronously, launches the worker pool and then
// activates the cycle timer. Cancellation of ctx does not reach in-flight
// items or cycles; only Shutdown stops the pipeline.
func (p *Pipeline) Start(ctx context.Context) error {
	return p.start(ctx, true)
}

// RunOnce runs a single cycle, processes everything it enqueued and stops.
func (p *Pipeline) RunOnce(ctx context.Context) (producer.CycleStats, error) {
	if err := p.start(ctx, false); err != nil {
		return producer.CycleStats{}, err
	}
	stats, _ := p.cycles.LastCycle()
	if err := p.Shutdown(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

func (p *Pipeline) start(ctx context.Context, withTimer bool) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	defer close(p.startDone)
	metrics.SetPipelineState(int(StateRunning))
	runCtx := context.WithoutCancel(ctx)

	p.logger.Info("pipeline starting", zap.Int("workers", p.pool.Size()))
	stats, err := p.scheduler.RunNow(runCtx)
	switch {
	case err == nil:
		p.logger.Info("initial cycle complete", zap.Int("enqueued", stats.Enqueued))
	case errors.Is(err, producer.ErrSchedulerStopped):
		p.logger.Info("initial cycle skipped, shutdown already requested")
	default:
		p.logger.Error("initial cycle failed", zap.Error(err))
	}

	p.pool.Start(runCtx)
	if !withTimer {
		return nil
	}
	if err := p.scheduler.Start(runCtx); err != nil && !errors.Is(err, producer.ErrSchedulerStopped) {
		return fmt.Errorf("start cycle timer: %w", err)
	}
	return nil
}

// Shutdown moves RUNNING to DRAINING, stops the timer, waits for any
// in-flight cycle, enqueues one sentinel per worker, waits for the queue to
// drain and joins the pool before entering STOPPED. A call made while
// already draining or stopped is ignored.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		if p.State() == StateIdle {
			return ErrNotStarted
		}
		p.logger.Info("shutdown already in progress, request ignored", zap.Stringer("state", p.State()))
		return nil
	}
	metrics.SetPipelineState(int(StateDraining))
	if p.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ShutdownTimeout)
		defer cancel()
	}
	p.logger.Info("shutdown requested, draining",
		zap.Int("queued", p.queue.Len()),
		zap.Int("pending", p.queue.Pending()),
	)

	if err := p.scheduler.Stop(ctx); err != nil {
		return fmt.Errorf("stop cycle timer: %w", err)
	}
	p.logger.Info("cycle timer stopped")

	select {
	case <-p.startDone:
	default:
		select {
		case <-p.startDone:
		case <-ctx.Done():
			return fmt.Errorf("await startup: %w", ctx.Err())
		}
	}

	if err := p.pool.SendSentinels(ctx); err != nil {
		return fmt.Errorf("send sentinels: %w", err)
	}
	p.logger.Info("sentinels enqueued", zap.Int("count", p.pool.Size()))

	p.logger.Info("waiting for queue drain", zap.Int("pending", p.queue.Pending()))
	if err := p.queue.Wait(ctx); err != nil {
		return fmt.Errorf("drain queue: %w", err)
	}

	if err := p.pool.Join(ctx); err != nil {
		return fmt.Errorf("join pool: %w", err)
	}
	p.logger.Info("worker pool joined")

	p.state.Store(int32(StateStopped))
	metrics.SetPipelineState(int(StateStopped))
	close(p.stopped)
	p.logger.Info("pipeline stopped")
	return nil
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	State      string               `json:"state"`
	Workers    int                  `json:"workers"`
	QueueDepth int                  `json:"queue_depth"`
	Pending    int                  `json:"pending"`
	LastCycle  *producer.CycleStats `json:"last_cycle,omitempty"`
}

// Status reports the current state, queue depth and last cycle.
func (p *Pipeline) Status() Status {
	st := Status{
		State:      p.State().String(),
		Workers:    p.pool.Size(),
		QueueDepth: p.queue.Len(),
		Pending:    p.queue.Pending(),
	}
	if last, ok := p.cycles.LastCycle(); ok {
		st.LastCycle = &last
	}
	return st
}
