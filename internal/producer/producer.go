// Package producer walks the source registry once per cycle and enqueues
// every newly discovered article for the worker pool.
package producer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
	"github.com/JakeFAU/realtime-news-crawler/internal/metrics"
	"github.com/JakeFAU/realtime-news-crawler/internal/registry"
)

// ErrCycleRunning is returned when a cycle is requested while another runs.
var ErrCycleRunning = errors.New("producer: cycle already running")

// SourceStats summarizes one source within a cycle.
type SourceStats struct {
	Pages      int    `json:"pages"`
	Listed     int    `json:"listed"`
	Enqueued   int    `json:"enqueued"`
	Duplicates int    `json:"duplicates"`
	Error      string `json:"error,omitempty"`
}

// CycleStats summarizes a producer cycle.
type CycleStats struct {
	CycleID    string                              `json:"cycle_id"`
	StartedAt  time.Time                           `json:"started_at"`
	Duration   time.Duration                       `json:"duration"`
	Pages      int                                 `json:"pages"`
	Listed     int                                 `json:"listed"`
	Enqueued   int                                 `json:"enqueued"`
	Duplicates int                                 `json:"duplicates"`
	Failed     []harvest.SourceKind                `json:"failed_sources,omitempty"`
	Sources    map[harvest.SourceKind]*SourceStats `json:"sources"`
}

// Producer runs harvest cycles. Cycles never overlap.
type Producer struct {
	sources []registry.Descriptor
	queue   harvest.Enqueuer
	ids     harvest.IDGenerator
	clock   harvest.Clock
	logger  *zap.Logger

	running sync.Mutex
	last    atomic.Pointer[CycleStats]
}

// New constructs a Producer over the registry's sources.
func New(
	reg *registry.Registry,
	queue harvest.Enqueuer,
	ids harvest.IDGenerator,
	clock harvest.Clock,
	logger *zap.Logger,
) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		sources: reg.Descriptors(),
		queue:   queue,
		ids:     ids,
		clock:   clock,
		logger:  logger,
	}
}

// LastCycle returns the most recent cycle, if any. A cycle aborted by an
// enqueue failure is reported with its partial counts.
func (p *Producer) LastCycle() (CycleStats, bool) {
	stats := p.last.Load()
	if stats == nil {
		return CycleStats{}, false
	}
	return *stats, true
}

// RunCycle paginates every source in registry order and enqueues each
// listing whose dedup key has not been seen earlier in the same cycle.
// Lister failures abandon only the failing source. An enqueue failure ends
// the cycle with an error.
func (p *Producer) RunCycle(ctx context.Context) (CycleStats, error) {
	if !p.running.TryLock() {
		metrics.ObserveCycleResult("skipped")
		return CycleStats{}, ErrCycleRunning
	}
	defer p.running.Unlock()

	cycleID, err := p.ids.NewID()
	if err != nil {
		metrics.ObserveCycleResult("failed")
		return CycleStats{}, fmt.Errorf("cycle id: %w", err)
	}
	stats := CycleStats{
		CycleID:   cycleID,
		StartedAt: p.clock.Now(),
		Sources:   make(map[harvest.SourceKind]*SourceStats, len(p.sources)),
	}
	logger := p.logger.With(zap.String("cycle_id", cycleID))
	logger.Debug("cycle started")

	seen := make(map[string]struct{})
	for _, src := range p.sources {
		srcStats := &SourceStats{}
		stats.Sources[src.Kind] = srcStats
		if err := p.drainSource(ctx, cycleID, src, seen, srcStats, logger); err != nil {
			srcStats.Error = err.Error()
			stats.Failed = append(stats.Failed, src.Kind)
			stats.finish(p.clock.Now())
			p.last.Store(&stats)
			metrics.ObserveCycleResult("failed")
			logger.Error("cycle aborted",
				zap.String("source", src.Name),
				zap.Int("enqueued", stats.Enqueued),
				zap.Error(err),
			)
			return stats, err
		}
		if srcStats.Error != "" {
			stats.Failed = append(stats.Failed, src.Kind)
		}
	}
	stats.finish(p.clock.Now())
	p.last.Store(&stats)
	metrics.ObserveCycle(stats.metrics())

	logger.Info("cycle complete",
		zap.Int("pages", stats.Pages),
		zap.Int("listed", stats.Listed),
		zap.Int("enqueued", stats.Enqueued),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("failed_sources", len(stats.Failed)),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func (p *Producer) drainSource(
	ctx context.Context,
	cycleID string,
	src registry.Descriptor,
	seen map[string]struct{},
	stats *SourceStats,
	logger *zap.Logger,
) error {
	for page := src.StartPage; page < src.StartPage+src.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cycle canceled at %s page %d: %w", src.Name, page, err)
		}
		listings, err := src.Lister.List(ctx, page)
		stats.Pages++
		if err != nil {
			stats.Error = err.Error()
			logger.Warn("source abandoned for this cycle",
				zap.String("source", src.Name),
				zap.Int("page", page),
				zap.Error(err),
			)
			return nil
		}
		if len(listings) == 0 {
			return nil
		}
		for _, listing := range listings {
			stats.Listed++
			if listing.DedupKey == "" {
				logger.Warn("listing without dedup key skipped", zap.String("source", src.Name), zap.Int("page", page))
				continue
			}
			if _, dup := seen[listing.DedupKey]; dup {
				stats.Duplicates++
				continue
			}
			seen[listing.DedupKey] = struct{}{}
			if err := p.enqueue(ctx, cycleID, src.Kind, listing); err != nil {
				return err
			}
			stats.Enqueued++
		}
	}
	return nil
}

func (p *Producer) enqueue(ctx context.Context, cycleID string, kind harvest.SourceKind, listing harvest.Listing) error {
	id, err := p.ids.NewID()
	if err != nil {
		return fmt.Errorf("item id: %w", err)
	}
	if listing.Kind != "" {
		kind = listing.Kind
	}
	item := harvest.WorkItem{
		ID:           id,
		CycleID:      cycleID,
		Kind:         kind,
		DedupKey:     listing.DedupKey,
		Metadata:     listing.Metadata,
		DiscoveredAt: p.clock.Now(),
	}
	if err := p.queue.Enqueue(ctx, harvest.Work(item)); err != nil {
		return fmt.Errorf("enqueue %s: %w", item, err)
	}
	return nil
}

func (s *CycleStats) finish(now time.Time) {
	s.Duration = now.Sub(s.StartedAt)
	for _, src := range s.Sources {
		s.Pages += src.Pages
		s.Listed += src.Listed
		s.Enqueued += src.Enqueued
		s.Duplicates += src.Duplicates
	}
}

func (s CycleStats) metrics() metrics.CycleStats {
	out := metrics.CycleStats{
		Listed:     make(map[string]int, len(s.Sources)),
		Enqueued:   make(map[string]int, len(s.Sources)),
		Duplicates: make(map[string]int, len(s.Sources)),
		Duration:   s.Duration,
	}
	for kind, src := range s.Sources {
		out.Listed[string(kind)] = src.Listed
		out.Enqueued[string(kind)] = src.Enqueued
		out.Duplicates[string(kind)] = src.Duplicates
	}
	for _, kind := range s.Failed {
		out.FailedSources = append(out.FailedSources, string(kind))
	}
	return out
}
