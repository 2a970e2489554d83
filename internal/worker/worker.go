// Package worker implements the per-item fetch, analyze, store loop.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
	"github.com/JakeFAU/realtime-news-crawler/internal/metrics"
)

// Queue is the consumer side of the work queue.
type Queue interface {
	Dequeue(ctx context.Context) (harvest.QueueItem, error)
	Done()
}

// FetcherResolver maps an item kind to its Fetcher.
type FetcherResolver interface {
	Fetcher(kind harvest.SourceKind) (harvest.Fetcher, error)
}

// Worker consumes queue items until it receives a sentinel.
type Worker struct {
	index    int
	queue    Queue
	fetchers FetcherResolver
	analyzer harvest.Analyzer
	store    harvest.Store
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	index int,
	queue Queue,
	fetchers FetcherResolver,
	analyzer harvest.Analyzer,
	store harvest.Store,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		index:    index,
		queue:    queue,
		fetchers: fetchers,
		analyzer: analyzer,
		store:    store,
		logger:   logger.Named("worker").With(zap.Int("index", index)),
	}
}

// Run blocks, consuming queue items until a sentinel arrives or ctx ends.
// Item failures never stop the loop.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Warn("worker stopped without sentinel", zap.Error(err))
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		if w.consume(ctx, item) {
			return
		}
	}
}

// consume handles one dequeued value and reports whether the worker must exit.
func (w *Worker) consume(ctx context.Context, item harvest.QueueItem) bool {
	defer w.queue.Done()

	if item.Sentinel {
		w.logger.Info("sentinel received, worker exiting")
		return true
	}

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	start := time.Now()
	w.logger.Debug("item started", itemFields(item.Item)...)
	outcome := w.Handle(ctx, item.Item)
	w.report(item.Item, outcome, time.Since(start))
	return false
}

// Handle runs fetch, analyze and store for one item and returns the outcome.
// Panics raised by collaborators are converted into a dropped outcome.
func (w *Worker) Handle(ctx context.Context, item harvest.WorkItem) (outcome harvest.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = harvest.Dropped(harvest.StagePanic, fmt.Errorf("recovered: %v", r))
		}
	}()

	fetcher, err := w.fetchers.Fetcher(item.Kind)
	if err != nil {
		return harvest.Dropped(harvest.StageDispatch, err)
	}
	article, err := fetcher.Fetch(ctx, item)
	if err != nil {
		return harvest.Dropped(harvest.StageFetch, err)
	}
	analyzed, err := w.analyzer.Analyze(ctx, article)
	if err != nil {
		return harvest.Dropped(harvest.StageAnalyze, err)
	}
	result, err := w.store.Save(ctx, analyzed)
	if err != nil {
		return harvest.Dropped(harvest.StageStore, err)
	}
	if result.Duplicate {
		return harvest.Duplicate(result.ID)
	}
	return harvest.Stored(result.ID)
}

func (w *Worker) report(item harvest.WorkItem, outcome harvest.Outcome, elapsed time.Duration) {
	metrics.ObserveItem(string(item.Kind), string(outcome.Kind), string(outcome.Stage), elapsed)

	fields := append(itemFields(item), zap.Duration("elapsed", elapsed))
	switch {
	case outcome.Kind == harvest.OutcomeStored:
		w.logger.Info("item stored", append(fields, zap.Int64("news_id", outcome.StoreID))...)
	case outcome.Kind == harvest.OutcomeDuplicate:
		w.logger.Info("item already stored", append(fields, zap.Int64("news_id", outcome.StoreID))...)
	case outcome.Stage == harvest.StageDispatch:
		w.logger.Warn("item dropped", append(fields, zap.String("stage", string(outcome.Stage)), zap.Error(outcome.Err))...)
	default:
		w.logger.Error("item dropped", append(fields, zap.String("stage", string(outcome.Stage)), zap.Error(outcome.Err))...)
	}
}

func itemFields(item harvest.WorkItem) []zap.Field {
	return []zap.Field{
		zap.String("item_id", item.ID),
		zap.String("cycle_id", item.CycleID),
		zap.String("kind", string(item.Kind)),
		zap.String("dedup_key", item.DedupKey),
	}
}
