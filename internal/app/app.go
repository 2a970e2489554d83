// Package app builds the crawler's dependency graph from configuration and
// runs it: pipeline, HTTP status server and their shutdown ordering.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	openai "github.com/JakeFAU/realtime-news-crawler/internal/analyzer/openai"
	"github.com/JakeFAU/realtime-news-crawler/internal/api"
	"github.com/JakeFAU/realtime-news-crawler/internal/clock/system"
	"github.com/JakeFAU/realtime-news-crawler/internal/config"
	"github.com/JakeFAU/realtime-news-crawler/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/realtime-news-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
	"github.com/JakeFAU/realtime-news-crawler/internal/hash/sha256"
	"github.com/JakeFAU/realtime-news-crawler/internal/id/uuid"
	"github.com/JakeFAU/realtime-news-crawler/internal/metrics"
	"github.com/JakeFAU/realtime-news-crawler/internal/pipeline"
	"github.com/JakeFAU/realtime-news-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/realtime-news-crawler/internal/producer"
	memorypublisher "github.com/JakeFAU/realtime-news-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/realtime-news-crawler/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/realtime-news-crawler/internal/queue/memory"
	"github.com/JakeFAU/realtime-news-crawler/internal/registry"
	bleveindex "github.com/JakeFAU/realtime-news-crawler/internal/search/bleve"
	"github.com/JakeFAU/realtime-news-crawler/internal/sources/naver"
	"github.com/JakeFAU/realtime-news-crawler/internal/storage"
	gcsstorage "github.com/JakeFAU/realtime-news-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/realtime-news-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/realtime-news-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/realtime-news-crawler/internal/storage/postgres"
	"github.com/JakeFAU/realtime-news-crawler/internal/worker"
)

const httpShutdownTimeout = 10 * time.Second

// ErrPreflight wraps every failed pre-flight check.
var ErrPreflight = errors.New("pre-flight check failed")

// Option adjusts how Build wires collaborators.
type Option func(*options)

type options struct {
	endpoints *naver.Endpoints
	transport http.RoundTripper
}

// WithNaverEndpoints points the sources at alternate upstream URLs.
func WithNaverEndpoints(e naver.Endpoints) Option {
	return func(o *options) { o.endpoints = &e }
}

// WithTransport sets the HTTP transport used for upstream fetches.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

type check struct {
	name   string
	pinger harvest.Pinger
}

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	queue    *queuememory.Queue
	api      *api.Server
	checks   []check

	scanner    storage.Scanner
	index      *bleveindex.Index
	newsStore  *pgstore.NewsStore
	gcsClient  *gcs.Client
	pubsub     *gcppublisher.Publisher
	httpServer *http.Server
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	a.logger.Info("building application dependencies",
		zap.Int("workers", cfg.Pipeline.Workers),
		zap.Duration("cycle_interval", cfg.Pipeline.CycleInterval),
		zap.Int("queue_capacity", cfg.Pipeline.QueueCapacity),
	)

	clock := system.New()
	ids := uuid.New()

	reg, err := a.setupSources(clock, o)
	if err != nil {
		return nil, a.fail(err)
	}
	analyzer, err := a.setupAnalyzer(clock)
	if err != nil {
		return nil, a.fail(err)
	}
	store, err := a.setupStorage(ctx, clock)
	if err != nil {
		return nil, a.fail(err)
	}

	a.queue = queuememory.NewQueue(cfg.Pipeline.QueueCapacity)
	metrics.SetQueueDepthSource(a.queue.Len)

	prod := producer.New(reg, a.queue, ids, clock, logger.Named("producer"))
	sched := producer.NewScheduler(prod, cfg.Pipeline.CycleInterval, logger.Named("scheduler"))

	runners := make([]dispatcher.Runner, 0, cfg.Pipeline.Workers)
	for i := 0; i < cfg.Pipeline.Workers; i++ {
		runners = append(runners, worker.New(i, a.queue, reg, analyzer, store, logger))
	}
	pool := dispatcher.New(a.queue, runners)

	a.pipeline = pipeline.New(pipeline.Config{
		ShutdownTimeout: cfg.Pipeline.ShutdownTimeout,
	}, sched, pool, a.queue, prod, logger.Named("pipeline"))

	var searcher api.Searcher
	if a.index != nil {
		searcher = a.index
	}
	a.api = api.NewServer(a.pipeline, searcher, logger)
	return a, nil
}

func (a *App) fail(err error) error {
	if closeErr := a.Close(); closeErr != nil {
		a.logger.Warn("cleanup after build failure", zap.Error(closeErr))
	}
	return err
}

func (a *App) setupSources(clock harvest.Clock, o options) (*registry.Registry, error) {
	getter := collyfetcher.New(collyfetcher.Config{
		Timeout:   a.cfg.Sources.RequestTimeout,
		Transport: o.transport,
		Limiter: ratelimit.New(ratelimit.Config{
			RPS:   a.cfg.Sources.RequestsPerSecond,
			Burst: a.cfg.Sources.Burst,
		}),
	})
	ncfg := naver.Config{FreshnessWindow: a.cfg.Sources.FreshnessWindow}
	if o.endpoints != nil {
		ncfg.Endpoints = *o.endpoints
	}
	src := naver.New(getter, clock, ncfg, a.logger)

	pairs := map[harvest.SourceKind]struct {
		lister  harvest.Lister
		fetcher harvest.Fetcher
	}{
		harvest.KindNews:  {src.News, src.News},
		harvest.KindEnter: {src.Enter, src.Enter},
		harvest.KindSport: {src.Sport, src.Sport},
	}
	var sources []registry.Source
	for _, kind := range harvest.Kinds() {
		sc := a.cfg.Sources.Kind(kind)
		if !sc.Enabled {
			a.logger.Info("source disabled", zap.String("kind", string(kind)))
			continue
		}
		p := pairs[kind]
		sources = append(sources, registry.Source{
			Kind:     kind,
			Lister:   p.lister,
			Fetcher:  p.fetcher,
			MaxPages: sc.MaxPages,
		})
	}
	reg, err := registry.New(sources...)
	if err != nil {
		return nil, fmt.Errorf("source registry: %w", err)
	}
	for _, d := range reg.Descriptors() {
		a.logger.Info("source registered",
			zap.String("kind", string(d.Kind)),
			zap.Int("start_page", d.StartPage),
			zap.Int("max_pages", d.MaxPages),
		)
	}
	return reg, nil
}

func (a *App) setupAnalyzer(clock harvest.Clock) (*openai.Analyzer, error) {
	prompts, err := openai.LoadPrompts(a.cfg.Analyzer.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("analyzer prompts: %w", err)
	}
	analyzer, err := openai.New(openai.Config{
		Endpoint:   a.cfg.Analyzer.Endpoint,
		APIKey:     a.cfg.Analyzer.APIKey,
		Model:      a.cfg.Analyzer.Model,
		ScoreModel: a.cfg.Analyzer.ScoreModel,
		Timeout:    a.cfg.Analyzer.Timeout,
	}, prompts, clock, a.logger)
	if err != nil {
		return nil, fmt.Errorf("analyzer init failed: %w", err)
	}
	a.checks = append(a.checks, check{name: "analyzer", pinger: analyzer})
	return analyzer, nil
}

func (a *App) setupStorage(ctx context.Context, clock harvest.Clock) (*storage.Writer, error) {
	records, err := a.setupRecords(ctx)
	if err != nil {
		return nil, err
	}

	sinks := storage.Sinks{
		ArchivePrefix: a.cfg.Archive.Prefix,
		Topic:         a.cfg.PubSub.Topic,
	}
	if a.cfg.Search.Enabled {
		a.index, err = bleveindex.Open(a.cfg.Search.Path)
		if err != nil {
			return nil, fmt.Errorf("search index init failed: %w", err)
		}
		sinks.Index = a.index
		a.checks = append(a.checks, check{name: "search", pinger: a.index})
		a.logger.Info("search index enabled", zap.String("path", a.cfg.Search.Path))
	}
	if sinks.Archive, err = a.setupArchive(ctx); err != nil {
		return nil, err
	}
	if sinks.Publisher, err = a.setupPublisher(ctx); err != nil {
		return nil, err
	}

	w, err := storage.NewWriter(records, sinks, sha256.New(), clock, a.logger)
	if err != nil {
		return nil, fmt.Errorf("storage writer: %w", err)
	}
	return w, nil
}

func (a *App) setupRecords(ctx context.Context) (harvest.Store, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("no database DSN configured, using in-memory news store")
		store := memorystorage.NewNewsStore()
		a.scanner = store
		a.checks = append(a.checks, check{name: "database", pinger: store})
		return store, nil
	}
	if a.cfg.Database.MigrateOnStart {
		version, err := pgstore.Migrate(a.cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.logger.Info("database schema migrated", zap.Uint("version", version))
	}
	store, err := pgstore.NewNewsStore(ctx, pgstore.Config{
		DSN:             a.cfg.Database.DSN,
		MaxConns:        a.cfg.Database.MaxConns,
		MinConns:        a.cfg.Database.MinConns,
		MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("news store init failed: %w", err)
	}
	a.newsStore = store
	a.scanner = store
	a.checks = append(a.checks, check{name: "database", pinger: store})
	a.logger.Info("postgres news store initialized")
	return store, nil
}

func (a *App) setupArchive(ctx context.Context) (harvest.BlobStore, error) {
	switch a.cfg.Archive.Backend {
	case config.BackendGCS:
		var err error
		a.gcsClient, err = gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobs, err := gcsstorage.New(a.gcsClient, gcsstorage.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.checks = append(a.checks, check{name: "archive", pinger: blobs})
		a.logger.Info("using GCS archive", zap.String("bucket", a.cfg.Archive.GCSBucket))
		return blobs, nil
	case config.BackendLocal:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Archive.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.checks = append(a.checks, check{name: "archive", pinger: blobs})
		a.logger.Info("using local archive", zap.String("path", a.cfg.Archive.LocalDir))
		return blobs, nil
	case config.BackendMemory:
		a.logger.Info("using in-memory archive")
		return memorystorage.NewBlobStore(), nil
	default:
		a.logger.Info("archive disabled")
		return nil, nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (harvest.Publisher, error) {
	switch a.cfg.PubSub.Backend {
	case config.BackendPubSub:
		client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		a.pubsub, err = gcppublisher.New(client, a.cfg.PubSub.Topic)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		a.checks = append(a.checks, check{name: "pubsub", pinger: a.pubsub})
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.Topic),
		)
		return a.pubsub, nil
	case config.BackendMemory:
		a.logger.Info("using in-memory publisher")
		return memorypublisher.New(), nil
	default:
		a.logger.Info("notifications disabled")
		return nil, nil
	}
}

// Preflight pings every collaborator that supports it and reports all
// failures together.
func (a *App) Preflight(ctx context.Context) error {
	var errs []error
	for _, c := range a.checks {
		if err := c.pinger.Ping(ctx); err != nil {
			a.logger.Error("pre-flight check failed", zap.String("check", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		a.logger.Info("pre-flight check passed", zap.String("check", c.name))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPreflight, errors.Join(errs...))
	}
	return nil
}

// Pipeline exposes the pipeline for status and tests.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// Run starts the pipeline and HTTP server and blocks until SIGINT, SIGTERM
// or ctx cancellation, then drains the pipeline before stopping HTTP.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Server.Enabled {
		a.httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           a.api.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		srv := a.httpServer
		g.Go(func() error {
			a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer a.stopHTTP()
		if err := a.pipeline.Start(gctx); err != nil {
			return fmt.Errorf("start pipeline: %w", err)
		}
		<-gctx.Done()
		a.logger.Info("shutdown signal received")
		if err := a.pipeline.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutdown pipeline: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.logger.Info("application stopped", zap.String("state", a.pipeline.State().String()))
	return err
}

// RunOnce runs a single cycle, drains it and returns its stats. SIGINT,
// SIGTERM and ctx cancellation are logged but do not cut the drain short;
// only pipeline.shutdown_timeout bounds it.
func (a *App) RunOnce(ctx context.Context) (producer.CycleStats, error) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-sigCtx.Done():
			a.logger.Info("shutdown signal received, finishing single cycle drain",
				zap.String("state", a.pipeline.State().String()),
			)
		case <-finished:
		}
	}()

	stats, err := a.pipeline.RunOnce(context.WithoutCancel(ctx))
	if err != nil {
		return stats, fmt.Errorf("run once: %w", err)
	}
	return stats, nil
}

// Reindex rebuilds the search index from the record store.
func (a *App) Reindex(ctx context.Context) (int, error) {
	if a.index == nil {
		return 0, errors.New("search index is disabled")
	}
	n, err := storage.Reindex(ctx, a.scanner, a.index)
	if err != nil {
		return n, err
	}
	a.logger.Info("search index rebuilt", zap.Int("documents", n))
	return n, nil
}

func (a *App) stopHTTP() {
	if a.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", zap.Error(err))
	}
}

// Close releases clients and stores. It is safe to call on a partially
// built App.
func (a *App) Close() error {
	var errs []error
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pubsub close: %w", err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gcs client close: %w", err))
		}
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("search index close: %w", err))
		}
	}
	if a.newsStore != nil {
		a.newsStore.Close()
	}
	return errors.Join(errs...)
}
