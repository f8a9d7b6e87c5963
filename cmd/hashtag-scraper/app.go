package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/aggregate"
	"github.com/Sriram-PR/hashtag-scraper/pkg/cache"
	"github.com/Sriram-PR/hashtag-scraper/pkg/config"
	"github.com/Sriram-PR/hashtag-scraper/pkg/fetch"
	"github.com/Sriram-PR/hashtag-scraper/pkg/metrics"
	"github.com/Sriram-PR/hashtag-scraper/pkg/parse"
	"github.com/Sriram-PR/hashtag-scraper/pkg/server"
	"github.com/Sriram-PR/hashtag-scraper/pkg/storage"
	"github.com/Sriram-PR/hashtag-scraper/pkg/watch"
)

// app holds the wired components shared by every subcommand
type app struct {
	cfg     *config.AppConfig
	log     *logrus.Logger
	limiter *fetch.ConcurrencyLimiter
	store   storage.Store
	search  *aggregate.SearchAggregator
	bulk    *aggregate.BulkService
	metrics *metrics.Metrics

	cancelGC context.CancelFunc
}

// newApp wires the fetcher, term store, aggregators and bulk cache from a validated config
func newApp(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger) (*app, error) {
	m := metrics.New()

	limiter := fetch.NewConcurrencyLimiter(cfg.MaxConcurrentRequests, cfg.SemaphoreAcquireTimeout)
	fetchLog := log.WithField("component", "fetch")
	opts := fetch.OptionsFromConfig(cfg, limiter, fetchLog)
	opts.Observer = m
	fetcher := fetch.NewFetcher(fetch.NewClient(cfg.HTTPClientSettings, fetchLog), opts, fetchLog)

	// GC runs for the life of the app, not of the setup context
	gcCtx, cancelGC := context.WithCancel(context.WithoutCancel(ctx))
	store, err := storage.Open(gcCtx, cfg.Store, log.WithField("component", "store"))
	if err != nil {
		cancelGC()
		return nil, fmt.Errorf("open term store: %w", err)
	}

	sources := aggregate.NewSources(cfg.Upstream)
	locators := parse.LocatorsFromConfig(cfg.Selectors)

	search := aggregate.NewSearchAggregator(fetcher, store, sources, aggregate.SearchOptions{
		Locators: locators,
		Strict:   cfg.IsStrict(),
		Coalesce: config.GetEffectiveCoalesceSearches(*cfg),
		Observer: m,
	}, log.WithField("component", "search"))

	refresher := aggregate.NewBulkAggregator(fetcher, sources, aggregate.BulkOptions{
		Locators: locators,
		Strict:   cfg.IsStrict(),
	}, log.WithField("component", "bulk"))
	fc := cache.NewFileCache(cfg.Cache.Path, cfg.Cache.TTL, log.WithField("component", "cache"))
	bulk := aggregate.NewBulkService(refresher, fc, m, log.WithField("component", "bulk"))

	m.WatchLimiter(limiter)
	m.WatchStore(store, log.WithField("component", "metrics"))

	return &app{
		cfg:      cfg,
		log:      log,
		limiter:  limiter,
		store:    store,
		search:   search,
		bulk:     bulk,
		metrics:  m,
		cancelGC: cancelGC,
	}, nil
}

// server builds the HTTP server over the app's services
func (a *app) server() *server.Server {
	return server.New(a.cfg, server.Deps{
		Search:  a.search,
		Bulk:    a.bulk,
		Store:   a.store,
		Limiter: a.limiter,
		Metrics: a.metrics,
		Version: version,
	}, a.log.WithField("component", "server"))
}

// scheduler builds the cache warm-up scheduler, or returns nil when no schedule is configured
func (a *app) scheduler() (*watch.Scheduler, error) {
	if a.cfg.Cache.RefreshSchedule == "" {
		return nil, nil
	}
	statePath := filepath.Join(filepath.Dir(a.cfg.Cache.Path), watch.StateFileName)
	return watch.NewScheduler(a.cfg.Cache.RefreshSchedule, a.bulk, watch.NewStateManager(statePath),
		a.log.WithField("component", "watch"))
}

// close stops background work and closes the term store
func (a *app) close() {
	a.cancelGC()
	if err := a.store.Close(); err != nil {
		a.log.Errorf("Error closing term store: %v", err)
	}
}

// logAppConfig logs the effective configuration
func logAppConfig(cfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: Addr:%s, MaxConcurrent:%d, RequestTimeout:%v, AcquireTimeout:%v, Policy:%s",
		cfg.ServerAddr, cfg.MaxConcurrentRequests, cfg.RequestTimeout, cfg.SemaphoreAcquireTimeout, cfg.FailurePolicy)
	log.Infof("Config Upstream: Base:%s, NewTagsPages:%d, RPS:%.2f, Robots:%t",
		cfg.Upstream.BaseURL, cfg.Upstream.NewTagsPages, cfg.RequestsPerSecond, cfg.RespectRobotsTxt)
	log.Infof("Config Cache: Path:%s, TTL:%v, Schedule:%q", cfg.Cache.Path, cfg.Cache.TTL, cfg.Cache.RefreshSchedule)
	log.Infof("Config Store: Backend:%s", cfg.Store.Backend)
}
