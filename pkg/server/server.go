package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/config"
	"github.com/Sriram-PR/hashtag-scraper/pkg/metrics"
	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
)

// Searcher answers per-term searches
type Searcher interface {
	Search(ctx context.Context, term string) (*models.SearchTagResult, error)
}

// BulkLister serves the cached bulk listings
type BulkLister interface {
	NewTags(ctx context.Context) ([]models.TagRecord, error)
	BestTags(ctx context.Context) ([]models.TagRecord, error)
}

// Deps are the services behind the HTTP surface
type Deps struct {
	Search  Searcher
	Bulk    BulkLister
	Store   metrics.Counter  // Optional, reported by /healthz
	Limiter metrics.Gauge    // Optional, reported by /healthz
	Metrics *metrics.Metrics // Optional, served on /metrics
	Version string
}

// Server wraps the Fiber app and configuration.
type Server struct {
	App  *fiber.App
	addr string
	log  *logrus.Entry
}

// New creates a new server with middleware and routes configured.
func New(cfg *config.AppConfig, deps Deps, log *logrus.Entry) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "hashtag-scraper",
		UnescapePath: true,
		Immutable:    true, // searchers keep the term past the request
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(models.Envelope{Status: false, Message: message})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(accessLog(log, deps.Metrics))
	app.Use(cors.New())

	h := &handlers{
		search:       deps.Search,
		bulk:         deps.Bulk,
		store:        deps.Store,
		limiter:      deps.Limiter,
		clientConfig: config.GetEffectiveClientConfig(*cfg),
		version:      deps.Version,
		log:          log,
	}

	app.Get("/", h.root)
	app.Get("/getNewTags", h.newTags)
	app.Get("/getBestTags", h.bestTags)
	app.Get("/getSearchTags/:term", h.searchTags)
	app.Get("/configs", h.configs)
	app.Get("/healthz", h.health)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	return &Server{App: app, addr: cfg.ServerAddr, log: log}
}

// Start listens on the configured address and blocks until shutdown.
func (s *Server) Start() error {
	s.log.Infof("Listening on %s", s.addr)
	return s.App.Listen(s.addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.App.ShutdownWithContext(ctx)
}
