package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/config"
	"github.com/Sriram-PR/hashtag-scraper/pkg/metrics"
	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

const (
	msgFetched     = "Data fetched successfully"
	msgNotFound    = "Data Not found"
	msgConfig      = "App config fetched success"
	msgUpstream    = "Upstream unavailable"
	msgInternal    = "Internal server error"
	msgWelcome     = "Welcome to the Hashtag Generator API!"
	msgHealthy     = "ok"
	msgUnhealthy   = "Term store unavailable"
	healthzTimeout = 5 * time.Second
)

type handlers struct {
	search       Searcher
	bulk         BulkLister
	store        metrics.Counter
	limiter      metrics.Gauge
	clientConfig *config.ClientConfig
	version      string
	log          *logrus.Entry
}

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, message string, data any) error {
	return c.JSON(models.Envelope{Status: true, Message: message, Data: data})
}

// jsonError returns an envelope with status=false and the given HTTP status code.
func jsonError(c fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(models.Envelope{Status: false, Message: message})
}

// fail maps a service error to an envelope without leaking its text
func (h *handlers) fail(c fiber.Ctx, err error) error {
	h.log.WithFields(logrus.Fields{
		"path":       c.Path(),
		"error_type": utils.CategorizeError(err),
	}).Errorf("Request failed: %v", err)

	if errors.Is(err, utils.ErrUpstream) {
		return jsonError(c, fiber.StatusBadGateway, msgUpstream)
	}
	return jsonError(c, fiber.StatusInternalServerError, msgInternal)
}

func (h *handlers) root(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": msgWelcome})
}

func (h *handlers) newTags(c fiber.Ctx) error {
	records, err := h.bulk.NewTags(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return jsonSuccess(c, msgFetched, records)
}

func (h *handlers) bestTags(c fiber.Ctx) error {
	records, err := h.bulk.BestTags(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return jsonSuccess(c, msgFetched, records)
}

func (h *handlers) searchTags(c fiber.Ctx) error {
	result, err := h.search.Search(c.Context(), c.Params("term"))
	if err != nil {
		return h.fail(c, err)
	}
	if result.IsEmpty() {
		return c.JSON(models.Envelope{Status: false, Message: msgNotFound, Data: nil})
	}
	return jsonSuccess(c, msgFetched, result)
}

func (h *handlers) configs(c fiber.Ctx) error {
	return jsonSuccess(c, msgConfig, h.clientConfig)
}

type healthData struct {
	Version       string `json:"version,omitempty"`
	StoredRecords *int   `json:"stored_records,omitempty"`
	FetchSlots    *slots `json:"fetch_slots,omitempty"`
}

type slots struct {
	Capacity int `json:"capacity"`
	InUse    int `json:"in_use"`
	Peak     int `json:"peak"`
}

func (h *handlers) health(c fiber.Ctx) error {
	data := healthData{Version: h.version}
	if h.limiter != nil {
		data.FetchSlots = &slots{Capacity: h.limiter.Capacity(), InUse: h.limiter.InFlight(), Peak: h.limiter.Peak()}
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Context(), healthzTimeout)
		defer cancel()
		n, err := h.store.Count(ctx)
		if err != nil {
			h.log.Warnf("Health check: term store count failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.Envelope{Status: false, Message: msgUnhealthy, Data: data})
		}
		data.StoredRecords = &n
	}
	return jsonSuccess(c, msgHealthy, data)
}
