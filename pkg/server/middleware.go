package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/metrics"
)

// accessLog writes one logrus line per request and counts it by route pattern
func accessLog(log *logrus.Entry, m *metrics.Metrics) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
			}
		}

		route := c.Route().Path
		m.ObserveRequest(route, strconv.Itoa(status))

		entry := log.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    time.Since(start).Round(time.Microsecond),
			"request_id": requestid.FromContext(c),
		})
		switch {
		case status >= 500:
			entry.Warn("Request served with server error")
		case route == "/healthz" || route == "/metrics":
			entry.Debug("Request served")
		default:
			entry.Info("Request served")
		}
		return err
	}
}
