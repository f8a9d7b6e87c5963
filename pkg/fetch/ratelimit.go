package fetch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter paces outbound requests to the upstream. A nil *RateLimiter never waits.
type RateLimiter struct {
	limiter *rate.Limiter
	log     *logrus.Entry
}

// NewRateLimiter returns a limiter allowing rps requests per second with the given burst,
// or nil when rps <= 0
func NewRateLimiter(rps float64, burst int, log *logrus.Entry) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}
}

// Wait blocks until the next request may be sent or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	start := time.Now()
	if err := rl.limiter.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 10*time.Millisecond {
		rl.log.WithField("waited", waited).Debug("Rate limit applied delay")
	}
	return nil
}
