package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/config"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// maxBodyBytes caps how much of a response body is read
const maxBodyBytes = 50 * 1024 * 1024

// ErrorKind classifies why a fetch failed
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"   // Per-request timeout elapsed
	KindTransport ErrorKind = "transport" // DNS, TCP, TLS or cancellation
	KindStatus    ErrorKind = "status"    // Non-2xx response
	KindLimiter   ErrorKind = "limiter"   // No concurrency slot or pacing token
	KindRobots    ErrorKind = "robots"    // Disallowed by robots.txt
	KindRead      ErrorKind = "read"      // Body could not be read
	KindRequest   ErrorKind = "request"   // Request could not be built
)

// FetchError describes a failed upstream fetch
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int // Set for KindStatus
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Page is a successfully fetched upstream document
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
}

// Observer receives one event per completed fetch; outcome is "ok" or an ErrorKind
type Observer interface {
	ObserveFetch(outcome string, duration time.Duration)
}

// Options configures a Fetcher
type Options struct {
	Timeout     time.Duration       // Per-request timeout
	UserAgent   string
	Limiter     *ConcurrencyLimiter // Required; shared by every caller
	RateLimiter *RateLimiter        // Optional pacing
	Robots      bool                // Check robots.txt before fetching
	Observer    Observer            // Optional
}

// OptionsFromConfig derives fetcher options from the app config around a shared limiter
func OptionsFromConfig(cfg *config.AppConfig, limiter *ConcurrencyLimiter, log *logrus.Entry) Options {
	return Options{
		Timeout:     cfg.RequestTimeout,
		UserAgent:   cfg.UserAgent,
		Limiter:     limiter,
		RateLimiter: NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, log),
		Robots:      cfg.RespectRobotsTxt,
	}
}

// Fetcher performs single-attempt GET requests under the shared concurrency ceiling
type Fetcher struct {
	client    *http.Client
	limiter   *ConcurrencyLimiter
	pacer     *RateLimiter
	robots    *RobotsGate
	observer  Observer
	timeout   time.Duration
	userAgent string
	log       *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, opts Options, log *logrus.Entry) *Fetcher {
	if opts.Limiter == nil {
		opts.Limiter = NewConcurrencyLimiter(config.DefaultMaxConcurrentRequests, 0)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultRequestTimeout
	}
	f := &Fetcher{
		client:    client,
		limiter:   opts.Limiter,
		pacer:     opts.RateLimiter,
		observer:  opts.Observer,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		log:       log,
	}
	if opts.Robots {
		f.robots = NewRobotsGate(f.fetch, opts.UserAgent, log)
	}
	return f
}

// Limiter returns the shared concurrency limiter
func (f *Fetcher) Limiter() *ConcurrencyLimiter { return f.limiter }

// Fetch retrieves rawURL. Errors are always *FetchError. No retries are attempted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if f.robots != nil && !f.robots.Allowed(ctx, rawURL) {
		fe := &FetchError{URL: rawURL, Kind: KindRobots, Err: utils.ErrRobotsDisallowed}
		f.observe(string(KindRobots), 0)
		return nil, fe
	}
	return f.fetch(ctx, rawURL)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*Page, error) {
	reqLog := f.log.WithField("url", rawURL)
	start := time.Now()

	var page *Page
	err := f.limiter.Do(ctx, func() error {
		if err := f.pacer.Wait(ctx); err != nil {
			return &FetchError{URL: rawURL, Kind: KindLimiter, Err: err}
		}

		reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			return &FetchError{URL: rawURL, Kind: KindRequest, Err: fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)}
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return &FetchError{URL: rawURL, Kind: classifyTransport(ctx, reqCtx), Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
			return &FetchError{
				URL:        rawURL,
				Kind:       KindStatus,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("%w: status %d %s", statusSentinel(resp.StatusCode), resp.StatusCode, resp.Status),
			}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			kind := KindRead
			if reqCtx.Err() != nil && ctx.Err() == nil {
				kind = KindTimeout
			}
			return &FetchError{URL: rawURL, Kind: kind, Err: fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)}
		}

		page = &Page{URL: rawURL, StatusCode: resp.StatusCode, Body: body, FetchedAt: time.Now()}
		return nil
	})
	elapsed := time.Since(start)

	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = &FetchError{URL: rawURL, Kind: KindLimiter, Err: err}
		}
		reqLog.WithFields(logrus.Fields{
			"kind":     fe.Kind,
			"category": utils.CategorizeError(fe),
			"elapsed":  elapsed,
		}).Warnf("Fetch failed: %v", fe.Err)
		f.observe(string(fe.Kind), elapsed)
		return nil, fe
	}

	reqLog.WithFields(logrus.Fields{"bytes": len(page.Body), "elapsed": elapsed}).Debug("Fetched")
	f.observe("ok", elapsed)
	return page, nil
}

func (f *Fetcher) observe(outcome string, d time.Duration) {
	if f.observer != nil {
		f.observer.ObserveFetch(outcome, d)
	}
}

// classifyTransport separates our own timeout from caller cancellation and network errors
func classifyTransport(parent, reqCtx context.Context) ErrorKind {
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return KindTimeout
	}
	return KindTransport
}

func statusSentinel(code int) error {
	switch {
	case code >= 400 && code < 500:
		return utils.ErrClientHTTPError
	case code >= 500:
		return utils.ErrServerHTTPError
	default:
		return utils.ErrOtherHTTPError
	}
}
