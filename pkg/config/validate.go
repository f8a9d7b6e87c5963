package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// Default upstream and runtime values
const (
	DefaultServerAddr            = ":8000"
	DefaultUserAgent             = "Mozilla/5.0 (compatible; hashtag-scraper/1.0)"
	DefaultMaxConcurrentRequests = 500
	DefaultRequestTimeout        = 180 * time.Second
	DefaultBaseURL               = "https://best-hashtags.com"
	DefaultNewTagsPath           = "/new-hashtags.php?pageNum_tag=%d&totalRows_tag=1000"
	DefaultNewTagsPages          = 10
	DefaultBestTagsPath          = "/best-hashtags.php"
	DefaultSearchPath            = "/hashtag/%s"
	DefaultCachePath             = "/tmp/hashtags_cache.json"
	DefaultCacheTTL              = 24 * time.Hour
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// MaxConcurrentRequests
	if c.MaxConcurrentRequests <= 0 {
		if c.MaxConcurrentRequests < 0 {
			warnings = append(warnings, fmt.Sprintf(
				"max_concurrent_requests should be > 0, defaulting to %d", DefaultMaxConcurrentRequests))
		}
		c.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}

	// RequestTimeout
	if c.RequestTimeout <= 0 {
		if c.RequestTimeout < 0 {
			warnings = append(warnings, fmt.Sprintf(
				"request_timeout cannot be negative, defaulting to %v", DefaultRequestTimeout))
		}
		c.RequestTimeout = DefaultRequestTimeout
	}

	// SemaphoreAcquireTimeout
	if c.SemaphoreAcquireTimeout < 0 {
		warnings = append(warnings, "semaphore_acquire_timeout cannot be negative, waiting indefinitely")
		c.SemaphoreAcquireTimeout = 0
	}

	// Outbound pacing
	if c.RequestsPerSecond < 0 {
		warnings = append(warnings, "requests_per_second cannot be negative, disabling pacing")
		c.RequestsPerSecond = 0
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		c.Burst = 1
	}

	// FailurePolicy
	switch c.FailurePolicy {
	case "":
		c.FailurePolicy = FailurePolicyLenient
	case FailurePolicyLenient, FailurePolicyStrict:
	default:
		return warnings, fmt.Errorf("%w: unknown failure_policy %q (want %q or %q)",
			utils.ErrConfigValidation, c.FailurePolicy, FailurePolicyLenient, FailurePolicyStrict)
	}

	upstreamWarnings, err := c.validateUpstream()
	warnings = append(warnings, upstreamWarnings...)
	if err != nil {
		return warnings, err
	}

	c.Selectors.applyDefaults()

	// Cache
	if c.Cache.Path == "" {
		c.Cache.Path = DefaultCachePath
	}
	if c.Cache.TTL <= 0 {
		if c.Cache.TTL < 0 {
			warnings = append(warnings, fmt.Sprintf("cache.ttl cannot be negative, defaulting to %v", DefaultCacheTTL))
		}
		c.Cache.TTL = DefaultCacheTTL
	}

	storeWarnings, err := c.validateStore()
	warnings = append(warnings, storeWarnings...)
	if err != nil {
		return warnings, err
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

func (c *AppConfig) validateUpstream() (warnings []string, err error) {
	u := &c.Upstream
	if u.BaseURL == "" {
		u.BaseURL = DefaultBaseURL
	}
	parsed, perr := url.Parse(u.BaseURL)
	if perr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: upstream.base_url %q is not an absolute URL", utils.ErrConfigValidation, u.BaseURL)
	}
	u.BaseURL = strings.TrimRight(u.BaseURL, "/")

	if u.NewTagsPath == "" {
		u.NewTagsPath = DefaultNewTagsPath
	}
	if strings.Count(u.NewTagsPath, "%d") != 1 {
		return nil, fmt.Errorf("%w: upstream.new_tags_path must contain exactly one %%d", utils.ErrConfigValidation)
	}
	if u.NewTagsPages <= 0 {
		if u.NewTagsPages < 0 {
			warnings = append(warnings, fmt.Sprintf(
				"upstream.new_tags_pages should be > 0, defaulting to %d", DefaultNewTagsPages))
		}
		u.NewTagsPages = DefaultNewTagsPages
	}
	if u.BestTagsPath == "" {
		u.BestTagsPath = DefaultBestTagsPath
	}
	if u.SearchPath == "" {
		u.SearchPath = DefaultSearchPath
	}
	if strings.Count(u.SearchPath, "%s") != 1 {
		return nil, fmt.Errorf("%w: upstream.search_path must contain exactly one %%s", utils.ErrConfigValidation)
	}
	return warnings, nil
}

func (c *AppConfig) validateStore() (warnings []string, err error) {
	s := &c.Store
	switch s.Backend {
	case "":
		s.Backend = StoreBackendBadger
	case StoreBackendBadger, StoreBackendPostgres, StoreBackendSQLite:
	default:
		return nil, fmt.Errorf("%w: unknown store.backend %q", utils.ErrConfigValidation, s.Backend)
	}

	switch s.Backend {
	case StoreBackendBadger:
		if s.StateDir == "" {
			warnings = append(warnings, "store.state_dir is empty, defaulting to './hashtag_state'")
			s.StateDir = "./hashtag_state"
		}
	case StoreBackendPostgres:
		if s.DatabaseURL == "" {
			return warnings, fmt.Errorf("%w: store.backend is postgres but database_url is empty", utils.ErrConfigValidation)
		}
	case StoreBackendSQLite:
		if s.SQLitePath == "" {
			warnings = append(warnings, "store.sqlite_path is empty, defaulting to './hashtags.db'")
			s.SQLitePath = "./hashtags.db"
		}
	}

	if s.GCInterval < 0 {
		warnings = append(warnings, "store.gc_interval cannot be negative, disabling GC")
		s.GCInterval = 0
	}
	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
// Idle pool sizes follow the fetch ceiling since every request goes to one host.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = c.MaxConcurrentRequests
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.MaxConcurrentRequests
	}
	if h.MaxConnsPerHost < 0 {
		h.MaxConnsPerHost = 0
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// DefaultSelectors returns the selectors matching the upstream's current markup
func DefaultSelectors() SelectorConfig {
	var s SelectorConfig
	s.applyDefaults()
	return s
}

// applyDefaults fills every empty selector with the upstream's current markup
func (s *SelectorConfig) applyDefaults() {
	setDefault := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	setDefault(&s.RecommendedHeadingTag, "h3")
	setDefault(&s.RecommendedLabel, "Recommended HashTags")
	setDefault(&s.TopContainer, "div.progression")
	setDefault(&s.TopHeading, "h3.heading-xs.list-unstyled.save-job")
	setDefault(&s.TopProgress, "div.progress")
	setDefault(&s.TopBar, "div.progress-bar")
	setDefault(&s.TopValueAttr, "aria-valuenow")
	setDefault(&s.BestContainer, "div.tag-box.tag-box-v3.margin-bottom-40")
	setDefault(&s.BestText, "p1")
	setDefault(&s.Exact, "div#exact")
	setDefault(&s.Popular, "div#popular")
	setDefault(&s.Related, "div#related")
	setDefault(&s.ListingTable, "table.table.table-striped")
}
