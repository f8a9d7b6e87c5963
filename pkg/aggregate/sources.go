package aggregate

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Sriram-PR/hashtag-scraper/pkg/config"
	"github.com/Sriram-PR/hashtag-scraper/pkg/fetch"
)

// PageFetcher retrieves one upstream page. *fetch.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Observer receives aggregation outcomes; implementations must be safe for concurrent use
type Observer interface {
	ObserveSearch(outcome string)
	ObserveRefresh(outcome string, duration time.Duration)
}

// Search and refresh outcomes reported to an Observer
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeUpstream = "upstream_error"
	OutcomeStore    = "store_error"
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeFresh    = "fresh"
)

// Sources builds the upstream URLs
type Sources struct {
	cfg config.UpstreamConfig
}

// NewSources wraps a validated upstream config
func NewSources(cfg config.UpstreamConfig) Sources {
	return Sources{cfg: cfg}
}

// NewTagsPages returns how many listing pages a refresh fetches
func (s Sources) NewTagsPages() int { return s.cfg.NewTagsPages }

// NewTagsURL returns the listing page URL for a zero-based page index
func (s Sources) NewTagsURL(page int) string {
	return s.cfg.BaseURL + fmt.Sprintf(s.cfg.NewTagsPath, page)
}

// BestTagsURL returns the best-tags page URL
func (s Sources) BestTagsURL() string {
	return s.cfg.BaseURL + s.cfg.BestTagsPath
}

// SearchURL returns the per-term page URL. The term is path-escaped and otherwise untouched.
func (s Sources) SearchURL(term string) string {
	return s.cfg.BaseURL + fmt.Sprintf(s.cfg.SearchPath, url.PathEscape(term))
}
