package aggregate

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/parse"
	"github.com/Sriram-PR/hashtag-scraper/pkg/storage"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// SearchOptions configures a SearchAggregator
type SearchOptions struct {
	Locators parse.SectionLocators
	Strict   bool // Surface upstream failures instead of storing an empty result
	Coalesce bool // Share one lookup-fetch-insert among concurrent callers for the same term
	Observer Observer
}

// SearchAggregator answers per-term searches from the term store, scraping on a miss
type SearchAggregator struct {
	fetcher PageFetcher
	store   storage.TermStore
	sources Sources
	opts    SearchOptions
	group   singleflight.Group
	log     *logrus.Entry
}

// NewSearchAggregator creates a new SearchAggregator
func NewSearchAggregator(fetcher PageFetcher, store storage.TermStore, sources Sources, opts SearchOptions, log *logrus.Entry) *SearchAggregator {
	return &SearchAggregator{
		fetcher: fetcher,
		store:   store,
		sources: sources,
		opts:    opts,
		log:     log,
	}
}

// Search returns the six categories for term, exactly as given.
// A stored record is returned without network activity. On a miss the term page is
// scraped and the result inserted, empty or not. Store errors wrap utils.ErrDatabase;
// under the strict policy upstream errors wrap utils.ErrUpstream and nothing is stored.
//
// The lookup-fetch-insert sequence does not observe ctx cancellation.
func (a *SearchAggregator) Search(ctx context.Context, term string) (*models.SearchTagResult, error) {
	ctx = context.WithoutCancel(ctx)
	if !a.opts.Coalesce {
		return a.lookupOrScrape(ctx, term)
	}

	v, err, shared := a.group.Do(term, func() (any, error) {
		return a.lookupOrScrape(ctx, term)
	})
	if shared {
		a.log.WithField("term", term).Debug("Joined in-flight search")
	}
	if err != nil {
		return nil, err
	}
	return v.(*models.SearchTagResult), nil
}

func (a *SearchAggregator) lookupOrScrape(ctx context.Context, term string) (*models.SearchTagResult, error) {
	termLog := a.log.WithField("term", term)

	rec, found, err := a.store.Lookup(ctx, term)
	if err != nil {
		a.observe(OutcomeStore)
		return nil, err
	}
	if found {
		a.observe(OutcomeHit)
		termLog.Debugf("Store hit (record %d)", rec.ID)
		return &rec.SearchTagResult, nil
	}

	doc, err := a.scrape(ctx, term, termLog)
	if err != nil {
		a.observe(OutcomeUpstream)
		return nil, err
	}

	rec = models.NewSearchTagRecord(term, parse.SearchPage(doc, a.opts.Locators))
	if err := a.store.Insert(ctx, rec); err != nil {
		a.observe(OutcomeStore)
		return nil, err
	}
	a.observe(OutcomeMiss)
	termLog.Infof("Stored search record %d (empty=%t)", rec.ID, rec.IsEmpty())
	return &rec.SearchTagResult, nil
}

// scrape fetches and parses the term page. Under the lenient policy failures
// are logged and yield a nil document, which parses as six empty sections.
func (a *SearchAggregator) scrape(ctx context.Context, term string, termLog *logrus.Entry) (*goquery.Document, error) {
	target := a.sources.SearchURL(term)
	page, err := a.fetcher.Fetch(ctx, target)
	if err == nil {
		var doc *goquery.Document
		doc, err = parse.NewDocument(page.Body)
		if err == nil {
			return doc, nil
		}
	}

	if a.opts.Strict {
		return nil, fmt.Errorf("%w: search %q: %w", utils.ErrUpstream, term, err)
	}
	termLog.WithField("error_type", utils.CategorizeError(err)).Warnf("Search page unavailable, storing empty result: %v", err)
	return nil, nil
}

func (a *SearchAggregator) observe(outcome string) {
	if a.opts.Observer != nil {
		a.opts.Observer.ObserveSearch(outcome)
	}
}
