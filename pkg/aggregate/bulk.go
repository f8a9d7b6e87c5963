package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/parse"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// BulkOptions configures a BulkAggregator
type BulkOptions struct {
	Locators parse.SectionLocators
	Strict   bool             // Fail the refresh on any page failure
	Clock    func() time.Time // Stamps refreshed entries; defaults to time.Now
}

// BulkAggregator scrapes the new-tags listing and the best-tags page
type BulkAggregator struct {
	fetcher PageFetcher
	sources Sources
	opts    BulkOptions
	log     *logrus.Entry
}

// NewBulkAggregator creates a new BulkAggregator
func NewBulkAggregator(fetcher PageFetcher, sources Sources, opts BulkOptions, log *logrus.Entry) *BulkAggregator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &BulkAggregator{fetcher: fetcher, sources: sources, opts: opts, log: log}
}

// NewTags fetches every listing page concurrently and concatenates the rows by page index,
// whatever order the pages complete in
func (b *BulkAggregator) NewTags(ctx context.Context) ([]models.TagRecord, error) {
	pages := make([][]models.TagRecord, b.sources.NewTagsPages())

	g, gctx := errgroup.WithContext(ctx)
	for i := range pages {
		g.Go(func() error {
			records, err := b.listing(gctx, b.sources.NewTagsURL(i))
			if err != nil {
				return err
			}
			pages[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range pages {
		total += len(p)
	}
	out := make([]models.TagRecord, 0, total)
	for _, p := range pages {
		out = append(out, p...)
	}
	return out, nil
}

// BestTags fetches the single best-tags page
func (b *BulkAggregator) BestTags(ctx context.Context) ([]models.TagRecord, error) {
	return b.listing(ctx, b.sources.BestTagsURL())
}

// Refresh runs both flows and returns an entry stamped with the current time
func (b *BulkAggregator) Refresh(ctx context.Context) (*models.BulkCacheEntry, error) {
	entry := models.NewBulkCacheEntry()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := b.NewTags(gctx)
		if err != nil {
			return err
		}
		entry.NewTags = records
		return nil
	})
	g.Go(func() error {
		records, err := b.BestTags(gctx)
		if err != nil {
			return err
		}
		entry.BestTags = records
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entry.LastUpdate = b.opts.Clock().UTC()
	b.log.Infof("Bulk refresh complete: %d new tags, %d best tags", len(entry.NewTags), len(entry.BestTags))
	return entry, nil
}

// listing fetches one listing page. Under the lenient policy a failed page contributes no rows.
func (b *BulkAggregator) listing(ctx context.Context, target string) ([]models.TagRecord, error) {
	page, err := b.fetcher.Fetch(ctx, target)
	if err == nil {
		doc, perr := parse.NewDocument(page.Body)
		if perr == nil {
			return parse.Listing(doc, b.opts.Locators), nil
		}
		err = perr
	}

	if b.opts.Strict {
		return nil, fmt.Errorf("%w: listing %s: %w", utils.ErrUpstream, target, err)
	}
	b.log.WithFields(logrus.Fields{
		"url":        target,
		"error_type": utils.CategorizeError(err),
	}).Warnf("Listing page unavailable, contributing no rows: %v", err)
	return []models.TagRecord{}, nil
}
