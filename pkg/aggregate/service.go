package aggregate

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Sriram-PR/hashtag-scraper/pkg/cache"
	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
)

// Refresher produces a complete, freshly stamped bulk entry. *BulkAggregator satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (*models.BulkCacheEntry, error)
}

// BulkService serves the bulk listings from the file cache, refreshing it when stale.
// Both listings share one freshness check and one refresh.
type BulkService struct {
	refresher Refresher
	cache     *cache.FileCache
	observer  Observer
	group     singleflight.Group
	log       *logrus.Entry
}

// NewBulkService creates a new BulkService. observer may be nil.
func NewBulkService(refresher Refresher, fc *cache.FileCache, observer Observer, log *logrus.Entry) *BulkService {
	return &BulkService{refresher: refresher, cache: fc, observer: observer, log: log}
}

// Cache returns the underlying file cache
func (s *BulkService) Cache() *cache.FileCache { return s.cache }

// NewTags returns the new-tags listing, refreshing the cache first if it is stale
func (s *BulkService) NewTags(ctx context.Context) ([]models.TagRecord, error) {
	entry, err := s.Entry(ctx)
	if err != nil {
		return nil, err
	}
	return entry.NewTags, nil
}

// BestTags returns the best-tags listing, refreshing the cache first if it is stale
func (s *BulkService) BestTags(ctx context.Context) ([]models.TagRecord, error) {
	entry, err := s.Entry(ctx)
	if err != nil {
		return nil, err
	}
	return entry.BestTags, nil
}

// Entry reads the cache and refreshes it when stale, then returns the current entry
func (s *BulkService) Entry(ctx context.Context) (*models.BulkCacheEntry, error) {
	entry := s.read()
	if !s.cache.IsStale(entry) {
		return entry, nil
	}
	return s.refresh(ctx, false)
}

// RefreshIfStale refreshes only when the cached entry is stale and reports whether it did
func (s *BulkService) RefreshIfStale(ctx context.Context) (bool, error) {
	entry := s.read()
	if !s.cache.IsStale(entry) {
		s.observeRefresh(OutcomeFresh, 0)
		return false, nil
	}
	_, err := s.refresh(ctx, false)
	return err == nil, err
}

// ForceRefresh refreshes regardless of freshness
func (s *BulkService) ForceRefresh(ctx context.Context) (*models.BulkCacheEntry, error) {
	return s.refresh(ctx, true)
}

// read loads the cache, treating an unreadable file as absent
func (s *BulkService) read() *models.BulkCacheEntry {
	entry, err := s.cache.Read()
	if err != nil {
		s.log.Warnf("Bulk cache unusable, treating as absent: %v", err)
	}
	return entry
}

func (s *BulkService) refresh(ctx context.Context, force bool) (*models.BulkCacheEntry, error) {
	key := "stale"
	if force {
		key = "force"
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		// A refresh that finished while this caller waited makes the cache fresh again
		if !force {
			if entry := s.read(); !s.cache.IsStale(entry) {
				return entry, nil
			}
		}

		start := time.Now()
		fresh, err := s.refresher.Refresh(context.WithoutCancel(ctx))
		if err != nil {
			s.observeRefresh(OutcomeError, time.Since(start))
			s.log.Errorf("Bulk refresh failed, cache left unchanged: %v", err)
			return nil, err
		}
		s.observeRefresh(OutcomeOK, time.Since(start))

		if err := s.cache.Write(fresh); err != nil {
			s.log.Errorf("Failed to write bulk cache, serving fresh result from memory: %v", err)
			return fresh, nil
		}
		reread, err := s.cache.Read()
		if err != nil {
			s.log.Warnf("Failed to re-read bulk cache, serving fresh result from memory: %v", err)
			return fresh, nil
		}
		return reread, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.BulkCacheEntry), nil
}

func (s *BulkService) observeRefresh(outcome string, d time.Duration) {
	if s.observer != nil {
		s.observer.ObserveRefresh(outcome, d)
	}
}
