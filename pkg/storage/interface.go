package storage

import (
	"context"

	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
)

// TermStore persists per-term search results.
// Records are never updated or deleted; when duplicates exist, the earliest inserted wins.
type TermStore interface {
	// Lookup finds the first record whose search word equals searchWord exactly.
	// Returns found=false with a nil error when no record exists.
	Lookup(ctx context.Context, searchWord string) (rec *models.SearchTagRecord, found bool, err error)

	// Insert appends a record. ID is assigned by the store.
	Insert(ctx context.Context, rec *models.SearchTagRecord) error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)

	// Close cleanly closes the underlying database
	Close() error
}

// Store combines all store interfaces for components that need full access
type Store interface {
	TermStore
	StoreAdmin
}
