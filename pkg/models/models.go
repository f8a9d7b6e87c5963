package models

import "time"

// TagRecord is one hashtag row as scraped from a listing or a search page
type TagRecord struct {
	ID    int    `json:"id"`    // Source id column, or 1-based position for synthesized sections
	Tag   string `json:"tag"`   // Hashtag text as shown upstream
	Usage Usage  `json:"usage"` // Integer count or float percentage
}

// SearchTagResult holds the six per-term categories in source order
type SearchTagResult struct {
	Best        []TagRecord `json:"best"`
	Top         []TagRecord `json:"top"`
	Recommended []TagRecord `json:"recommended"`
	Exact       []TagRecord `json:"exact"`
	Popular     []TagRecord `json:"popular"`
	Related     []TagRecord `json:"related"`
}

// IsEmpty reports whether every category is empty
func (r *SearchTagResult) IsEmpty() bool {
	if r == nil {
		return true
	}
	return len(r.Best) == 0 &&
		len(r.Top) == 0 &&
		len(r.Recommended) == 0 &&
		len(r.Exact) == 0 &&
		len(r.Popular) == 0 &&
		len(r.Related) == 0
}

// Normalize replaces nil categories with empty slices so they encode as []
func (r *SearchTagResult) Normalize() {
	for _, s := range []*[]TagRecord{&r.Best, &r.Top, &r.Recommended, &r.Exact, &r.Popular, &r.Related} {
		if *s == nil {
			*s = []TagRecord{}
		}
	}
}

// Category returns the named category, or nil for bulk or unknown categories
func (r *SearchTagResult) Category(c Category) []TagRecord {
	switch c {
	case CategoryBest:
		return r.Best
	case CategoryTop:
		return r.Top
	case CategoryRecommended:
		return r.Recommended
	case CategoryExact:
		return r.Exact
	case CategoryPopular:
		return r.Popular
	case CategoryRelated:
		return r.Related
	}
	return nil
}

// SearchTagRecord is a persisted search result keyed by the exact search word
type SearchTagRecord struct {
	ID         int64     `json:"id"`
	SearchWord string    `json:"search_word"`
	CreatedAt  time.Time `json:"created_at"`
	SearchTagResult
}

// NewSearchTagRecord wraps a result for insertion
func NewSearchTagRecord(searchWord string, result SearchTagResult) *SearchTagRecord {
	result.Normalize()
	return &SearchTagRecord{
		SearchWord:      searchWord,
		CreatedAt:       time.Now().UTC(),
		SearchTagResult: result,
	}
}

// BulkCacheEntry is the in-memory form of the bulk listings cache document
type BulkCacheEntry struct {
	NewTags    []TagRecord
	BestTags   []TagRecord
	LastUpdate time.Time // Zero means the cache has never been refreshed
}

// NewBulkCacheEntry returns the default entry used when no cache exists
func NewBulkCacheEntry() *BulkCacheEntry {
	return &BulkCacheEntry{NewTags: []TagRecord{}, BestTags: []TagRecord{}}
}

// Envelope is the response shape of every HTTP endpoint
type Envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}
