package models

// Category names a result set exposed by the service
type Category string

const (
	CategoryUnset       Category = ""            // Zero value = unset/unknown
	CategoryNew         Category = "new"         // Bulk new-tags listing
	CategoryBestBulk    Category = "best-bulk"   // Bulk best-tags listing
	CategoryBest        Category = "best"        // Search: free-text best block
	CategoryTop         Category = "top"         // Search: progress-bar ranking
	CategoryRecommended Category = "recommended" // Search: recommended list
	CategoryExact       Category = "exact"       // Search: exact-match table
	CategoryPopular     Category = "popular"     // Search: popular table
	CategoryRelated     Category = "related"     // Search: related table
)

// SearchCategories lists the per-term categories in response order
var SearchCategories = []Category{
	CategoryBest, CategoryTop, CategoryRecommended, CategoryExact, CategoryPopular, CategoryRelated,
}

// String implements fmt.Stringer for logging
func (c Category) String() string {
	if c == "" {
		return "unset"
	}
	return string(c)
}

// IsValid returns true if the category is a known value
func (c Category) IsValid() bool {
	switch c {
	case CategoryNew, CategoryBestBulk,
		CategoryBest, CategoryTop, CategoryRecommended, CategoryExact, CategoryPopular, CategoryRelated:
		return true
	}
	return false
}

// IsBulk reports whether the category is served from the bulk cache
func (c Category) IsBulk() bool {
	return c == CategoryNew || c == CategoryBestBulk
}
