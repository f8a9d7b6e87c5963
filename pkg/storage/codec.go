package storage

import (
	"encoding/json"
	"fmt"

	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// sectionColumns are the per-category columns of the SQL backends, in column order
var sectionColumns = []string{"best", "top", "recommended", "exact", "popular", "related"}

func sectionPointers(r *models.SearchTagResult) []*[]models.TagRecord {
	return []*[]models.TagRecord{&r.Best, &r.Top, &r.Recommended, &r.Exact, &r.Popular, &r.Related}
}

// encodeSections marshals the six categories as JSON arrays, in sectionColumns order
func encodeSections(r *models.SearchTagResult) ([]string, error) {
	r.Normalize()
	out := make([]string, 0, len(sectionColumns))
	for i, p := range sectionPointers(r) {
		data, err := json.Marshal(*p)
		if err != nil {
			return nil, fmt.Errorf("%w: JSON encoding %s: %w", utils.ErrParsing, sectionColumns[i], err)
		}
		out = append(out, string(data))
	}
	return out, nil
}

// decodeSections fills r from six JSON arrays in sectionColumns order
func decodeSections(r *models.SearchTagResult, raw [][]byte) error {
	for i, p := range sectionPointers(r) {
		var records []models.TagRecord
		if len(raw[i]) > 0 {
			if err := json.Unmarshal(raw[i], &records); err != nil {
				return fmt.Errorf("%w: JSON decoding %s: %w", utils.ErrParsing, sectionColumns[i], err)
			}
		}
		*p = records
	}
	r.Normalize()
	return nil
}
