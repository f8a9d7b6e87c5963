package parse

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/hashtag-scraper/pkg/config"
	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// Synthesized sections have no usage column upstream
const syntheticUsage = 100

// SectionLocators holds the selectors for every section of a search page and the listing table
type SectionLocators struct {
	RecommendedHeadingTag string
	RecommendedLabel      string
	TopContainer          string
	TopHeading            string
	TopProgress           string
	TopBar                string
	TopValueAttr          string
	BestContainer         string
	BestText              string
	Exact                 string
	Popular               string
	Related               string
	ListingTable          string
}

// LocatorsFromConfig copies validated selector settings
func LocatorsFromConfig(s config.SelectorConfig) SectionLocators {
	return SectionLocators{
		RecommendedHeadingTag: s.RecommendedHeadingTag,
		RecommendedLabel:      s.RecommendedLabel,
		TopContainer:          s.TopContainer,
		TopHeading:            s.TopHeading,
		TopProgress:           s.TopProgress,
		TopBar:                s.TopBar,
		TopValueAttr:          s.TopValueAttr,
		BestContainer:         s.BestContainer,
		BestText:              s.BestText,
		Exact:                 s.Exact,
		Popular:               s.Popular,
		Related:               s.Related,
		ListingTable:          s.ListingTable,
	}
}

// DefaultLocators returns the selectors matching the upstream's current markup
func DefaultLocators() SectionLocators {
	return LocatorsFromConfig(config.DefaultSelectors())
}

// NewDocument parses an HTML body
func NewDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: HTML document: %w", utils.ErrParsing, err)
	}
	return doc, nil
}

// SearchPage runs all six section parsers. A nil doc yields six empty sections.
func SearchPage(doc *goquery.Document, loc SectionLocators) models.SearchTagResult {
	result := models.SearchTagResult{
		Best:        Best(doc, loc),
		Top:         Top(doc, loc),
		Recommended: Recommended(doc, loc),
		Exact:       Table(doc, loc.Exact),
		Popular:     Table(doc, loc.Popular),
		Related:     Table(doc, loc.Related),
	}
	result.Normalize()
	return result
}

// Recommended extracts the list following the heading whose text equals the label.
// Usage is a constant 100 and ids are 1-based positions.
func Recommended(doc *goquery.Document, loc SectionLocators) []models.TagRecord {
	records := []models.TagRecord{}
	if doc == nil {
		return records
	}

	// Headings and lists in document order; the first list after the matching heading wins
	var list *goquery.Selection
	seenHeading := false
	doc.Find(loc.RecommendedHeadingTag + ", ul").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !seenHeading {
			seenHeading = s.Is(loc.RecommendedHeadingTag) && strings.TrimSpace(s.Text()) == loc.RecommendedLabel
			return true
		}
		if goquery.NodeName(s) == "ul" {
			list = s
			return false
		}
		return true
	})
	if list == nil {
		return records
	}

	list.Find("li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a").First()
		if a.Length() == 0 {
			return
		}
		records = append(records, models.TagRecord{
			ID:    len(records) + 1,
			Tag:   strings.TrimSpace(a.Text()),
			Usage: models.IntUsage(syntheticUsage),
		})
	})
	return records
}

// Top extracts heading/progress-bar pairs. Each heading holding a link takes the value
// of the next progress indicator in document order. Headings without a usable bar are skipped.
func Top(doc *goquery.Document, loc SectionLocators) []models.TagRecord {
	records := []models.TagRecord{}
	if doc == nil || doc.Find(loc.TopContainer).Length() == 0 {
		return records
	}

	var pending []string
	doc.Find(loc.TopHeading + ", " + loc.TopProgress).Each(func(_ int, s *goquery.Selection) {
		if s.Is(loc.TopHeading) {
			if a := s.Find("a").First(); a.Length() > 0 {
				pending = append(pending, strings.TrimSpace(a.Text()))
			}
			return
		}
		if len(pending) == 0 {
			return
		}
		raw, ok := s.Find(loc.TopBar).First().Attr(loc.TopValueAttr)
		if !ok {
			pending = nil
			return
		}
		value, err := ParseFraction(raw)
		if err != nil {
			pending = nil
			return
		}
		for _, tag := range pending {
			records = append(records, models.TagRecord{
				ID:    len(records) + 1,
				Tag:   tag,
				Usage: models.FloatUsage(value),
			})
		}
		pending = nil
	})
	return records
}

// Best splits the free-text block on whitespace. Usage is a constant 100.
func Best(doc *goquery.Document, loc SectionLocators) []models.TagRecord {
	records := []models.TagRecord{}
	if doc == nil {
		return records
	}
	text := doc.Find(loc.BestContainer).First().Find(loc.BestText).First()
	if text.Length() == 0 {
		return records
	}
	for _, tag := range strings.Fields(text.Text()) {
		records = append(records, models.TagRecord{
			ID:    len(records) + 1,
			Tag:   tag,
			Usage: models.IntUsage(syntheticUsage),
		})
	}
	return records
}

// Table extracts id/tag/usage rows from the first container matching selector.
// Rows with fewer than three data cells, including th-only header rows, are skipped.
func Table(doc *goquery.Document, selector string) []models.TagRecord {
	records := []models.TagRecord{}
	if doc == nil {
		return records
	}
	doc.Find(selector).First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if rec, ok := rowRecord(tr); ok {
			records = append(records, rec)
		}
	})
	return records
}

// Listing extracts rows from a bulk listing table, skipping its first (header) row
func Listing(doc *goquery.Document, loc SectionLocators) []models.TagRecord {
	records := []models.TagRecord{}
	if doc == nil {
		return records
	}
	doc.Find(loc.ListingTable).First().Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		if rec, ok := rowRecord(tr); ok {
			records = append(records, rec)
		}
	})
	return records
}

func rowRecord(tr *goquery.Selection) (models.TagRecord, bool) {
	cells := tr.Find("td")
	if cells.Length() < 3 {
		return models.TagRecord{}, false
	}
	id, err := strconv.Atoi(strings.TrimSpace(cells.Eq(0).Text()))
	if err != nil {
		return models.TagRecord{}, false
	}
	usage, err := ParseGroupedInt(cells.Eq(2).Text())
	if err != nil {
		return models.TagRecord{}, false
	}
	return models.TagRecord{
		ID:    id,
		Tag:   strings.TrimSpace(cells.Eq(1).Text()),
		Usage: models.IntUsage(usage),
	}, true
}
