package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// ParseGroupedInt decodes an integer written with thousands separators, e.g. "12,345"
func ParseGroupedInt(s string) (int64, error) {
	cleaned := strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: grouped integer %q: %w", utils.ErrParsing, s, err)
	}
	return n, nil
}

// ParseFraction decodes a decimal such as "67.5" without rounding
func ParseFraction(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: fraction %q: %w", utils.ErrParsing, s, err)
	}
	return f, nil
}
