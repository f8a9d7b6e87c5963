package watch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseSchedule turns a refresh_schedule value into a cron spec.
// Plain intervals ("30m", "6h", "1d12h") become "@every"; anything else must be a
// standard cron expression or descriptor ("0 */6 * * *", "@daily").
func ParseSchedule(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty schedule")
	}
	if d, err := ParseInterval(s); err == nil {
		if d < time.Minute {
			return "", fmt.Errorf("schedule interval %v is shorter than one minute", d)
		}
		return "@every " + d.String(), nil
	}
	if _, err := cron.ParseStandard(s); err != nil {
		return "", fmt.Errorf("invalid schedule %q (examples: 6h, 1d, @daily, 0 */6 * * *): %w", s, err)
	}
	return s, nil
}

// FormatInterval formats a duration for display
func FormatInterval(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a positive duration string with support for a leading day count
func ParseInterval(s string) (time.Duration, error) {
	// Try standard parsing first
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("interval must be positive: %s", s)
		}
		return d, nil
	}

	// Check for day suffix
	idx := strings.IndexByte(s, 'd')
	if idx <= 0 {
		return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
	}
	days, err := strconv.Atoi(s[:idx])
	if err != nil || days <= 0 {
		return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
	}
	d := time.Duration(days) * 24 * time.Hour
	if remaining := s[idx+1:]; remaining != "" {
		extra, err := time.ParseDuration(remaining)
		if err != nil || extra < 0 {
			return 0, fmt.Errorf("invalid interval format: %s", s)
		}
		d += extra
	}
	return d, nil
}
