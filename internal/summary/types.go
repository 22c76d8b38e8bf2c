package summary

import (
	"strconv"
	"time"
)

// CategorySummary aggregates the stored commands of one category
type CategorySummary struct {
	Category     string
	CommandCount int
	UsageCount   int64
	Favorites    int
	FirstTime    int64 // Unix timestamp
	LastTime     int64 // Unix timestamp
}

// Duration returns the time between the oldest and newest last use in seconds
func (c *CategorySummary) Duration() int64 {
	return c.LastTime - c.FirstTime
}

// FormatDuration returns a human-readable duration string
// Examples: "3d 4h", "8h 12m", "45m", "30s", "0s"
func (c *CategorySummary) FormatDuration() string {
	return FormatDuration(c.Duration())
}

// FormatDuration renders seconds using the two largest non-zero units
func FormatDuration(duration int64) string {
	if duration <= 0 {
		return "0s"
	}

	days := duration / 86400
	hours := (duration % 86400) / 3600
	minutes := (duration % 3600) / 60
	seconds := duration % 60

	switch {
	case days > 0:
		if hours > 0 {
			return formatWithSuffix(days, "d") + " " + formatWithSuffix(hours, "h")
		}
		return formatWithSuffix(days, "d")
	case hours > 0:
		if minutes > 0 {
			return formatWithSuffix(hours, "h") + " " + formatWithSuffix(minutes, "m")
		}
		return formatWithSuffix(hours, "h")
	case minutes > 0:
		return formatWithSuffix(minutes, "m")
	default:
		return formatWithSuffix(seconds, "s")
	}
}

func formatWithSuffix(value int64, suffix string) string {
	return strconv.FormatInt(value, 10) + suffix
}

// FormatTimeSpan returns the date range as "YYYY-MM-DD - YYYY-MM-DD", or a
// single date when both ends fall on the same day
func (c *CategorySummary) FormatTimeSpan() string {
	first := time.Unix(c.FirstTime, 0).Format(time.DateOnly)
	last := time.Unix(c.LastTime, 0).Format(time.DateOnly)
	if first == last {
		return first
	}
	return first + " - " + last
}
