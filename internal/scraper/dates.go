package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var relAmount = regexp.MustCompile(`(\d+)`)

// parseRelativeDate converts listing-card phrasing ("Just posted",
// "3 days ago", "Posted 5 hours ago") into a timestamp. Anything it cannot
// interpret defaults to now rather than failing the candidate.
func parseRelativeDate(text string, now time.Time) time.Time {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "just posted"), strings.Contains(text, "today"):
		return now
	case strings.Contains(text, "day"):
		if m := relAmount.FindString(text); m != "" {
			days, _ := strconv.Atoi(m)
			return now.AddDate(0, 0, -days)
		}
	case strings.Contains(text, "hour"):
		if m := relAmount.FindString(text); m != "" {
			hours, _ := strconv.Atoi(m)
			return now.Add(-time.Duration(hours) * time.Hour)
		}
	}
	return now
}

// parseISODate parses an RFC 3339 timestamp, falling back to now.
func parseISODate(text string, now time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(text)); err == nil {
		return t
	}
	// Some sources emit a bare date.
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(text)); err == nil {
		return t
	}
	return now
}
