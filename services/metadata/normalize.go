package metadata

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxFieldLength  = 255
	ellipsis        = "..."
	notAvailableTag = "N/A"
)

// runtimePattern accepts "2 h 15 min", "1h", "135 min", "1h30m" and similar.
var runtimePattern = regexp.MustCompile(`^(?:(\d+)\s*h(?:ours?|rs?)?)?\s*(?:(\d+)\s*m(?:in(?:utes?|s)?)?)?$`)

// parseRuntime converts a free-text runtime into a duration. It returns nil
// for anything it cannot understand.
func parseRuntime(raw string) *time.Duration {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == strings.ToLower(notAvailableTag) {
		return nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return nil
		}
		d := time.Duration(n) * time.Minute
		return &d
	}

	m := runtimePattern.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "") {
		return nil
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if total <= 0 {
		return nil
	}
	return &total
}

// truncate shortens s to the storage limit, marking the cut with an ellipsis.
func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxFieldLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxFieldLength-len(ellipsis)]) + ellipsis
}

// optionalString trims, drops the provider's "N/A" sentinel and truncates.
func optionalString(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" || s == notAvailableTag {
		return nil
	}
	s = truncate(s)
	return &s
}

// parseRating reads a decimal rating and rounds it to one fractional digit.
func parseRating(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" || s == notAvailableTag {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	v = math.Round(v*10) / 10
	return &v
}
