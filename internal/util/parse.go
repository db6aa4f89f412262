package util

import (
	"regexp"
	"strconv"
	"strings"
)

var nonNumericRegex = regexp.MustCompile(`[^\d]`)

// CleanNumericString strips everything but digits, e.g. "12 comments" -> "12".
func CleanNumericString(s string) string {
	return nonNumericRegex.ReplaceAllString(s, "")
}

// SafeAtoi converts a counter string to an int, tolerating commas and
// whitespace. Anything unparsable counts as zero, matching the feed's
// behavior of omitting the counter element entirely for zero-count posts.
func SafeAtoi(s string) int {
	s = strings.ReplaceAll(s, ",", "")
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}
