package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	iso8601 "github.com/senseyeio/duration"
)

var (
	// Transit ids mix letters, digits and the separators feeds use.
	validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
)

const maxIDLength = 100

func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("id too long (max %d characters)", maxIDLength)
	}
	if !validIDPattern.MatchString(id) {
		return errors.New("id contains invalid characters")
	}
	return nil
}

// SanitizeInput strips HTML tags and surrounding whitespace.
func SanitizeInput(input string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(input, ""))
}

// Accepted datetime layouts, tried in order after epoch milliseconds.
var dateTimeLayouts = []string{
	"20060102T150405",
	"20060102T1504",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseDateTime reads a request datetime. Epoch milliseconds are absolute;
// layouts without an offset are read in loc. An empty value means now.
func ParseDateTime(value string, loc *time.Location, now time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return now.In(loc), nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", value)
}

// ParseDuration accepts Go syntax ("90s"), ISO-8601 ("PT1H30M") or a bare
// number of seconds.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	if strings.HasPrefix(strings.ToUpper(value), "P") {
		d, err := iso8601.ParseISO8601(strings.ToUpper(value))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", value, err)
		}
		// Calendar units are resolved against a fixed UTC instant so that
		// a day is always 24h.
		ref := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
		return d.Shift(ref).Sub(ref), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	return d, nil
}
