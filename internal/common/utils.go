package common

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInstant is returned when a value is neither RFC3339 nor unix seconds.
var ErrInvalidInstant = errors.New("invalid time format; use RFC3339 or unix seconds")

// ParseInstant accepts RFC3339 (any offset, optional fractional seconds) or
// unix seconds and returns the instant in UTC, truncated to the millisecond
// precision FormatInstant renders.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidInstant
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC().Truncate(time.Millisecond), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, ErrInvalidInstant
}

// FormatInstant renders t in UTC using RFC3339 with millisecond precision.
func FormatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
