package util

import (
	"fmt"
	"time"
)

// ISO8601 is the fixed-width, millisecond, UTC layout sort keys are written
// in.
const ISO8601 = "2006-01-02T15:04:05.000Z"

const ISO8601_milli = "2006-01-02T15:04:05.000000Z"

const ISO8601_numtz = "2006-01-02T15:04:05.000-07:00"

const ISO8601_numtz_milli = "2006-01-02T15:04:05.000000-07:00"

const ISO8601_sec = "2006-01-02T15:04:05Z"

const ISO8601_numtz_sec = "2006-01-02T15:04:05-07:00"

// SortAt formats t in the fixed-width UTC layout used for sort columns, so that
// lexical order matches chronological order in every database engine.
func SortAt(t time.Time) string {
	return t.UTC().Format(ISO8601)
}

// ParseTimestamp accepts every layout the indexer has written sort keys in.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		ISO8601,
		ISO8601_milli,
		ISO8601_numtz,
		ISO8601_numtz_milli,
		ISO8601_sec,
		ISO8601_numtz_sec,
	} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("failed to parse %q as timestamp", s)
}
