package snapshot

import (
	"fmt"
	"time"
)

const lockRetryDelay = 20 * time.Millisecond

// Timestamps are written as RFC 3339 but older panels stored a plain
// "2006-01-02 15:04:05" local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
