package timespec

import (
	"fmt"
	"time"
)

// Parse parses a time specification into a Unix timestamp in seconds, the
// resolution of Nostr created_at. Supports two formats:
//   - Go duration format: "1h", "30m", "1h30m", "2h45m30s"
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
//
// Durations are relative to now: "1h" means one hour ago.
func Parse(spec string) (int64, error) {
	return ParseAt(spec, time.Now())
}

// ParseAt is Parse with an explicit reference time for durations.
func ParseAt(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.Unix(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("invalid time specification: %s (duration must not be negative)", spec)
		}
		return now.Add(-d).Unix(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}

// ParseRange parses both --since and --until flags into a time range.
// Returns (sinceUnix, untilUnix, error). Zero means "no bound" for that end.
//
// Validates that since < until if both are specified.
func ParseRange(since, until string) (int64, int64, error) {
	return ParseRangeAt(since, until, time.Now())
}

// ParseRangeAt is ParseRange with an explicit reference time.
func ParseRangeAt(since, until string, now time.Time) (int64, int64, error) {
	var sinceUnix, untilUnix int64
	var err error

	if since != "" {
		sinceUnix, err = ParseAt(since, now)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		untilUnix, err = ParseAt(until, now)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if sinceUnix > 0 && untilUnix > 0 && sinceUnix >= untilUnix {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}

	return sinceUnix, untilUnix, nil
}
