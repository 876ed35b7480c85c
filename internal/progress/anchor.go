package progress

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxAttempts  = 50
)

var ErrAnchorNotFound = errors.New("layout anchor not found")

// AnchorLookup reports the vertical offset of a layout anchor once it exists.
type AnchorLookup func() (offset int, found bool)

// PollAnchor retries lookup every interval until it succeeds, ctx ends, or
// maxAttempts lookups have failed. The ticker is released on every return
// path.
func PollAnchor(ctx context.Context, lookup AnchorLookup, interval time.Duration, maxAttempts int) (int, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	if offset, ok := lookup(); ok {
		return offset, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
			if offset, ok := lookup(); ok {
				return offset, nil
			}
		}
	}
	return 0, ErrAnchorNotFound
}
