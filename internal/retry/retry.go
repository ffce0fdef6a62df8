// Package retry provides the backoff strategy used between transcription
// attempts.
package retry

import (
	"context"
	"time"
)

// Strategy decides whether an attempt should run and how long to wait
// before it. Attempts are 0-indexed; attempt 0 always runs, so exactly
// MaxAttempts attempts are made in total against a persistent failure.
type Strategy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps the backoff growth. Zero means uncapped.
	MaxDelay time.Duration
}

// ShouldRetry reports whether the given 0-indexed attempt may run.
func (s Strategy) ShouldRetry(attempt int) bool {
	return attempt < s.MaxAttempts
}

// Delay returns BaseDelay * 2^attempt, capped at MaxDelay when set.
func (s Strategy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := s.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if s.MaxDelay > 0 && d >= s.MaxDelay {
			return s.MaxDelay
		}
	}
	if s.MaxDelay > 0 && d > s.MaxDelay {
		return s.MaxDelay
	}
	return d
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
