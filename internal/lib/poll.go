package lib

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned when the condition never held within the poll duration
var ErrPollTimeout = errors.New("poll timeout")

// PollUntil calls f every interval until it reports done, returns an error, or ctx is cancelled.
// A zero dur means no deadline besides ctx.
func PollUntil(ctx context.Context, dur time.Duration, interval time.Duration, f func(ctx context.Context) (done bool, err error)) error {
	var deadline <-chan time.Time
	if dur > 0 {
		timer := time.NewTimer(dur)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		done, err := f(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrPollTimeout
		case <-time.After(interval):
		}
	}
}
