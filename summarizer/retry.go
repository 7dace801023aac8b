package summarizer

import (
	"time"

	"github.com/meysamhadeli/doctreeai/providers/models"
)

// RetryPolicy decides whether a failed compute call is attempted again.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries transient failures four times in total, doubling from one second.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 4,
	BaseDelay:   time.Second,
	MaxDelay:    30 * time.Second,
}

// Next returns how long to wait before attempt+1, or false to give up.
// attempt counts from 1. Only transient errors are retried.
func (p RetryPolicy) Next(attempt int, err error) (time.Duration, bool) {
	if err == nil || attempt >= p.MaxAttempts || !models.IsTransient(err) {
		return 0, false
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay, true
}
