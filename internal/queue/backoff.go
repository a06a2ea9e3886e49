package queue

import (
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
)

// BackoffStrategy gives the delay before the next attempt. attempt counts
// the failures so far, starting at 1.
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// FixedBackoff waits the same delay after every failure.
type FixedBackoff struct {
	Delay time.Duration
}

// Next implements BackoffStrategy.
func (b FixedBackoff) Next(_ int) time.Duration { return b.Delay }

// ExponentialBackoff waits Base after the first failure and multiplies the
// delay by Multiplier after each further one, capped at Max when Max > 0.
type ExponentialBackoff struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

// Next implements BackoffStrategy.
func (b ExponentialBackoff) Next(attempt int) time.Duration {
	multiplier := b.Multiplier
	if multiplier < 1.0 {
		multiplier = 2.0
	}

	delay := float64(b.Base)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
		if b.Max > 0 && delay >= float64(b.Max) {
			return b.Max
		}
	}

	result := time.Duration(delay)
	if b.Max > 0 && result > b.Max {
		return b.Max
	}
	return result
}

// maxBackoff caps exponential delays so a misconfigured job cannot sleep forever.
const maxBackoff = time.Hour

// BackoffFor returns the strategy described by a job's retry policy.
func BackoffFor(job *domain.QueueJob) BackoffStrategy {
	if job.Backoff == domain.BackoffFixed {
		return FixedBackoff{Delay: job.BackoffBase}
	}
	return ExponentialBackoff{Base: job.BackoffBase, Multiplier: 2, Max: maxBackoff}
}
