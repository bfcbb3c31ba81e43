package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Class categorizes an attempt failure for backoff purposes.
type Class int

const (
	// ClassFatal errors are never retried (bad credentials, invalid request).
	ClassFatal Class = iota
	// ClassTransient errors are retried with the transient delay (network
	// failures, timeouts).
	ClassTransient
	// ClassRateLimited errors are retried with the longer rate-limit delay.
	ClassRateLimited
)

// Classifier maps an attempt error to a retry class.
type Classifier func(error) Class

// Config configures the linear-backoff retry loop.
type Config struct {
	MaxAttempts    int           // Total attempts including the first (default: 3)
	TransientDelay time.Duration // Per-attempt delay unit for transient errors (default: 1s)
	RateLimitDelay time.Duration // Per-attempt delay unit for rate-limit errors (default: 2s)
	LogRetries     bool          // Whether to log retry attempts
}

// Result describes the outcome of a retried operation.
type Result struct {
	Attempts      int
	Success       bool
	TotalDuration time.Duration
	LastError     error
}

// DefaultConfig returns the retry configuration used for upstream model calls:
// three attempts, waiting attempt*1s after a transient failure and attempt*2s
// after a rate-limit response.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		TransientDelay: 1 * time.Second,
		RateLimitDelay: 2 * time.Second,
		LogRetries:     true,
	}
}

// Do runs op until it succeeds, fails fatally, or the attempt budget runs out.
// The delay before the next attempt grows linearly with the attempt number:
// n*TransientDelay or n*RateLimitDelay depending on how the failure is
// classified.
func Do(ctx context.Context, cfg Config, classify Classifier, op func() error) Result {
	start := time.Now()

	result := Result{}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := op()
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(start)
			return result
		}

		result.LastError = err

		class := classify(err)
		if class == ClassFatal || attempt == cfg.MaxAttempts {
			result.TotalDuration = time.Since(start)
			if cfg.LogRetries {
				log.Warn().
					Err(err).
					Int("attempts", result.Attempts).
					Msg("Operation failed, not retrying")
			}
			return result
		}

		delay := delayFor(cfg, class, attempt)
		if cfg.LogRetries {
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", cfg.MaxAttempts).
				Dur("delay", delay).
				Msg("Operation failed, retrying after delay")
		}

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result
		case <-time.After(delay):
		}
	}

	result.TotalDuration = time.Since(start)
	return result
}

// delayFor returns attempt*unit where unit depends on the failure class.
func delayFor(cfg Config, class Class, attempt int) time.Duration {
	unit := cfg.TransientDelay
	if class == ClassRateLimited {
		unit = cfg.RateLimitDelay
	}
	return time.Duration(attempt) * unit
}
