package core

import (
	"context"
	"log/slog"
	"time"

	dberrors "github.com/vampirenirmal/deepbook/pkg/deepbook/errors"
)

// RetryPolicy re-runs a whole failed stage. The zero value never retries.
// Precondition failures are never retried.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy is used when retries are enabled without explicit delays.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:    2,
	InitialDelay:  time.Second,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
}

// executeWithRetry runs fn until it succeeds, fails with a non-retryable
// error, or the policy is exhausted. The returned error is a *StageError.
//
// fn runs detached from ctx cancellation so a stage is never interrupted
// halfway; ctx is only consulted between attempts.
func executeWithRetry(ctx context.Context, stage Stage, policy RetryPolicy, logger *slog.Logger, fn func(context.Context) error) error {
	delay := policy.InitialDelay
	attempts := policy.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(context.WithoutCancel(ctx))
		if err == nil {
			if attempt > 1 {
				logger.Info("stage succeeded after retries",
					"stage", stage,
					"attempt", attempt)
			}
			return nil
		}
		lastErr = err

		if !dberrors.IsRetryable(err) || attempt == attempts {
			return &StageError{Stage: stage, Attempts: attempt, Cause: err}
		}

		logger.Warn("stage attempt failed, retrying",
			"stage", stage,
			"attempt", attempt,
			"error", err,
			"next_delay", delay)

		select {
		case <-ctx.Done():
			return &StageError{Stage: stage, Attempts: attempt, Cause: lastErr}
		case <-time.After(delay):
		}

		if policy.BackoffFactor > 1 {
			delay = time.Duration(float64(delay) * policy.BackoffFactor)
		}
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return &StageError{Stage: stage, Attempts: attempts, Cause: lastErr}
}
