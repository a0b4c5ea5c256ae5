package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/mattn/go-sqlite3"

	"referendum-pipeline/internal/model"
	"referendum-pipeline/internal/store"
)

// DefaultRetryConfigs defines retry behavior per operation type
var DefaultRetryConfigs = map[string]model.RetryConfig{
	StageExport: {
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2.0,
	},
}

// WithRetry runs fn until it succeeds, returns a non-retryable error, or
// cfg.MaxAttempts is reached.
func WithRetry(ctx context.Context, cfg model.RetryConfig, op string, fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isRetryableError(err) || attempt == attempts {
			break
		}

		delay := nextRetryDelay(cfg, attempt)
		fmt.Printf("🔄 Retrying %s (attempt %d/%d) in %v: %v\n", op, attempt+1, attempts, delay, err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// nextRetryDelay grows the delay geometrically with up to 10% jitter.
func nextRetryDelay(cfg model.RetryConfig, attempt int) time.Duration {
	mult := cfg.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	jitter := time.Duration(float64(delay) * 0.1 * rand.Float64())
	return delay + jitter
}

// isRetryableError reports whether err is a transient sqlite lock.
func isRetryableError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// RetryRun executes a stored run again with its original spec
func RetryRun(ctx context.Context, runID string) error {
	fmt.Printf("🔄 Retrying run %s\n", runID)

	run, err := store.GetRun(runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}

	setRunStatus(runID, "retrying")
	if err := store.DeleteRunResults(runID); err != nil {
		return fmt.Errorf("clear results of run %s: %w", runID, err)
	}

	return Execute(ctx, runID, run.Spec)
}
