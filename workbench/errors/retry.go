package errors

import (
	"context"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RetryableErrors []ErrorCode

	// OnRetry, when set, is called before each wait with the failed
	// attempt number and its error.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		RetryableErrors: []ErrorCode{
			ErrCodeProvider,
			ErrCodeTimeout,
		},
	}
}

// RetryFunc is a function that can be retried
type RetryFunc func() error

// RetryWithConfig retries fn with exponential backoff until it succeeds,
// returns a non-retryable error, or runs out of attempts.
func RetryWithConfig(ctx context.Context, fn RetryFunc, config *RetryConfig) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableError(err, config.RetryableErrors) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return New(ErrCodeInternal, "", "maximum retry attempts exceeded", lastErr).
		WithContext("attempts", config.MaxAttempts)
}

func isRetryableError(err error, retryableCodes []ErrorCode) bool {
	var coded *CodedError
	if As(err, &coded) {
		for _, code := range retryableCodes {
			if coded.Code == code {
				return true
			}
		}
		return coded.IsRetryable()
	}
	return IsRetryable(err)
}
