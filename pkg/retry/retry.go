// Package retry wraps metadata queries against customer datasources with
// exponential backoff. Only transient driver failures are retried; a bad
// query or a permission error fails on the first attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// JitterFactor spreads concurrent retries, 0.1 means +/-10%.
	JitterFactor float64
	// MaxSameErrorType escalates to a permanent failure after N consecutive
	// errors of the same kind. Zero disables escalation.
	MaxSameErrorType int
}

// DefaultConfig returns the defaults used for catalog and statistics queries:
// 3 retries starting at 100ms, doubling up to 5s, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 3,
	}
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// backoff tracks the delay between attempts.
type backoff struct {
	cfg   *Config
	delay time.Duration
}

// wait sleeps for the current delay and grows it. It returns the context
// error if ctx ends first.
func (b *backoff) wait(ctx context.Context) error {
	timer := time.NewTimer(applyJitter(b.delay, b.cfg.JitterFactor))
	defer timer.Stop()

	select {
	case <-timer.C:
		b.delay = min(time.Duration(float64(b.delay)*b.cfg.Multiplier), b.cfg.MaxDelay)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do executes fn until it succeeds or retries are exhausted, returning the
// last error. Every error is retried.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn and returns its result, retrying every error.
// The last result is returned alongside the last error.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	return run(ctx, cfg, func(error) bool { return true }, fn)
}

// DoIfRetryable retries only transient errors (see IsRetryable). Permanent
// errors are returned immediately.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoIfRetryableWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoIfRetryableWithResult is DoIfRetryable for functions that return a value.
func DoIfRetryableWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	return run(ctx, cfg, IsRetryable, fn)
}

func run[T any](ctx context.Context, cfg *Config, retryable func(error) bool, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	b := &backoff{cfg: cfg, delay: cfg.InitialDelay}
	var (
		result       T
		lastErr      error
		lastKind     string
		sameKindSeen int
	)

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if !retryable(err) {
			return result, err
		}

		kind := classifyErrorType(err)
		if kind == lastKind {
			sameKindSeen++
		} else {
			lastKind, sameKindSeen = kind, 1
		}
		if cfg.MaxSameErrorType > 0 && sameKindSeen >= cfg.MaxSameErrorType && attempt < cfg.MaxRetries {
			return result, fmt.Errorf("repeated error (%d times, type=%s): %w", sameKindSeen, kind, err)
		}

		if attempt < cfg.MaxRetries {
			if waitErr := b.wait(ctx); waitErr != nil {
				return result, waitErr
			}
		}
	}

	return result, lastErr
}

// RetryableError lets an error declare its own retryability.
type RetryableError interface {
	error
	IsRetryable() bool
}

// sqlStateError is implemented by pgconn.PgError.
type sqlStateError interface {
	SQLState() string
}

// sqlNumberError is implemented by mssql.Error.
type sqlNumberError interface {
	SQLErrorNumber() int32
}

// transient SQLSTATE classes and codes
var retryableSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P03": true, // cannot_connect_now
	"55P03": true, // lock_not_available
}

// transient SQL Server error numbers
var retryableSQLNumbers = map[int32]bool{
	1205:  true, // deadlock victim
	1222:  true, // lock request timeout
	40197: true,
	40501: true, // service busy
	40613: true, // database unavailable
	49918: true,
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"deadlock",
	"i/o timeout",
	"network is unreachable",
	"bad connection",
	"driver: bad connection",
	"server closed the connection",
	"lock wait timeout",
}

// IsRetryable reports whether err is a transient datasource failure.
// Explicit declarations win, then driver error codes, then message patterns.
// Cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var declared RetryableError
	if errors.As(err, &declared) {
		return declared.IsRetryable()
	}

	var stateErr sqlStateError
	if errors.As(err, &stateErr) {
		state := stateErr.SQLState()
		// class 08: connection exception
		return strings.HasPrefix(state, "08") || retryableSQLStates[state]
	}

	var numErr sqlNumberError
	if errors.As(err, &numErr) {
		return retryableSQLNumbers[numErr.SQLErrorNumber()]
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// classifyErrorType groups errors for same-type escalation.
func classifyErrorType(err error) string {
	var stateErr sqlStateError
	if errors.As(err, &stateErr) {
		return "sqlstate_" + stateErr.SQLState()
	}
	var numErr sqlNumberError
	if errors.As(err, &numErr) {
		return fmt.Sprintf("sqlerror_%d", numErr.SQLErrorNumber())
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "bad connection"):
		return "connection"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "timed out"):
		return "timeout"
	case strings.Contains(errStr, "deadlock"):
		return "deadlock"
	case strings.Contains(errStr, "too many connections"):
		return "capacity"
	}
	return "unknown"
}
