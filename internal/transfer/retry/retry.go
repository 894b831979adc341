// Package retry runs part transfers under a bounded exponential backoff.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 10

	// DefaultBaseDelay is the first backoff interval.
	DefaultBaseDelay = 200 * time.Millisecond

	// DefaultMaxDelay caps the backoff interval.
	DefaultMaxDelay = 10 * time.Second
)

// Policy bounds how often and how fast a part is retried.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt; zero disables retry
	MaxRetries int

	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable decides whether an error is worth another attempt; nil uses IsRetryable
	Retryable func(error) bool
}

// DefaultPolicy returns the policy shared by uploads and downloads.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Operation is one attempt; attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// Notify is called after a failed attempt that will be retried.
type Notify func(err error, attempt int, wait time.Duration)

// Do runs op until it succeeds, fails permanently, the retries run out or ctx ends.
// It returns the number of attempts made. When every attempt fails the error
// wraps ErrRetryExhausted and the last failure.
func (p Policy) Do(ctx context.Context, op Operation, notify Notify) (int, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	attempts := 0
	var last error
	wrapped := func() error {
		attempts++
		err := op(ctx, attempts)
		if err == nil {
			return nil
		}
		last = err
		if ctx.Err() != nil || !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(err, attempts, wait)
		}
	}

	err := backoff.RetryNotify(wrapped, backoff.WithContext(p.backOff(), ctx), onRetry)
	switch {
	case err == nil:
		return attempts, nil
	case ctx.Err() != nil:
		return attempts, fmt.Errorf("%w: %w", ctx.Err(), last)
	case last != nil && retryable(last) && attempts > p.MaxRetries:
		return attempts, fmt.Errorf("%w after %d attempts: %w", errors.ErrRetryExhausted, attempts, last)
	default:
		return attempts, err
	}
}

func (p Policy) backOff() backoff.BackOff {
	if p.MaxRetries <= 0 {
		return &backoff.StopBackOff{}
	}

	b := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		b.InitialInterval = p.BaseDelay
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithMaxRetries(b, uint64(p.MaxRetries))
}

// permanentCodes are store error codes that no retry can fix.
var permanentCodes = map[string]bool{
	"NoSuchKey":       true,
	"NotFound":        true,
	"NoSuchBucket":    true,
	"NoSuchUpload":    true,
	"AccessDenied":    true,
	"Forbidden":       true,
	"InvalidRange":    true,
	"InvalidRequest":  true,
	"InvalidArgument": true,
	"EntityTooSmall":  true,
	"EntityTooLarge":  true,
	"InvalidPart":     true,

	"PreconditionFailed": true,
}

// IsRetryable reports whether a part failure is transient.
// Caller cancellation, input errors and store errors that describe a
// permanent condition are not retried; everything else is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if stderrors.Is(err, errors.ErrInvalidInput) ||
		stderrors.Is(err, errors.ErrPlanning) ||
		stderrors.Is(err, errors.ErrDestinationCollision) ||
		stderrors.Is(err, errors.ErrObjectChanged) {
		return false
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return !permanentCodes[apiErr.ErrorCode()]
	}

	return true
}
