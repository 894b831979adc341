package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}
}

func TestPolicy_Do_SucceedsAfterTransientFailures(t *testing.T) {
	const maxRetries = 10

	for _, k := range []int{0, 1, 3, maxRetries} {
		t.Run(fmt.Sprintf("%d failures", k), func(t *testing.T) {
			calls := 0
			attempts, err := fastPolicy(maxRetries).Do(context.Background(), func(_ context.Context, attempt int) error {
				calls++
				assert.Equal(t, calls, attempt)
				if attempt <= k {
					return stderrors.New("connection reset by peer")
				}
				return nil
			}, nil)

			require.NoError(t, err)
			assert.Equal(t, k+1, attempts)
			assert.Equal(t, k+1, calls)
		})
	}
}

func TestPolicy_Do_Exhausted(t *testing.T) {
	const maxRetries = 3
	last := stderrors.New("slow down")

	attempts, err := fastPolicy(maxRetries).Do(context.Background(), func(context.Context, int) error {
		return last
	}, nil)

	require.Error(t, err)
	assert.Equal(t, maxRetries+1, attempts)
	assert.ErrorIs(t, err, errors.ErrRetryExhausted)
	assert.ErrorIs(t, err, last)
	assert.True(t, errors.IsRetryExhausted(err))
}

func TestPolicy_Do_NoRetries(t *testing.T) {
	attempts, err := fastPolicy(0).Do(context.Background(), func(context.Context, int) error {
		return stderrors.New("boom")
	}, nil)

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, errors.ErrRetryExhausted)
}

func TestPolicy_Do_PermanentErrorStopsImmediately(t *testing.T) {
	notFound := &smithy.GenericAPIError{Code: "NoSuchKey", Message: "gone"}

	attempts, err := fastPolicy(5).Do(context.Background(), func(context.Context, int) error {
		return notFound
	}, nil)

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, notFound)
	assert.NotErrorIs(t, err, errors.ErrRetryExhausted)
}

func TestPolicy_Do_Notify(t *testing.T) {
	var seen []int
	_, err := fastPolicy(2).Do(context.Background(), func(context.Context, int) error {
		return stderrors.New("flaky")
	}, func(_ error, attempt int, wait time.Duration) {
		seen = append(seen, attempt)
		assert.Positive(t, wait)
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestPolicy_Do_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := Policy{MaxRetries: 10, BaseDelay: time.Hour, MaxDelay: time.Hour}
	attempts, err := p.Do(ctx, func(context.Context, int) error {
		cancel()
		return stderrors.New("interrupted")
	}, nil)

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, errors.ErrRetryExhausted)
}

func TestPolicy_Do_CustomRetryable(t *testing.T) {
	p := fastPolicy(5)
	p.Retryable = func(error) bool { return false }

	attempts, err := p.Do(context.Background(), func(context.Context, int) error {
		return stderrors.New("anything")
	}, nil)

	assert.Equal(t, 1, attempts)
	require.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", stderrors.New("connection reset"), true},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), false},
		{"invalid input", errors.ErrInvalidInput, false},
		{"collision", errors.ErrDestinationCollision, false},
		{"short body", fmt.Errorf("%w: short body", errors.ErrTransfer), true},
		{"throttled", &smithy.GenericAPIError{Code: "SlowDown"}, true},
		{"internal", &smithy.GenericAPIError{Code: "InternalError"}, true},
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, false},
		{"no such upload", &smithy.GenericAPIError{Code: "NoSuchUpload"}, false},
		{"access denied", fmt.Errorf("wrapped: %w", &smithy.GenericAPIError{Code: "AccessDenied"}), false},
		{"invalid range", &smithy.GenericAPIError{Code: "InvalidRange"}, false},
		{"precondition failed", &smithy.GenericAPIError{Code: "PreconditionFailed"}, false},
		{"object changed", fmt.Errorf("%w: etag differs", errors.ErrObjectChanged), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
