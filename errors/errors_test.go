package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "bucket and key",
			err:  NewObjectError("upload", "bucket", "a/b", errors.New("boom")),
			want: "s3transfer.upload bucket/a/b: boom",
		},
		{
			name: "bucket only",
			err:  NewError("head", errors.New("boom")).WithBucket("bucket"),
			want: "s3transfer.head bucket bucket: boom",
		},
		{
			name: "key only",
			err:  NewError("download", errors.New("boom")).WithKey("k"),
			want: "s3transfer.download object k: boom",
		},
		{
			name: "no context",
			err:  NewError("plan", errors.New("boom")),
			want: "s3transfer.plan: boom",
		},
		{
			name: "with message",
			err:  NewError("plan", ErrPlanning).WithMessage("num parts 0"),
			want: "s3transfer.plan: num parts 0: s3transfer: invalid transfer plan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"unknown", errors.New("x"), CodeUnknown},
		{"planning", fmt.Errorf("wrap: %w", ErrPlanning), CodePlanningFailed},
		{"collision", NewError("download", ErrDestinationCollision), CodeAlreadyExists},
		{"explicit code wins", NewError("x", ErrTransfer).WithCode(CodeNetwork), CodeNetwork},
		{
			"part error retry exhausted",
			&PartError{Index: 2, Attempts: 11, Err: fmt.Errorf("%w: last", ErrRetryExhausted)},
			CodeRetryExhausted,
		},
		{
			"joined mismatch",
			errors.Join(ErrReconciliationMismatch, &PartError{Index: 1, Err: ErrTransfer}),
			CodeReconciliationMismatch,
		},
		{"object changed", fmt.Errorf("%w: etag differs", ErrObjectChanged), CodeObjectChanged},
		{"tool", &ToolError{Tool: "aria2c", ExitCode: 3, Err: errors.New("exit status 3")}, CodeExecutionFailed},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), CodeTimeout},
		{"canceled", context.Canceled, CodeCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestPartError(t *testing.T) {
	inner := errors.New("connection reset")
	err := &PartError{Index: 3, Attempts: 2, Err: inner}

	assert.Equal(t, "part 3 failed after 2 attempt(s): connection reset", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestToolError(t *testing.T) {
	inner := errors.New("exit status 7")
	err := &ToolError{Tool: "aria2c", ExitCode: 7, Output: "errorCode=7", Err: inner}

	assert.ErrorIs(t, err, ErrExternalTool)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "aria2c exited with code 7")

	var te *ToolError
	wrapped := NewError("downloadAccelerated", err)
	assert.True(t, errors.As(wrapped, &te))
	assert.Equal(t, 7, te.ExitCode)
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsRetryExhausted(fmt.Errorf("x: %w", ErrRetryExhausted)))
	assert.True(t, IsReconciliationMismatch(NewError("upload", ErrReconciliationMismatch)))
	assert.True(t, IsDestinationCollision(ErrDestinationCollision))
	assert.True(t, IsObjectNotFound(ErrObjectNotFound))
	assert.True(t, IsInvalidInput(ErrInvalidInput))
	assert.True(t, IsObjectChanged(&PartError{Index: 2, Err: ErrObjectChanged}))
	assert.False(t, IsRetryExhausted(ErrTransfer))
}

func TestFromAPI(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, ErrObjectNotFound},
		{"head not found", &smithy.GenericAPIError{Code: "NotFound"}, ErrObjectNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, ErrAccessDenied},
		{"precondition failed", &smithy.GenericAPIError{Code: "PreconditionFailed"}, ErrObjectChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromAPI(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	plain := errors.New("connection reset")
	assert.Same(t, plain, FromAPI(plain))

	throttled := &smithy.GenericAPIError{Code: "SlowDown"}
	assert.Equal(t, error(throttled), FromAPI(throttled))
	assert.Nil(t, FromAPI(nil))
}
