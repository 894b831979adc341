// Package errors provides error types and handling for chunked S3 transfers.
//
// Every failure surfaced by the transfer engine can be matched with errors.Is
// against one of the sentinels below and mapped to an ErrorCode with CodeOf.
package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Error represents a transfer operation error with context about the operation that failed.
// It wraps the underlying AWS SDK or filesystem error with additional context.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "download", "completeMultipartUpload")
	Op string

	// Bucket is the S3 bucket name (if applicable)
	Bucket string

	// Key is the S3 object key (if applicable)
	Key string

	// Code classifies the failure; empty means derive it from Err
	Code ErrorCode

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("s3transfer.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("s3transfer.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("s3transfer.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3transfer.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithCode sets an explicit error code.
func (e *Error) WithCode(code ErrorCode) *Error {
	e.Code = code
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for transfer failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrPlanning indicates invalid planning inputs (negative size, zero parts, too many parts)
	ErrPlanning = errors.New("s3transfer: invalid transfer plan")

	// ErrTransfer indicates a part transfer failed on I/O or transport
	ErrTransfer = errors.New("s3transfer: part transfer failed")

	// ErrRetryExhausted indicates a part failed on every allowed attempt
	ErrRetryExhausted = errors.New("s3transfer: retries exhausted")

	// ErrReconciliationMismatch indicates the store's part count differs from the plan
	ErrReconciliationMismatch = errors.New("s3transfer: uploaded part count does not match plan")

	// ErrObjectChanged indicates the source object was replaced while it was being read
	ErrObjectChanged = errors.New("s3transfer: object changed during transfer")

	// ErrDestinationCollision indicates the download target exists and overwrite is disabled
	ErrDestinationCollision = errors.New("s3transfer: destination already exists")

	// ErrExternalTool indicates the external downloader exited unsuccessfully
	ErrExternalTool = errors.New("s3transfer: external tool failed")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("s3transfer: invalid input")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("s3transfer: object not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("s3transfer: access denied")
)

// PartError reports the failure of a single part.
type PartError struct {
	// Index is the 1-based part number
	Index int

	// Attempts is the number of attempts made
	Attempts int

	// Err is the last error observed
	Err error
}

// Error implements the error interface.
func (e *PartError) Error() string {
	return fmt.Sprintf("part %d failed after %d attempt(s): %v", e.Index, e.Attempts, e.Err)
}

// Unwrap returns the underlying error.
func (e *PartError) Unwrap() error {
	return e.Err
}

// ToolError reports a non-zero exit of an external program.
type ToolError struct {
	// Tool is the program name
	Tool string

	// ExitCode is the process exit status, -1 when the process did not start
	ExitCode int

	// Output is the captured combined output
	Output string

	// Err is the underlying execution error
	Err error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %v", e.Tool, e.ExitCode, e.Err)
}

// Unwrap returns both the sentinel and the underlying error.
func (e *ToolError) Unwrap() []error {
	return []error{ErrExternalTool, e.Err}
}

var sentinelCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrPlanning, CodePlanningFailed},
	{ErrDestinationCollision, CodeAlreadyExists},
	{ErrReconciliationMismatch, CodeReconciliationMismatch},
	{ErrObjectChanged, CodeObjectChanged},
	{ErrRetryExhausted, CodeRetryExhausted},
	{ErrExternalTool, CodeExecutionFailed},
	{ErrObjectNotFound, CodeNotFound},
	{ErrAccessDenied, CodeForbidden},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrTransfer, CodeTransferFailed},
	{context.DeadlineExceeded, CodeTimeout},
	{context.Canceled, CodeCanceled},
}

// CodeOf returns the code of the first classified error in err's chain.
// It returns an empty code for nil and CodeUnknown when nothing matches.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}

	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return CodeUnknown
}

// IsRetryExhausted checks if an error indicates a part ran out of attempts.
func IsRetryExhausted(err error) bool {
	return errors.Is(err, ErrRetryExhausted)
}

// IsReconciliationMismatch checks if an error indicates an aborted upload session.
func IsReconciliationMismatch(err error) bool {
	return errors.Is(err, ErrReconciliationMismatch)
}

// IsDestinationCollision checks if an error indicates the download target already exists.
func IsDestinationCollision(err error) bool {
	return errors.Is(err, ErrDestinationCollision)
}

// IsObjectChanged checks if an error indicates the source object changed mid-transfer.
func IsObjectChanged(err error) bool {
	return errors.Is(err, ErrObjectChanged)
}

// IsObjectNotFound checks if an error indicates that an object was not found.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// FromAPI attaches the matching sentinel to a store API error so callers can
// use errors.Is without inspecting service codes. Other errors are returned unchanged.
func FromAPI(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	case "AccessDenied", "Forbidden":
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	case "PreconditionFailed":
		return fmt.Errorf("%w: %w", ErrObjectChanged, err)
	default:
		return err
	}
}
