package errors

// ErrorCode represents a specific transfer failure class.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Input errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodePlanningFailed indicates a part plan could not be computed.
	CodePlanningFailed ErrorCode = "PLANNING_FAILED"

	// Resource errors.

	// CodeNotFound indicates a requested object does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeAlreadyExists indicates the download destination already exists.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeForbidden indicates the credentials lack permission for the operation.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// Transfer errors.

	// CodeTransferFailed indicates a part transfer failed.
	CodeTransferFailed ErrorCode = "TRANSFER_FAILED"

	// CodeRetryExhausted indicates a part failed on every allowed attempt.
	CodeRetryExhausted ErrorCode = "RETRY_EXHAUSTED"

	// CodeReconciliationMismatch indicates the store's part list did not match the plan.
	CodeReconciliationMismatch ErrorCode = "RECONCILIATION_MISMATCH"

	// CodeObjectChanged indicates the source object changed while it was being downloaded.
	CodeObjectChanged ErrorCode = "OBJECT_CHANGED"

	// CodeExecutionFailed indicates an external program exited unsuccessfully.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// Infrastructure errors.

	// CodeNetwork indicates a network operation failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeCanceled indicates the caller canceled the operation.
	CodeCanceled ErrorCode = "CANCELED"

	// Generic errors.

	// CodeInternal indicates an internal error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)
