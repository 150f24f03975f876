// Package errors provides structured error handling for attachmcp.
//
// Every failure that crosses the service boundary carries a stable
// machine-readable code. Callers branch on the code, never on message text.
package errors

// Category classifies errors for handling policy.
type Category string

const (
	// CategoryNotFound indicates a missing store or content entity.
	CategoryNotFound Category = "NOT_FOUND"
	// CategoryValidation indicates malformed, missing, or conflicting input.
	CategoryValidation Category = "VALIDATION"
	// CategoryResourceLimit indicates an oversized file or content payload.
	CategoryResourceLimit Category = "RESOURCE_LIMIT"
	// CategoryTransient indicates a retryable failure (fetch, I/O hiccup).
	CategoryTransient Category = "TRANSIENT"
	// CategoryInternal indicates an unexpected internal fault.
	CategoryInternal Category = "INTERNAL"
)

// Stable error codes exposed to tool-dispatch callers.
const (
	CodeStoreNotFound    = "STORE_NOT_FOUND"
	CodeContentNotFound  = "CONTENT_NOT_FOUND"
	CodeStoreMismatch    = "STORE_MISMATCH"
	CodeInvalidLineRange = "INVALID_LINE_RANGE"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeContentTooLarge  = "CONTENT_TOO_LARGE"
	CodeMissingInput     = "MISSING_INPUT"

	// CodeFetchFailed covers failures in the external fetch collaborator.
	// These are retryable by the caller.
	CodeFetchFailed = "FETCH_FAILED"
	// CodeDecodeFailed covers failures in the external decode collaborator.
	CodeDecodeFailed = "DECODE_FAILED"
	// CodeInternal covers faults with no more specific classification.
	CodeInternal = "INTERNAL"
)

// categoryFromCode derives the category from an error code.
func categoryFromCode(code string) Category {
	switch code {
	case CodeStoreNotFound, CodeContentNotFound:
		return CategoryNotFound
	case CodeStoreMismatch, CodeInvalidLineRange, CodeMissingInput, CodeDecodeFailed:
		return CategoryValidation
	case CodeFileTooLarge, CodeContentTooLarge:
		return CategoryResourceLimit
	case CodeFetchFailed:
		return CategoryTransient
	default:
		return CategoryInternal
	}
}

// isRetryableCode reports whether an error code represents a retryable failure.
func isRetryableCode(code string) bool {
	return code == CodeFetchFailed
}
