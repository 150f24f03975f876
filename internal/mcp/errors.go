// Package mcp exposes the content-store operations as MCP tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/attachmcp/attachmcp/internal/errors"
)

// MCP error codes for attachmcp.
const (
	// ErrCodeStoreNotFound indicates the requested store does not exist.
	ErrCodeStoreNotFound = -32001

	// ErrCodeContentNotFound indicates the requested content does not exist.
	ErrCodeContentNotFound = -32002

	// ErrCodeTransient indicates a retryable failure (fetch, timeout).
	ErrCodeTransient = -32003

	// ErrCodeTooLarge indicates an oversized file or content payload.
	ErrCodeTooLarge = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// MapError converts internal errors to MCP errors. Service errors carry a
// stable code; the MCP code follows the error category.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	if appErr, ok := apperrors.As(err); ok {
		return mapAppError(appErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTransient,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTransient,
			Message: "Request was canceled.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

func mapAppError(e *apperrors.Error) *MCPError {
	// The stable service code stays in the message so callers can branch
	// on it.
	message := fmt.Sprintf("[%s] %s", e.Code, e.Message)

	switch e.Category {
	case apperrors.CategoryNotFound:
		if e.Code == apperrors.CodeContentNotFound {
			return &MCPError{Code: ErrCodeContentNotFound, Message: message}
		}
		return &MCPError{Code: ErrCodeStoreNotFound, Message: message}
	case apperrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case apperrors.CategoryResourceLimit:
		return &MCPError{Code: ErrCodeTooLarge, Message: message}
	case apperrors.CategoryTransient:
		return &MCPError{Code: ErrCodeTransient, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
