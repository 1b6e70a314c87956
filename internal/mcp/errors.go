// Package mcp implements the Model Context Protocol server for bananaindex.
package mcp

import (
	"context"
	"errors"
	"fmt"

	iderrors "github.com/Aman-CERP/bananaindex/internal/errors"
)

// MCP error codes.
const (
	// ErrCodeIndexNotFound indicates the index has not been built.
	ErrCodeIndexNotFound = -32001

	// ErrCodeEngineUnavailable indicates the search engine cannot be reached.
	ErrCodeEngineUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
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

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	var ie *iderrors.IndexError
	if !errors.As(err, &ie) {
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}

	message := ie.Message
	if ie.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ie.Message, ie.Suggestion)
	}

	switch iderrors.KindOf(err) {
	case iderrors.KindConnectionFailure:
		return &MCPError{Code: ErrCodeEngineUnavailable, Message: message}
	case iderrors.KindNotFound:
		if ie.Code == iderrors.ErrCodeIndexNotFound {
			return &MCPError{Code: ErrCodeIndexNotFound, Message: "Index not found. Run 'bananaindex index' first."}
		}
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case iderrors.KindInvalid:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case iderrors.KindTaskTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}
