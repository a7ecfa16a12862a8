package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeCycleDetected          = "CYCLE_DETECTED"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeMissingTemplate        = "MISSING_TEMPLATE"
	ErrCodeShapeMismatch          = "SHAPE_MISMATCH"
	ErrCodeOverflowChainExhausted = "OVERFLOW_CHAIN_EXHAUSTED"
	ErrCodeDanglingSuccessor      = "DANGLING_SUCCESSOR"
	ErrCodeExpression             = "EXPRESSION_ERROR"
	ErrCodeProfile                = "PROFILE_ERROR"
	ErrCodeStore                  = "STORE_ERROR"
)

// FftsError is the structured error type for all task-graph build operations.
type FftsError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	NodeID    string         `json:"node_id,omitempty"`
	ContextID *uint32        `json:"context_id,omitempty"`
	Cause     error          `json:"-"`
}

func (e *FftsError) Error() string {
	switch {
	case e.NodeID != "" && e.ContextID != nil:
		return fmt.Sprintf("[%s] node %s (context %d): %s", e.Code, e.NodeID, *e.ContextID, e.Message)
	case e.NodeID != "":
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	case e.ContextID != nil:
		return fmt.Sprintf("[%s] context %d: %s", e.Code, *e.ContextID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FftsError) Unwrap() error {
	return e.Cause
}

// NewError creates a new FftsError.
func NewError(code, message string) *FftsError {
	return &FftsError{Code: code, Message: message}
}

// NewErrorf creates a new FftsError with a formatted message.
func NewErrorf(code, format string, args ...any) *FftsError {
	return &FftsError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches the owning node ID to the error.
func (e *FftsError) WithNode(nodeID string) *FftsError {
	e.NodeID = nodeID
	return e
}

// WithContext attaches the context ID the failure was detected on.
func (e *FftsError) WithContext(id uint32) *FftsError {
	e.ContextID = &id
	return e
}

// WithCause attaches an underlying cause.
func (e *FftsError) WithCause(err error) *FftsError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FftsError) WithDetails(details map[string]any) *FftsError {
	e.Details = details
	return e
}

// HasCode reports whether err is, or wraps, an FftsError carrying code.
func HasCode(err error, code string) bool {
	var fe *FftsError
	return errors.As(err, &fe) && fe.Code == code
}
