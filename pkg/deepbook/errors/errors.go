package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	// ErrPrecondition indicates a stage was invoked before its input existed
	ErrPrecondition = errors.New("stage precondition not met")

	// ErrParse indicates a model response did not conform to its schema
	ErrParse = errors.New("response does not match schema")

	// ErrExternalCall indicates the model or image service failed
	ErrExternalCall = errors.New("external call failed")

	// ErrTimeout indicates an external call exceeded its deadline
	ErrTimeout = errors.New("external call timed out")

	// ErrBatchFailed indicates one item of a fan-out failed and the batch was discarded
	ErrBatchFailed = errors.New("batch failed")

	// ErrFieldAlreadySet indicates a second write to a document field
	ErrFieldAlreadySet = errors.New("document field already set")
)

// Service names used by ExternalCallError.
const (
	ServiceModel = "model"
	ServiceImage = "image"
)

// PreconditionError is returned when a stage runs against a document that
// lacks the field it depends on, or already has the field it produces.
type PreconditionError struct {
	Stage    string
	Requires string
	Reason   string
}

func (e *PreconditionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("stage %s: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("stage %s requires %s", e.Stage, e.Requires)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

// ParseError is returned when a model response cannot be decoded into the
// requested record.
type ParseError struct {
	Schema string
	Field  string
	Raw    string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse %s (field %s): %v", e.Schema, e.Field, e.Cause)
	}
	return fmt.Sprintf("parse %s: %v", e.Schema, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// ExternalCallError wraps a failure of the model or image service.
type ExternalCallError struct {
	Service    string
	Op         string
	StatusCode int
	Timeout    bool
	Cause      error
}

func (e *ExternalCallError) Error() string {
	msg := fmt.Sprintf("%s call %s failed", e.Service, e.Op)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Timeout {
		msg += " (timeout)"
	}
	return fmt.Sprintf("%s: %v", msg, e.Cause)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Cause
}

func (e *ExternalCallError) Is(target error) bool {
	return target == ErrExternalCall || (e.Timeout && target == ErrTimeout)
}

// NewModelError creates an ExternalCallError for the text model.
func NewModelError(op string, statusCode int, timeout bool, cause error) *ExternalCallError {
	return &ExternalCallError{Service: ServiceModel, Op: op, StatusCode: statusCode, Timeout: timeout, Cause: cause}
}

// NewImageError creates an ExternalCallError for the image service.
func NewImageError(op string, statusCode int, timeout bool, cause error) *ExternalCallError {
	return &ExternalCallError{Service: ServiceImage, Op: op, StatusCode: statusCode, Timeout: timeout, Cause: cause}
}

// BatchError reports the first failed item of a fan-out. The remaining
// results of the batch are discarded.
type BatchError struct {
	Stage string
	Key   string
	Total int
	Cause error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s batch of %d failed at %s: %v", e.Stage, e.Total, e.Key, e.Cause)
}

func (e *BatchError) Unwrap() error {
	return e.Cause
}

func (e *BatchError) Is(target error) bool {
	return target == ErrBatchFailed
}

// IsRetryable reports whether a whole stage may be attempted again after err.
// Precondition and programming errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrPrecondition) || errors.Is(err, ErrFieldAlreadySet) {
		return false
	}
	return errors.Is(err, ErrParse) || errors.Is(err, ErrExternalCall) || errors.Is(err, ErrBatchFailed)
}

// IsTimeout checks if an error is an external call timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
