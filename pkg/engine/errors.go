package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a failure of the transport rather than of
	// the ledger state, such as a timeout or a dropped connection.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassConflict indicates the ledger rejected a call because its
	// state already differs from what the call expects.
	// Examples: an initializer that already ran, a role that is already set.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error that aborts the run.
	// Examples: missing configuration, link overflow, failed deployment.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is the error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the resource ID that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Resource != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (resource=%s, operation=%s)", msg, e.Resource, e.Operation)
	} else if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource=%s)", msg, e.Resource)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newError(class ErrorClass, code, message string, err error) *EngineError {
	return &EngineError{
		Class:   class,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return newError(ErrorClassTransient, "", message, err)
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *EngineError {
	return newError(ErrorClassConflict, "", message, err)
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return newError(ErrorClassPermanent, "", message, err)
}

// NewConfigError reports a missing required value or a failed safety
// cross-check. It is raised before any ledger-mutating call.
func NewConfigError(message string, err error) *EngineError {
	return newError(ErrorClassPermanent, ErrCodeConfig, message, err)
}

// NewLinkOverflowError reports a link reference outside the object code.
func NewLinkOverflowError(message string, err error) *EngineError {
	return newError(ErrorClassPermanent, ErrCodeLinkOverflow, message, err)
}

// NewDeploymentFailedError reports a creation call without a resulting address.
func NewDeploymentFailedError(message string, err error) *EngineError {
	return newError(ErrorClassPermanent, ErrCodeDeploymentFailed, message, err)
}

// NewRecoverableRevert reports a rejected best-effort call. It is logged, never returned.
func NewRecoverableRevert(message string, err error) *EngineError {
	return newError(ErrorClassConflict, ErrCodeRecoverableRevert, message, err)
}

// NewProbeUnavailableError reports a read-only probe that could not be answered.
func NewProbeUnavailableError(message string, err error) *EngineError {
	return newError(ErrorClassTransient, ErrCodeProbeUnavailable, message, err)
}

// NewWiringPartialFailure reports a role wiring step that failed after the
// sequence started.
func NewWiringPartialFailure(message string, err error) *EngineError {
	return newError(ErrorClassPermanent, ErrCodeWiringPartialFailure, message, err)
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resourceID string) *EngineError {
	e.Resource = resourceID
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// CodeOf returns the code of the first EngineError in the chain, or "".
func CodeOf(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Error codes.
const (
	ErrCodeConfig               = "CONFIG_ERROR"
	ErrCodeLinkOverflow         = "LINK_OVERFLOW"
	ErrCodeInvalidLink          = "INVALID_LINK_REFERENCE"
	ErrCodeUnresolvedLink       = "UNRESOLVED_LINK"
	ErrCodeArtifact             = "ARTIFACT_ERROR"
	ErrCodeDeploymentFailed     = "DEPLOYMENT_FAILED"
	ErrCodeInitializeFailed     = "INITIALIZE_FAILED"
	ErrCodeRecoverableRevert    = "RECOVERABLE_REVERT"
	ErrCodeProbeUnavailable     = "PROBE_UNAVAILABLE"
	ErrCodeWiringPartialFailure = "WIRING_PARTIAL_FAILURE"
	ErrCodeAdminTransfer        = "ADMIN_TRANSFER_FAILED"
	ErrCodeTransport            = "TRANSPORT_ERROR"
	ErrCodeEncoding             = "ENCODING_ERROR"
	ErrCodePersistence          = "PERSISTENCE_ERROR"
)
