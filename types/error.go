package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Orchestration error codes. Everything except NO_AGENTS_AVAILABLE is
// absorbed inside the core; callers only ever see that single fatal code.
const (
	ErrAgentSkipped      ErrorCode = "AGENT_SKIPPED"      // participant unresolvable, round continues
	ErrJudgeDefaulted    ErrorCode = "JUDGE_DEFAULTED"    // convergence judge failed, treated as continue
	ErrFallbackEngaged   ErrorCode = "FALLBACK_ENGAGED"   // primary loop failed, fixed-count rerun
	ErrSummaryDegraded   ErrorCode = "SUMMARY_DEGRADED"   // summarizer failed, fixed fallback returned
	ErrNoAgents          ErrorCode = "NO_AGENTS_AVAILABLE" // zero participants resolved (fatal)
	ErrSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrThreadCreation    ErrorCode = "THREAD_CREATION"
	ErrProviderFailure   ErrorCode = "PROVIDER_FAILURE"
	ErrInvalidRunRequest ErrorCode = "INVALID_RUN_REQUEST"
)

// Error represents a structured error with code, message, and cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches two structured errors by code, so sentinel values compare with
// errors.Is regardless of cause and message detail.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// ErrNoAgentsAvailable is the single fatal error the orchestrator surfaces:
// none of the requested participants resolved to a usable responder.
var ErrNoAgentsAvailable = NewError(ErrNoAgents, "no agents available for group chat")

// GetErrorCode extracts the error code from an error, or "" if it is not a
// structured Error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
