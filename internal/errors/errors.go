package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeInvalidCredentials indicates a wrong email/password pair.
	ErrCodeInvalidCredentials ErrorCode = "invalid_credentials"
	// ErrCodeUserNotFound indicates the identity provider has no account for the email.
	ErrCodeUserNotFound ErrorCode = "user_not_found"
	// ErrCodeUserDisabled indicates the identity provider account is disabled.
	ErrCodeUserDisabled ErrorCode = "user_disabled"
	// ErrCodeMalformedEmail indicates the email address is syntactically invalid.
	ErrCodeMalformedEmail ErrorCode = "malformed_email"
	// ErrCodeEmailAlreadyInUse indicates sign-up with an email that already has an account.
	ErrCodeEmailAlreadyInUse ErrorCode = "email_already_in_use"
	// ErrCodeWeakPassword indicates the password does not meet the provider policy.
	ErrCodeWeakPassword ErrorCode = "weak_password"
	// ErrCodeNoActiveSession indicates an operation that needs a session was called without one.
	ErrCodeNoActiveSession ErrorCode = "no_active_session"
	// ErrCodeNotInSessionOnlyState indicates profile creation outside the session-only state.
	ErrCodeNotInSessionOnlyState ErrorCode = "not_in_session_only_state"
	// ErrCodeNotProvisioned indicates the backend has no profile for a valid session.
	ErrCodeNotProvisioned ErrorCode = "not_provisioned"
	// ErrCodeEmailUnverified indicates the backend refuses the session until the email is verified.
	ErrCodeEmailUnverified ErrorCode = "email_unverified"
	// ErrCodeTokenUnavailable indicates a bearer token could not be obtained from the session.
	ErrCodeTokenUnavailable ErrorCode = "token_unavailable"
	// ErrCodeUnauthorized indicates the backend rejected the bearer token.
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., profile already exists).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data (InvalidField when Field is set).
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeUnknown indicates an unclassified failure.
	ErrCodeUnknown ErrorCode = "unknown"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates an AppError with the given code and a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return New(ErrCodeNotFound, message)
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// NotInSessionOnlyState reports a profile creation attempt outside the session-only state.
func NotInSessionOnlyState(current string) *AppError {
	return Newf(ErrCodeNotInSessionOnlyState, "profile creation requires session-only state, snapshot is %s", current)
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotProvisioned checks if an error reports a missing backend profile.
func IsNotProvisioned(err error) bool {
	return isCode(err, ErrCodeNotProvisioned)
}

// IsEmailUnverified checks if an error reports an unverified email.
func IsEmailUnverified(err error) bool {
	return isCode(err, ErrCodeEmailUnverified)
}

// IsUnauthorized checks if an error is an Unauthorized error.
func IsUnauthorized(err error) bool {
	return isCode(err, ErrCodeUnauthorized)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool {
	return isCode(err, ErrCodeCanceled)
}

// IsNotInSessionOnlyState checks if an error is a profile-creation contract violation.
func IsNotInSessionOnlyState(err error) bool {
	return isCode(err, ErrCodeNotInSessionOnlyState)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
