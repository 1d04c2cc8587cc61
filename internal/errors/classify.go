package errors

import (
	"context"
	"errors"
)

// Kind groups error codes by how the UI layer presents them.
type Kind int

const (
	// KindUnknown covers unclassified failures.
	KindUnknown Kind = iota
	// KindIdentity covers identity-provider credential and format problems (inline form errors).
	KindIdentity
	// KindProvisioning covers backend provisioning problems (signup form errors).
	KindProvisioning
	// KindTransport covers transport and timeout problems (dismissible notice, retry).
	KindTransport
	// KindContract covers programming-contract violations.
	KindContract
)

// Classify folds an arbitrary error into an AppError.
// Context deadlines become Timeout, cancellations Canceled, AppErrors pass through,
// anything else becomes Unknown with the original error as cause.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{
			Code:    ErrCodeTimeout,
			Message: "request timed out",
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{
			Code:    ErrCodeCanceled,
			Message: "request was canceled",
			Cause:   err,
		}
	}

	return &AppError{
		Code:    ErrCodeUnknown,
		Message: "unexpected failure",
		Cause:   err,
	}
}

// KindOf reports the presentation group of err.
func KindOf(err error) Kind {
	switch GetCode(err) {
	case ErrCodeInvalidCredentials, ErrCodeUserNotFound, ErrCodeUserDisabled,
		ErrCodeMalformedEmail, ErrCodeEmailAlreadyInUse, ErrCodeWeakPassword,
		ErrCodeNoActiveSession:
		return KindIdentity
	case ErrCodeValidation, ErrCodeConflict:
		return KindProvisioning
	case ErrCodeTimeout, ErrCodeCanceled, ErrCodeTokenUnavailable, ErrCodeUnauthorized:
		return KindTransport
	case ErrCodeNotInSessionOnlyState:
		return KindContract
	default:
		return KindUnknown
	}
}

// Retryable reports whether the UI should offer a retry affordance for err.
func Retryable(err error) bool {
	return KindOf(err) == KindTransport
}
