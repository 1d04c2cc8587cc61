package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotProvisioned,
				Message: "profile not provisioned",
			},
			want: "profile not provisioned",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeUnknown,
				Message: "fetch profile",
				Cause:   errors.New("connection reset"),
			},
			want: "fetch profile: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeTokenUnavailable, "get token")

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through AppError")
	}
}

func TestWrap_NilError(t *testing.T) {
	if got := Wrap(nil, ErrCodeUnknown, "x"); got != nil {
		t.Errorf("Wrap(nil) = %v, want nil", got)
	}
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	base := New(ErrCodeNotProvisioned, "no profile")
	wrapped := fmt.Errorf("get profile: %w", base)

	if !IsNotProvisioned(wrapped) {
		t.Error("IsNotProvisioned should match wrapped AppError")
	}
	if IsEmailUnverified(wrapped) {
		t.Error("IsEmailUnverified should not match not_provisioned")
	}
	if GetCode(wrapped) != ErrCodeNotProvisioned {
		t.Errorf("GetCode() = %q", GetCode(wrapped))
	}
	if GetCode(errors.New("plain")) != "" {
		t.Error("GetCode of plain error should be empty")
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("phone_number", "invalid phone number")
	if !IsValidation(err) {
		t.Fatal("expected validation error")
	}
	if GetField(err) != "phone_number" {
		t.Errorf("GetField() = %q, want phone_number", GetField(err))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "deadline", err: fmt.Errorf("get: %w", context.DeadlineExceeded), want: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, want: ErrCodeCanceled},
		{name: "app error passthrough", err: Conflict("exists"), want: ErrCodeConflict},
		{name: "plain", err: errors.New("boom"), want: ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(Classify(tt.err)); got != tt.want {
				t.Errorf("Classify() code = %q, want %q", got, tt.want)
			}
		})
	}

	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want Kind
	}{
		{ErrCodeInvalidCredentials, KindIdentity},
		{ErrCodeWeakPassword, KindIdentity},
		{ErrCodeValidation, KindProvisioning},
		{ErrCodeConflict, KindProvisioning},
		{ErrCodeTimeout, KindTransport},
		{ErrCodeNotInSessionOnlyState, KindContract},
		{ErrCodeUnknown, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := KindOf(New(tt.code, "x")); got != tt.want {
				t.Errorf("KindOf(%s) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}

	if !Retryable(New(ErrCodeTimeout, "slow")) {
		t.Error("timeouts should be retryable")
	}
	if Retryable(New(ErrCodeConflict, "exists")) {
		t.Error("conflicts should not be retryable")
	}
}
