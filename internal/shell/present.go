package shell

import (
	"errors"
	"fmt"

	apperrors "github.com/festa-portal/portal-client/internal/errors"
)

var identityMessages = map[apperrors.ErrorCode]string{
	apperrors.ErrCodeInvalidCredentials: "the email or password is incorrect",
	apperrors.ErrCodeUserNotFound:       "no account exists for that email",
	apperrors.ErrCodeUserDisabled:       "this account has been disabled",
	apperrors.ErrCodeMalformedEmail:     "the email address is not valid",
	apperrors.ErrCodeEmailAlreadyInUse:  "an account already exists for that email",
	apperrors.ErrCodeWeakPassword:       "the password is too weak",
	apperrors.ErrCodeNoActiveSession:    "you are not signed in",
}

// presentError renders err the way its presentation group asks for.
func presentError(err error) string {
	code := apperrors.GetCode(err)
	switch apperrors.KindOf(err) {
	case apperrors.KindIdentity:
		if msg, ok := identityMessages[code]; ok {
			return "error: " + msg
		}
		return "error: " + appMessage(err)
	case apperrors.KindProvisioning:
		if field := apperrors.GetField(err); field != "" {
			return fmt.Sprintf("invalid %s: %s", field, appMessage(err))
		}
		return "error: " + appMessage(err)
	case apperrors.KindTransport:
		return fmt.Sprintf("notice: %s, please try again", appMessage(err))
	case apperrors.KindContract:
		return "internal error: " + appMessage(err)
	default:
		return "error: " + err.Error()
	}
}

func appMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
