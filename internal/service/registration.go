package service

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
)

// registrationForm mirrors RegistrationPayload with validation rules attached,
// keeping the domain type free of tags it does not own.
type registrationForm struct {
	Name        registrationName `json:"name"`
	PhoneNumber string           `json:"phone_number" validate:"required,phone"`
	Category    string           `json:"category"     validate:"required,category"`
}

type registrationName struct {
	First     string `json:"first"      validate:"required,max=64"`
	Last      string `json:"last"       validate:"required,max=64"`
	FirstKana string `json:"first_kana" validate:"required,max=64,kana"`
	LastKana  string `json:"last_kana"  validate:"required,max=64,kana"`
}

var (
	registrationValidator     *validator.Validate
	registrationValidatorOnce sync.Once
)

func getRegistrationValidator() *validator.Validate {
	registrationValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		// Registration errors are programming errors in the tag set; fail fast.
		mustRegister(v, "kana", validateKana)
		mustRegister(v, "phone", validatePhone)
		mustRegister(v, "category", validateCategory)
		registrationValidator = v
	})
	return registrationValidator
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err) //nolint:forbidigo // static validator setup
	}
}

// ValidateRegistration checks a registration payload before it is sent to the
// backend. The first failing field is reported as a validation AppError whose
// Field is the dotted JSON path (for example "name.first_kana").
func ValidateRegistration(in domainauth.RegistrationPayload) error {
	form := registrationForm{
		Name: registrationName{
			First:     strings.TrimSpace(in.Name.First),
			Last:      strings.TrimSpace(in.Name.Last),
			FirstKana: strings.TrimSpace(in.Name.FirstKana),
			LastKana:  strings.TrimSpace(in.Name.LastKana),
		},
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Category:    string(in.Category),
	}

	err := getRegistrationValidator().Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid registration")
	}

	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	return apperrors.ValidationField(field, validationMessage(field, fe))
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(namespace string) string {
	_, rest, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	return rest
}

func validationMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	case "kana":
		return field + " must be written in kana"
	case "phone":
		return field + " must be a phone number of 10 or 11 digits"
	case "category":
		return field + " must be one of undergraduate_student, graduate_student, academic_staff, other"
	default:
		return field + " is invalid"
	}
}

func validateKana(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		switch {
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
		case r == 'ー' || r == ' ' || r == '　' || r == '・':
		default:
			return false
		}
	}
	return true
}

func validatePhone(fl validator.FieldLevel) bool {
	digits := 0
	for i, r := range fl.Field().String() {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-' && i > 0:
		case r == '+' && i == 0:
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 11
}

func validateCategory(fl validator.FieldLevel) bool {
	return domainauth.Category(fl.Field().String()).IsValid()
}
