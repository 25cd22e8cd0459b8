package credential

import "github.com/66gu1/authsession/internal/infrastructure/apperr"

const (
	FieldIdentifier apperr.Field = "identifier"
	FieldSubject    apperr.Field = "subject"
	FieldSecret     apperr.Field = "secret"
)

const (
	CodeAuthenticationFailed apperr.Code = "auth/authentication_failed"
	CodeNotFound             apperr.Code = "credential/not_found"
	CodeDuplicate            apperr.Code = "credential/duplicate"
	CodeValidationFailed     apperr.Code = "credential/validation_failed"
)

func ErrAuthenticationFailed() error {
	return apperr.New("invalid identifier or secret", CodeAuthenticationFailed, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrNotFound() error {
	return apperr.New("credential not found", CodeNotFound, apperr.ClassNotFound, apperr.LogLevelWarn)
}

func ErrDuplicate() error {
	return apperr.New("credential already exists", CodeDuplicate, apperr.ClassConflict, apperr.LogLevelWarn)
}

func ErrSecretTooShort(minLength int) error {
	return apperr.New("secret is too short", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field:  FieldSecret,
			Rule:   apperr.RuleTooShort,
			Params: map[string]any{"min": minLength},
		})
}

func ErrSecretTooLong(maxLength int) error {
	return apperr.New("secret is too long", CodeValidationFailed, apperr.ClassBadRequest, apperr.LogLevelWarn).
		WithViolation(apperr.Violation{
			Field:  FieldSecret,
			Rule:   apperr.RuleTooLong,
			Params: map[string]any{"max": maxLength},
		})
}
