package apperr

import (
	"errors"
	"fmt"
	"slices"
)

const (
	CodeBadRequest      Code = "core/bad_request"
	CodeUnauthorized    Code = "core/unauthorized"
	CodeForbidden       Code = "core/forbidden"
	CodeTooManyRequests Code = "core/too_many_requests"
	CodeBodyTooLarge    Code = "core/body_too_large"
	CodeInternal        Code = "core/internal_error"
)

const (
	BadRequestMsg      = "Bad request"
	UnauthorizedMsg    = "Unauthorized"
	ForbiddenMsg       = "Forbidden"
	TooManyRequestsMsg = "Too many requests"
	BodyTooLargeMsg    = "Request body too large"
	InternalMsg        = "Internal server error"
)

func ErrBadRequest() *appError {
	return New(BadRequestMsg, CodeBadRequest, ClassBadRequest, LogLevelWarn)
}

func ErrUnauthorized() *appError {
	return New(UnauthorizedMsg, CodeUnauthorized, ClassUnauthorized, LogLevelWarn)
}

func ErrForbidden() *appError {
	return New(ForbiddenMsg, CodeForbidden, ClassForbidden, LogLevelWarn)
}

func ErrTooManyRequests() *appError {
	return New(TooManyRequestsMsg, CodeTooManyRequests, ClassTooManyRequests, LogLevelWarn)
}

func ErrBodyTooLarge(limit int64) *appError {
	return New(BodyTooLargeMsg, CodeBodyTooLarge, ClassBodyTooLarge, LogLevelWarn).
		WithDetail(fmt.Sprintf("request body exceeds %d bytes", limit))
}

func ErrNilUUID(field Field) *appError {
	return ErrBadRequest().
		WithDetail(fmt.Sprintf("%s cannot be nil", field.String())).
		WithViolation(Violation{Field: field, Rule: RuleRequired})
}

func ErrEmpty(field Field) *appError {
	return ErrBadRequest().
		WithDetail(fmt.Sprintf("%s cannot be empty", field.String())).
		WithViolation(Violation{Field: field, Rule: RuleRequired})
}

// appError is used for all application-level errors that are safe to show to the caller (e.g. 400, 401, 403).
// For internal server errors (500), use fmt.Errorf and handle them separately to avoid exposing internal details to the client.
type appError struct {
	Message    string      `json:"message"` // Message for user
	Code       Code        `json:"code"`
	Violations []Violation `json:"violations,omitempty"`
	class      Class
	logLevel   LogLevel
	detail     string // detail for logs
}

func New(message string, code Code, class Class, logLevel LogLevel) *appError {
	return &appError{
		Message:  message,
		class:    class,
		logLevel: logLevel,
		Code:     code,
		detail:   message,
	}
}

func (e *appError) WithUserMessage(message string) *appError {
	e.Message = message
	return e
}

func (e *appError) WithDetail(detail string) *appError {
	e.detail = detail
	return e
}

func (e *appError) WithViolation(v Violation) *appError {
	e.Violations = append(e.Violations, v)
	return e
}

func (e *appError) Error() string {
	return e.detail
}

// Is matches by code only when the target carries no violations, so callers can
// test for a failure kind without reproducing its details.
func (e *appError) Is(target error) bool {
	t, ok := target.(*appError)
	if !ok || e.Code != t.Code {
		return false
	}
	if len(t.Violations) == 0 {
		return true
	}

	return slices.EqualFunc(e.Violations, t.Violations, func(a, b Violation) bool {
		return a.Field == b.Field && a.Rule == b.Rule
	})
}

type Violation struct {
	Field  Field          `json:"field"`
	Rule   Rule           `json:"rule"`
	Params map[string]any `json:"params,omitempty"`
}

type Field string

func (f Field) String() string { return string(f) }

const (
	FieldRequest Field = "request"
)

type Code string

func (c Code) String() string { return string(c) }

type Class uint8

const (
	ClassInternal        Class = 1
	ClassBadRequest      Class = 2
	ClassNotFound        Class = 3
	ClassUnauthorized    Class = 4
	ClassForbidden       Class = 5
	ClassConflict        Class = 6
	ClassTooManyRequests Class = 7
	ClassBodyTooLarge    Class = 8
)

type LogLevel int

const (
	LogLevelError LogLevel = 0
	LogLevelWarn  LogLevel = 1
)

func ClassOf(err error) Class {
	var ae *appError
	if errors.As(err, &ae) {
		return ae.class
	}
	return ClassInternal
}

func CodeOf(err error) Code {
	var ae *appError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

func LogLevelOf(err error) LogLevel {
	var ae *appError
	if errors.As(err, &ae) {
		return ae.logLevel
	}
	return LogLevelError
}

func FromError(err error) *appError {
	var ae *appError
	if errors.As(err, &ae) {
		return ae
	}
	return &appError{
		Message:  InternalMsg,
		Code:     CodeInternal,
		class:    ClassInternal,
		logLevel: LogLevelError,
		detail:   err.Error(),
	}
}
