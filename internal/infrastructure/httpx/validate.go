package httpx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Violations report the JSON field name the client sent.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks v against its `validate` struct tags and converts failures
// into a bad request carrying one violation per field.
func Validate(v any) error {
	err := engine().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("httpx.Validate: %w", err)
	}

	appErr := apperr.ErrBadRequest().WithDetail(verrs.Error())
	for _, fe := range verrs {
		v := apperr.Violation{Field: apperr.Field(fe.Field()), Rule: toRule(fe.Tag())}
		if fe.Param() != "" {
			v.Params = map[string]any{fe.Tag(): fe.Param()}
		}
		appErr = appErr.WithViolation(v)
	}

	return fmt.Errorf("httpx.Validate: %w", appErr)
}

func toRule(tag string) apperr.Rule {
	switch tag {
	case "required", "required_without", "required_with":
		return apperr.RuleRequired
	case "max", "lte":
		return apperr.RuleTooLong
	case "min", "gte":
		return apperr.RuleTooShort
	case "excluded_with":
		return apperr.RuleInvalidState
	default:
		return apperr.RuleInvalidFormat
	}
}
