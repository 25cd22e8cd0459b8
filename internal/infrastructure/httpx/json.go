package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/66gu1/authsession/internal/infrastructure/logger"
)

// WriteJSON encodes v as the response body. Responses may carry tokens, so
// they are never cached.
func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(ctx, err).Msg("httpx.WriteJSON: failed to encode JSON")
	}
}

// DecodeJSON reads exactly one application/json object into v. Unknown
// fields are rejected. Decoder messages are kept out of the error detail since
// they may quote submitted secrets.
func DecodeJSON(r *http.Request, v any) error {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		return fmt.Errorf("httpx.DecodeJSON: %w",
			apperr.ErrBadRequest().WithDetail("Content-Type must be application/json"))
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err = dec.Decode(v); err != nil {
		return fmt.Errorf("httpx.DecodeJSON: %w", decodeError(err))
	}
	if err = dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("httpx.DecodeJSON: %w",
			apperr.ErrBadRequest().WithDetail("body must hold a single JSON object"))
	}
	return nil
}

func decodeError(err error) error {
	var (
		tooLarge  *http.MaxBytesError
		typeError *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		return apperr.ErrBodyTooLarge(tooLarge.Limit)
	case errors.As(err, &typeError):
		return apperr.ErrBadRequest().
			WithDetail(fmt.Sprintf("field %q must be %s", typeError.Field, typeError.Type)).
			WithViolation(apperr.Violation{Field: apperr.Field(typeError.Field), Rule: apperr.RuleInvalidFormat})
	case errors.Is(err, io.EOF):
		return apperr.ErrBadRequest().WithDetail("empty body")
	default:
		return apperr.ErrBadRequest().WithDetail("malformed JSON body")
	}
}
