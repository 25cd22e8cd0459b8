package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/stretchr/testify/require"
)

type decodeInput struct {
	Secret string `json:"secret"`
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     error
	}{
		{
			name:        "ok",
			contentType: "application/json; charset=utf-8",
			body:        `{"secret":"s3cret"}`,
		},
		{
			name:    "missing content type",
			body:    `{"secret":"s3cret"}`,
			wantErr: apperr.ErrBadRequest(),
		},
		{
			name:        "form body",
			contentType: "application/x-www-form-urlencoded",
			body:        "secret=s3cret",
			wantErr:     apperr.ErrBadRequest(),
		},
		{
			name:        "unknown field",
			contentType: "application/json",
			body:        `{"secret":"s3cret","admin":true}`,
			wantErr:     apperr.ErrBadRequest(),
		},
		{
			name:        "wrong type",
			contentType: "application/json",
			body:        `{"secret":5}`,
			wantErr: apperr.ErrBadRequest().
				WithViolation(apperr.Violation{Field: "secret", Rule: apperr.RuleInvalidFormat}),
		},
		{
			name:        "two objects",
			contentType: "application/json",
			body:        `{"secret":"a"}{"secret":"b"}`,
			wantErr:     apperr.ErrBadRequest(),
		},
		{
			name:        "empty body",
			contentType: "application/json",
			wantErr:     apperr.ErrBadRequest(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			var input decodeInput
			err := DecodeJSON(req, &input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "s3cret", input.Secret)
		})
	}
}

func TestDecodeJSON_HidesSecretsInDetail(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"secret":"hunter2`))
	req.Header.Set("Content-Type", "application/json")

	err := DecodeJSON(req, &decodeInput{})
	require.ErrorIs(t, err, apperr.ErrBadRequest())
	require.NotContains(t, err.Error(), "hunter2")
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()

	WriteJSON(t.Context(), rec, http.StatusOK, map[string]string{"access_token": "a"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"access_token":"a"}`, rec.Body.String())
}

func TestMaxBodyBytes(t *testing.T) {
	t.Parallel()
	decoding := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := DecodeJSON(r, &decodeInput{}); err != nil {
			ReturnError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	handler := MaxBodyBytes(32)(decoding)
	large := `{"secret":"` + strings.Repeat("x", 64) + `"}`

	serve := func(body string, knownLength bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if !knownLength {
			req.ContentLength = -1
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}
	code := func(rec *httptest.ResponseRecorder) apperr.Code {
		var body struct {
			Error struct {
				Code apperr.Code `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		return body.Error.Code
	}

	require.Equal(t, http.StatusNoContent, serve(`{"secret":"x"}`, true).Code)

	rec := serve(large, true)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, "close", rec.Header().Get("Connection"))
	require.Equal(t, apperr.CodeBodyTooLarge, code(rec))

	rec = serve(large, false)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, apperr.CodeBodyTooLarge, code(rec))
}
