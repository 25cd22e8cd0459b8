package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/66gu1/authsession/internal/app/session"
	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/66gu1/authsession/internal/infrastructure/contextx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type verifierMock struct {
	mock.Mock
}

func (m *verifierMock) VerifyAccess(ctx context.Context, raw string) (session.Principal, error) {
	args := m.Called(ctx, raw)
	return args.Get(0).(session.Principal), args.Error(1)
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()
	principal := session.Principal{Subject: "u1", SessionID: uuid.New()}

	tests := []struct {
		name       string
		header     string
		setup      func(m *verifierMock)
		wantStatus int
		wantCode   apperr.Code
	}{
		{
			name:       "missing Authorization -> 401",
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperr.CodeUnauthorized,
		},
		{
			name:       "malformed Authorization (no Bearer) -> 401",
			header:     "Token abc",
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperr.CodeUnauthorized,
		},
		{
			name:   "expired token keeps its code",
			header: "Bearer token",
			setup: func(m *verifierMock) {
				m.On("VerifyAccess", mock.Anything, "token").Return(session.Principal{}, session.ErrTokenExpired())
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   session.CodeTokenExpired,
		},
		{
			name:   "refresh token as access token",
			header: "Bearer token",
			setup: func(m *verifierMock) {
				m.On("VerifyAccess", mock.Anything, "token").Return(session.Principal{}, session.ErrTokenTypeMismatch())
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   session.CodeTokenTypeMismatch,
		},
		{
			name:   "ok",
			header: "Bearer token",
			setup: func(m *verifierMock) {
				m.On("VerifyAccess", mock.Anything, "token").Return(principal, nil)
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			verifier := &verifierMock{}
			if tt.setup != nil {
				tt.setup(verifier)
			}

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject, err := contextx.GetSubject(r.Context())
				require.NoError(t, err)
				require.Equal(t, principal.Subject, subject)
				sid, err := contextx.GetSessionID(r.Context())
				require.NoError(t, err)
				require.Equal(t, principal.SessionID, sid)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(verifier)(next).ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				require.Equal(t, tt.wantCode, errorCode(t, rec))
			}
			verifier.AssertExpectations(t)
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	t.Parallel()
	principal := session.Principal{Subject: "u1", SessionID: uuid.New()}

	serve := func(verifier *verifierMock, header string) (*httptest.ResponseRecorder, string) {
		var subject string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, _ = contextx.GetSubject(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		OptionalAuthMiddleware(verifier)(next).ServeHTTP(rec, req)
		return rec, subject
	}

	t.Run("anonymous passes through", func(t *testing.T) {
		t.Parallel()
		verifier := &verifierMock{}
		rec, subject := serve(verifier, "")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Empty(t, subject)
		verifier.AssertNotCalled(t, "VerifyAccess", mock.Anything, mock.Anything)
	})

	t.Run("valid token sets subject", func(t *testing.T) {
		t.Parallel()
		verifier := &verifierMock{}
		verifier.On("VerifyAccess", mock.Anything, "token").Return(principal, nil)
		rec, subject := serve(verifier, "Bearer token")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "u1", subject)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		t.Parallel()
		verifier := &verifierMock{}
		verifier.On("VerifyAccess", mock.Anything, "token").Return(session.Principal{}, session.ErrTokenExpired())
		rec, _ := serve(verifier, "Bearer token")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, session.CodeTokenExpired, errorCode(t, rec))
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		t.Parallel()
		rec, _ := serve(&verifierMock{}, "Basic abc")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) apperr.Code {
	t.Helper()
	var body struct {
		Error struct {
			Code apperr.Code `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}
