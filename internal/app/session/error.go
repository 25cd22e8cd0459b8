package session

import (
	"github.com/66gu1/authsession/internal/infrastructure/apperr"
)

const (
	FieldSessionID    apperr.Field = "session_id"
	FieldSubject      apperr.Field = "subject"
	FieldSession      apperr.Field = "session"
	FieldRefreshToken apperr.Field = "refresh_token"
	FieldAccessToken  apperr.Field = "access_token"
	FieldGeneration   apperr.Field = "generation"
)

const (
	CodeTokenMalformed        apperr.Code = "token/malformed"
	CodeTokenInvalidSignature apperr.Code = "token/invalid_signature"
	CodeTokenTypeMismatch     apperr.Code = "token/type_mismatch"
	CodeTokenExpired          apperr.Code = "token/expired"

	CodeSessionNotFound apperr.Code = "session/not_found"
	CodeSessionRevoked  apperr.Code = "session/revoked"
	CodeSessionExpired  apperr.Code = "session/expired"
	CodeInvalidToken    apperr.Code = "session/invalid_token"
	CodeReplayDetected  apperr.Code = "session/replay_detected"
	CodeConflict        apperr.Code = "session/conflict"
)

func ErrTokenMalformed() error {
	return apperr.New("token is malformed", CodeTokenMalformed, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrTokenInvalidSignature() error {
	return apperr.New("token signature is invalid", CodeTokenInvalidSignature, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrTokenTypeMismatch() error {
	return apperr.New("unexpected token type", CodeTokenTypeMismatch, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrTokenExpired() error {
	return apperr.New("token has expired", CodeTokenExpired, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrSessionNotFound() error {
	return apperr.New("session not found", CodeSessionNotFound, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrSessionRevoked() error {
	return apperr.New("session has been revoked", CodeSessionRevoked, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrSessionExpired() error {
	return apperr.New("session has expired", CodeSessionExpired, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

func ErrInvalidToken() error {
	return apperr.New("refresh token is not valid for this session", CodeInvalidToken, apperr.ClassUnauthorized, apperr.LogLevelWarn)
}

// ErrReplayDetected is a security event: the session it refers to has been revoked.
func ErrReplayDetected() error {
	return apperr.New("refresh token replay detected", CodeReplayDetected, apperr.ClassUnauthorized, apperr.LogLevelError)
}

// ErrConflict is the store's compare-and-swap failure. Refresh never returns it.
func ErrConflict() error {
	return apperr.New("session was modified concurrently", CodeConflict, apperr.ClassConflict, apperr.LogLevelWarn)
}
