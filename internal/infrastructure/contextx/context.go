package contextx

import (
	"context"
	"errors"
	"fmt"

	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/google/uuid"
)

var ErrNotFound = fmt.Errorf("not found in context")

type contextKey string

func (key contextKey) String() string {
	return string(key)
}

const (
	ContextKeySubject   = contextKey("subject")
	ContextKeySessionID = contextKey("session_id")
)

func getValue[T any](ctx context.Context, key contextKey) (T, error) {
	var zero T

	value := ctx.Value(key)
	if value == nil {
		return zero, fmt.Errorf("key %v: %w", key, ErrNotFound)
	}

	v, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("key %v: wrong format in context, got %T, want %T", key, value, zero)
	}

	return v, nil
}

func GetSubject(ctx context.Context) (string, error) {
	subject, err := getValue[string](ctx, ContextKeySubject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = apperr.ErrUnauthorized().WithDetail("current subject not found in context")
		}
		return "", fmt.Errorf("contextx.GetSubject: %w", err)
	}
	if subject == "" {
		return "", fmt.Errorf("contextx.GetSubject: subject is empty")
	}

	return subject, nil
}

func GetSessionID(ctx context.Context) (uuid.UUID, error) {
	sessionID, err := getValue[uuid.UUID](ctx, ContextKeySessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("contextx.GetSessionID: %w", err)
	}

	return sessionID, nil
}

func SetSubject(ctx context.Context, subject string) context.Context {
	return SetToContext(ctx, ContextKeySubject, subject)
}

func SetSessionID(ctx context.Context, sessionID uuid.UUID) context.Context {
	return SetToContext(ctx, ContextKeySessionID, sessionID)
}

func SetToContext[T any](ctx context.Context, key contextKey, value T) context.Context {
	return context.WithValue(ctx, key, value)
}
