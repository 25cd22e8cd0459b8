package logger

import (
	"context"
	"errors"

	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/66gu1/authsession/internal/infrastructure/contextx"
	"github.com/rs/zerolog"
)

const (
	FieldSecurityEvent = "security_event"
	FieldSubject       = "current_subject"
	FieldSessionID     = "current_session_id"
)

func Error(ctx context.Context, loggingErr error) *zerolog.Event {
	return log(ctx, apperr.LogLevelOf(loggingErr), loggingErr)
}

func Warn(ctx context.Context, loggingErr error) *zerolog.Event {
	return log(ctx, apperr.LogLevelWarn, loggingErr)
}

// Security logs at error level regardless of the error's own level and tags the entry with security_event.
func Security(ctx context.Context, event string, loggingErr error) *zerolog.Event {
	return log(ctx, apperr.LogLevelError, loggingErr).Str(FieldSecurityEvent, event)
}

func log(ctx context.Context, level apperr.LogLevel, loggingErr error) *zerolog.Event {
	ctx = context.WithoutCancel(ctx)
	event := zerolog.Ctx(ctx).WithLevel(toZerologLevel(level))

	subject, err := contextx.GetSubject(ctx)
	if err == nil {
		event = event.Str(FieldSubject, subject)
	}

	sessionID, err := contextx.GetSessionID(ctx)
	if err != nil {
		if !errors.Is(err, contextx.ErrNotFound) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("logger.log: GetSessionID")
		}
	} else {
		event = event.Str(FieldSessionID, sessionID.String())
	}

	if loggingErr != nil {
		event = event.Err(loggingErr)
	}

	return event
}

func toZerologLevel(level apperr.LogLevel) zerolog.Level {
	switch level {
	case apperr.LogLevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
