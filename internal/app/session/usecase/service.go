package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/66gu1/authsession/internal/app/credential"
	"github.com/66gu1/authsession/internal/app/session"
	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/66gu1/authsession/internal/infrastructure/contextx"
	"github.com/66gu1/authsession/internal/infrastructure/logger"
	"github.com/66gu1/authsession/internal/infrastructure/metrics"
	"github.com/66gu1/authsession/internal/infrastructure/secure"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	securityEventReplay         = "refresh_replay"
	securityEventForeignSession = "foreign_session_revoke"
	securityEventStaleSessions  = "password_changed_sessions_active"
)

const (
	revokeRetries    = 2
	revokeRetryDelay = 50 * time.Millisecond
)

type LoginCmd struct {
	Identifier string
	Secret     []byte `json:"-"`
}

// LogoutCmd identifies the session either directly or through one of its refresh tokens.
type LogoutCmd struct {
	SessionID    uuid.UUID
	RefreshToken string `json:"-"`
}

type ChangePasswordCmd struct {
	OldSecret []byte `json:"-"`
	NewSecret []byte `json:"-"`
}

type Core interface {
	Login(ctx context.Context, subject string) (session.Tokens, error)
	Refresh(ctx context.Context, rawRefreshToken string) (session.Tokens, error)
	Logout(ctx context.Context, sessionID uuid.UUID) error
	LogoutWithRefreshToken(ctx context.Context, rawRefreshToken string) (uuid.UUID, error)
	RevokeAllSessions(ctx context.Context, subject string) error
	VerifyAccess(rawAccessToken string) (session.Principal, error)
	GetSession(ctx context.Context, id uuid.UUID) (session.Session, error)
	ListSessions(ctx context.Context, subject string) ([]session.Session, error)
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

type CredentialCore interface {
	Verify(ctx context.Context, identifier string, secret []byte) (string, error)
	ChangeSecret(ctx context.Context, cmd credential.ChangeSecretCmd) error
}

type Metrics interface {
	Login(result string)
	Refresh(result string)
	Replay()
}

type Service struct {
	core           Core
	credentialCore CredentialCore
	metrics        Metrics
}

func NewService(core Core, credentialCore CredentialCore, metrics Metrics) *Service {
	if core == nil || credentialCore == nil || metrics == nil {
		panic("nil dependency")
	}
	return &Service{
		core:           core,
		credentialCore: credentialCore,
		metrics:        metrics,
	}
}

func (s *Service) Login(ctx context.Context, cmd LoginCmd) (session.Tokens, error) {
	defer secure.ZeroBytes(cmd.Secret)

	subject, err := s.credentialCore.Verify(ctx, cmd.Identifier, cmd.Secret)
	if err != nil {
		s.metrics.Login(metrics.ResultFailure)
		logger.Error(ctx, err).
			Str(credential.FieldIdentifier.String(), cmd.Identifier).
			Msg("session.service.Login.credentialCore.Verify")
		return session.Tokens{}, fmt.Errorf("session.service.Login: %w", err)
	}

	tokens, err := s.core.Login(ctx, subject)
	if err != nil {
		s.metrics.Login(metrics.ResultFailure)
		logger.Error(ctx, err).
			Str(session.FieldSubject.String(), subject).
			Msg("session.service.Login.core.Login")
		return session.Tokens{}, fmt.Errorf("session.service.Login: %w", err)
	}

	s.metrics.Login(metrics.ResultSuccess)
	return tokens, nil
}

func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (session.Tokens, error) {
	tokens, err := s.core.Refresh(ctx, rawRefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrReplayDetected()) {
			s.metrics.Refresh(metrics.ResultReplay)
			s.metrics.Replay()
			logger.Security(ctx, securityEventReplay, err).
				Msg("session.service.Refresh.core.Refresh: session revoked")
		} else {
			s.metrics.Refresh(metrics.ResultFailure)
			logger.Error(ctx, err).Msg("session.service.Refresh.core.Refresh")
		}
		return session.Tokens{}, fmt.Errorf("session.service.Refresh: %w", err)
	}

	s.metrics.Refresh(metrics.ResultSuccess)
	return tokens, nil
}

// Logout revokes a session given by one of its refresh tokens, or by id for
// an authenticated caller who owns it. Unknown, revoked or unverifiable
// sessions are not an error.
func (s *Service) Logout(ctx context.Context, cmd LogoutCmd) error {
	if cmd.RefreshToken != "" {
		if _, err := s.core.LogoutWithRefreshToken(ctx, cmd.RefreshToken); err != nil {
			if apperr.ClassOf(err) == apperr.ClassInternal {
				logger.Error(ctx, err).Msg("session.service.Logout.core.LogoutWithRefreshToken")
				return fmt.Errorf("session.service.Logout: %w", err)
			}
			logger.Warn(ctx, err).Msg("session.service.Logout.core.LogoutWithRefreshToken: ignored")
		}
		return nil
	}
	if cmd.SessionID == uuid.Nil {
		return nil
	}

	if err := s.revokeOwn(ctx, cmd.SessionID); err != nil {
		return fmt.Errorf("session.service.Logout: %w", err)
	}
	return nil
}

func (s *Service) VerifyAccess(ctx context.Context, rawAccessToken string) (session.Principal, error) {
	principal, err := s.core.VerifyAccess(rawAccessToken)
	if err != nil {
		logger.Warn(ctx, err).Msg("session.service.VerifyAccess.core.VerifyAccess")
		return session.Principal{}, fmt.Errorf("session.service.VerifyAccess: %w", err)
	}
	return principal, nil
}

func (s *Service) ListSessions(ctx context.Context) ([]session.Session, error) {
	subject, err := contextx.GetSubject(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("session.service.ListSessions.contextx.GetSubject")
		return nil, fmt.Errorf("session.service.ListSessions: %w", err)
	}

	sessions, err := s.core.ListSessions(ctx, subject)
	if err != nil {
		logger.Error(ctx, err).Msg("session.service.ListSessions.core.ListSessions")
		return nil, fmt.Errorf("session.service.ListSessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession revokes one of the caller's own sessions.
func (s *Service) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := s.revokeOwn(ctx, id); err != nil {
		return fmt.Errorf("session.service.DeleteSession: %w", err)
	}
	return nil
}

// revokeOwn revokes id if it belongs to the subject in ctx. A missing session
// counts as revoked.
func (s *Service) revokeOwn(ctx context.Context, id uuid.UUID) error {
	subject, err := contextx.GetSubject(ctx)
	if err != nil {
		logger.Warn(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.revokeOwn.contextx.GetSubject")
		return fmt.Errorf("revokeOwn: %w", err)
	}

	sess, err := s.core.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound()) {
			return nil
		}
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.revokeOwn.core.GetSession")
		return fmt.Errorf("revokeOwn: %w", err)
	}
	if sess.Subject != subject {
		err = apperr.ErrForbidden().WithDetail("session belongs to another subject")
		logger.Security(ctx, securityEventForeignSession, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.revokeOwn")
		return fmt.Errorf("revokeOwn: %w", err)
	}

	if err = s.core.Logout(ctx, id); err != nil {
		logger.Error(ctx, err).
			Str(session.FieldSessionID.String(), id.String()).
			Msg("session.service.revokeOwn.core.Logout")
		return fmt.Errorf("revokeOwn: %w", err)
	}
	return nil
}

func (s *Service) DeleteAllSessions(ctx context.Context) error {
	subject, err := contextx.GetSubject(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("session.service.DeleteAllSessions.contextx.GetSubject")
		return fmt.Errorf("session.service.DeleteAllSessions: %w", err)
	}

	if err = s.core.RevokeAllSessions(ctx, subject); err != nil {
		logger.Error(ctx, err).Msg("session.service.DeleteAllSessions.core.RevokeAllSessions")
		return fmt.Errorf("session.service.DeleteAllSessions: %w", err)
	}
	return nil
}

// ChangePassword replaces the caller's secret and revokes every session of the
// subject, including the current one. A failing revoke is retried; if it still
// fails the new secret stays in place and the error is returned.
func (s *Service) ChangePassword(ctx context.Context, cmd ChangePasswordCmd) error {
	defer secure.ZeroBytes(cmd.OldSecret)
	defer secure.ZeroBytes(cmd.NewSecret)

	subject, err := contextx.GetSubject(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("session.service.ChangePassword.contextx.GetSubject")
		return fmt.Errorf("session.service.ChangePassword: %w", err)
	}

	err = s.credentialCore.ChangeSecret(ctx, credential.ChangeSecretCmd{
		Subject:   subject,
		OldSecret: cmd.OldSecret,
		NewSecret: cmd.NewSecret,
	})
	if err != nil {
		logger.Error(ctx, err).Msg("session.service.ChangePassword.credentialCore.ChangeSecret")
		return fmt.Errorf("session.service.ChangePassword: %w", err)
	}

	backoff := retry.WithMaxRetries(revokeRetries, retry.NewConstant(revokeRetryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.core.RevokeAllSessions(ctx, subject); err != nil {
			if apperr.ClassOf(err) == apperr.ClassInternal {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		logger.Security(ctx, securityEventStaleSessions, err).
			Msg("session.service.ChangePassword.core.RevokeAllSessions: secret changed, sessions still active")
		return fmt.Errorf("session.service.ChangePassword: %w", err)
	}
	return nil
}

func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.core.PurgeExpired(ctx, retention)
	if err != nil {
		logger.Error(ctx, err).Dur("retention", retention).Msg("session.service.PurgeExpired.core.PurgeExpired")
		return 0, fmt.Errorf("session.service.PurgeExpired: %w", err)
	}
	return n, nil
}
