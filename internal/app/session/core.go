package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/66gu1/authsession/internal/infrastructure/secure"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Store persists sessions. CompareAndRotate must be atomic at the storage
// layer: it succeeds only while the stored generation equals ExpectedGeneration
// and the session is not revoked, and fails with ErrConflict otherwise.
type Store interface {
	Create(ctx context.Context, session Session, rtHash string) error
	Get(ctx context.Context, id uuid.UUID) (Session, string, error)
	CompareAndRotate(ctx context.Context, req RotateReq) error
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForSubject(ctx context.Context, subject string) error
	ListBySubject(ctx context.Context, subject string) ([]Session, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type TokenCodec interface {
	MintAccess(subject string, sessionID uuid.UUID, ttl time.Duration) (string, time.Time, error)
	MintRefresh(subject string, sessionID uuid.UUID, generation int64, ttl time.Duration) (string, time.Time, error)
	Verify(token string, expected TokenType) (Claims, error)
	VerifySignature(token string, expected TokenType) (Claims, error)
}

type UUIDGenerator interface {
	New() (uuid.UUID, error)
}

type TimeGenerator interface {
	Now() time.Time
}

type Config struct {
	AccessTokenTTL     time.Duration `mapstructure:"access_token_ttl" json:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `mapstructure:"refresh_token_ttl" json:"refresh_token_ttl"`
	ClockSkewTolerance time.Duration `mapstructure:"clock_skew_tolerance" json:"clock_skew_tolerance"`
}

func (c Config) Validate() error {
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("access_token_ttl must be positive, got %s", c.AccessTokenTTL)
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		return fmt.Errorf("refresh_token_ttl (%s) must not be shorter than access_token_ttl (%s)", c.RefreshTokenTTL, c.AccessTokenTTL)
	}
	if c.ClockSkewTolerance < 0 {
		return fmt.Errorf("clock_skew_tolerance must not be negative, got %s", c.ClockSkewTolerance)
	}

	return nil
}

type core struct {
	store         Store
	codec         TokenCodec
	idGenerator   UUIDGenerator
	timeGenerator TimeGenerator
	cfg           Config
}

func NewCore(store Store, codec TokenCodec, idGenerator UUIDGenerator, timeGenerator TimeGenerator, cfg Config) (*core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session.NewCore: %w", err)
	}
	if store == nil || codec == nil || idGenerator == nil || timeGenerator == nil {
		return nil, fmt.Errorf("session.NewCore: nil dependency")
	}

	return &core{
		store:         store,
		codec:         codec,
		idGenerator:   idGenerator,
		timeGenerator: timeGenerator,
		cfg:           cfg,
	}, nil
}

// Login opens a new session at generation 0. The session expires together
// with the refresh token minted here; rotation never extends it.
func (c *core) Login(ctx context.Context, subject string) (Tokens, error) {
	if subject == "" {
		return Tokens{}, fmt.Errorf("session.core.Login: %w", apperr.ErrEmpty(FieldSubject))
	}

	sessionID, err := c.idGenerator.New()
	if err != nil {
		return Tokens{}, fmt.Errorf("session.core.Login: %w", err)
	}

	now := c.timeGenerator.Now()
	refreshToken, refreshExp, err := c.codec.MintRefresh(subject, sessionID, 0, c.cfg.RefreshTokenTTL)
	if err != nil {
		return Tokens{}, fmt.Errorf("session.core.Login: %w", err)
	}
	accessToken, accessExp, err := c.codec.MintAccess(subject, sessionID, c.cfg.AccessTokenTTL)
	if err != nil {
		return Tokens{}, fmt.Errorf("session.core.Login: %w", err)
	}

	session := Session{
		ID:         sessionID,
		Subject:    subject,
		Generation: 0,
		CreatedAt:  now,
		ExpiresAt:  refreshExp,
	}
	if err = c.store.Create(ctx, session, secure.HashRefreshToken(refreshToken)); err != nil {
		return Tokens{}, fmt.Errorf("session.core.Login: %w", err)
	}

	return Tokens{
		SessionID:        sessionID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh exchanges a refresh token for a new pair. A superseded token, or
// losing a concurrent rotation, revokes the session and fails with ErrReplayDetected.
func (c *core) Refresh(ctx context.Context, rawRefreshToken string) (Tokens, error) {
	if rawRefreshToken == "" {
		return Tokens{}, fmt.Errorf("session.core.Refresh: %w", apperr.ErrEmpty(FieldRefreshToken))
	}

	claims, err := c.codec.Verify(rawRefreshToken, TokenTypeRefresh)
	if err != nil {
		return Tokens{}, fmt.Errorf("session.core.Refresh: %w", err)
	}

	session, rtHash, err := c.store.Get(ctx, claims.SessionID)
	if err != nil {
		return Tokens{}, fmt.Errorf("session.core.Refresh: %w", err)
	}
	if session.Subject != claims.Subject {
		return Tokens{}, fmt.Errorf("session.core.Refresh: subject mismatch: %w", ErrInvalidToken())
	}

	now := c.timeGenerator.Now()
	if session.Revoked {
		return Tokens{}, fmt.Errorf("session.core.Refresh: %w", ErrSessionRevoked())
	}
	if session.IsExpired(now) {
		return Tokens{}, fmt.Errorf("session.core.Refresh: %w", ErrSessionExpired())
	}

	if !secure.RefreshTokenHashEqual(rawRefreshToken, rtHash) {
		if claims.Generation < session.Generation {
			return Tokens{}, fmt.Errorf("session.core.Refresh: stale generation %d, current %d: %w",
				claims.Generation, session.Generation, c.replay(ctx, session.ID))
		}
		return Tokens{}, fmt.Errorf("session.core.Refresh: %w", ErrInvalidToken())
	}
	if claims.Generation != session.Generation {
		return Tokens{}, fmt.Errorf("session.core.Refresh: generation mismatch: %w", ErrInvalidToken())
	}

	newGeneration := session.Generation + 1
	refreshToken, refreshExp, err := c.codec.MintRefresh(session.Subject, session.ID, newGeneration, remaining(session.ExpiresAt, now))
	if err != nil {
		return Tokens{}, fmt.Errorf("session.core.Refresh: %w", err)
	}
	if refreshExp.After(session.ExpiresAt) {
		refreshExp = session.ExpiresAt
	}
	accessToken, accessExp, err := c.codec.MintAccess(session.Subject, session.ID, c.cfg.AccessTokenTTL)
	if err != nil {
		return Tokens{}, fmt.Errorf("session.core.Refresh: %w", err)
	}

	err = c.store.CompareAndRotate(ctx, RotateReq{
		SessionID:          session.ID,
		ExpectedGeneration: session.Generation,
		NewGeneration:      newGeneration,
		RefreshTokenHash:   secure.HashRefreshToken(refreshToken),
	})
	if err != nil {
		if errors.Is(err, ErrConflict()) {
			return Tokens{}, fmt.Errorf("session.core.Refresh: lost rotation of generation %d: %w",
				session.Generation, c.replay(ctx, session.ID))
		}
		return Tokens{}, fmt.Errorf("session.core.Refresh: %w", err)
	}

	return Tokens{
		SessionID:        session.ID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Logout revokes the session. Unknown and already revoked sessions are not an error.
func (c *core) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return fmt.Errorf("session.core.Logout: %w", apperr.ErrNilUUID(FieldSessionID))
	}
	if err := c.store.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("session.core.Logout: %w", err)
	}

	return nil
}

// LogoutWithRefreshToken revokes the session a refresh token belongs to.
// The token only needs a valid signature, so an expired token still logs out.
func (c *core) LogoutWithRefreshToken(ctx context.Context, rawRefreshToken string) (uuid.UUID, error) {
	if rawRefreshToken == "" {
		return uuid.Nil, fmt.Errorf("session.core.LogoutWithRefreshToken: %w", apperr.ErrEmpty(FieldRefreshToken))
	}

	claims, err := c.codec.VerifySignature(rawRefreshToken, TokenTypeRefresh)
	if err != nil {
		return uuid.Nil, fmt.Errorf("session.core.LogoutWithRefreshToken: %w", err)
	}
	if err = c.store.Revoke(ctx, claims.SessionID); err != nil {
		return uuid.Nil, fmt.Errorf("session.core.LogoutWithRefreshToken: %w", err)
	}

	return claims.SessionID, nil
}

func (c *core) RevokeAllSessions(ctx context.Context, subject string) error {
	if subject == "" {
		return fmt.Errorf("session.core.RevokeAllSessions: %w", apperr.ErrEmpty(FieldSubject))
	}
	if err := c.store.RevokeAllForSubject(ctx, subject); err != nil {
		return fmt.Errorf("session.core.RevokeAllSessions: %w", err)
	}

	return nil
}

// VerifyAccess validates an access token without touching the store, so access
// tokens of a revoked session stay valid until they expire.
func (c *core) VerifyAccess(rawAccessToken string) (Principal, error) {
	if rawAccessToken == "" {
		return Principal{}, fmt.Errorf("session.core.VerifyAccess: %w", apperr.ErrEmpty(FieldAccessToken))
	}

	claims, err := c.codec.Verify(rawAccessToken, TokenTypeAccess)
	if err != nil {
		return Principal{}, fmt.Errorf("session.core.VerifyAccess: %w", err)
	}

	return Principal{Subject: claims.Subject, SessionID: claims.SessionID}, nil
}

func (c *core) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	if id == uuid.Nil {
		return Session{}, fmt.Errorf("session.core.GetSession: %w", apperr.ErrNilUUID(FieldSessionID))
	}

	session, _, err := c.store.Get(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("session.core.GetSession: %w", err)
	}

	return session, nil
}

// ListSessions returns the subject's sessions that can still be refreshed.
func (c *core) ListSessions(ctx context.Context, subject string) ([]Session, error) {
	if subject == "" {
		return nil, fmt.Errorf("session.core.ListSessions: %w", apperr.ErrEmpty(FieldSubject))
	}

	sessions, err := c.store.ListBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("session.core.ListSessions: %w", err)
	}

	now := c.timeGenerator.Now()
	active := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if !s.Revoked && !s.IsExpired(now) {
			active = append(active, s)
		}
	}

	return active, nil
}

// PurgeExpired deletes sessions that expired more than retention ago.
func (c *core) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	if retention < 0 {
		return 0, fmt.Errorf("session.core.PurgeExpired: negative retention %s", retention)
	}

	n, err := c.store.PurgeExpired(ctx, c.timeGenerator.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("session.core.PurgeExpired: %w", err)
	}

	return n, nil
}

func (c *core) replay(ctx context.Context, sessionID uuid.UUID) error {
	if err := c.store.Revoke(ctx, sessionID); err != nil {
		return errors.Join(ErrReplayDetected(), fmt.Errorf("revoke: %w", err))
	}

	return ErrReplayDetected()
}

// remaining is the lifetime left for a rotated refresh token. Tokens carry
// whole seconds, so it never drops below one second.
func remaining(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl < jwt.TimePrecision {
		return jwt.TimePrecision
	}

	return ttl
}
