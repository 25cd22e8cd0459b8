package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/66gu1/authsession/internal/infrastructure/secure"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIDBytes = 16

type TokenSigner interface {
	GenerateToken(claims jwt.Claims) (string, error)
	ParseToken(tokenStr string, claims jwt.Claims) error
	ParseTokenSignature(tokenStr string, claims jwt.Claims) error
}

type RNDGenerator interface {
	New(n int) (string, error)
}

// Codec mints and verifies access and refresh tokens. Verification needs no store.
type Codec struct {
	signer        TokenSigner
	rndGenerator  RNDGenerator
	timeGenerator TimeGenerator
}

func NewCodec(signer TokenSigner, rndGenerator RNDGenerator, timeGenerator TimeGenerator) (*Codec, error) {
	if signer == nil || rndGenerator == nil || timeGenerator == nil {
		return nil, fmt.Errorf("session.NewCodec: nil dependency")
	}

	return &Codec{
		signer:        signer,
		rndGenerator:  rndGenerator,
		timeGenerator: timeGenerator,
	}, nil
}

// MintAccess returns a signed access token and its expiry.
func (c *Codec) MintAccess(subject string, sessionID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	token, expiresAt, err := c.mint(subject, sessionID, TokenTypeAccess, 0, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session.Codec.MintAccess: %w", err)
	}

	return token, expiresAt, nil
}

// MintRefresh returns a signed refresh token bound to generation, and its expiry.
func (c *Codec) MintRefresh(subject string, sessionID uuid.UUID, generation int64, ttl time.Duration) (string, time.Time, error) {
	if generation < 0 {
		return "", time.Time{}, fmt.Errorf("session.Codec.MintRefresh: negative generation %d", generation)
	}
	token, expiresAt, err := c.mint(subject, sessionID, TokenTypeRefresh, generation, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session.Codec.MintRefresh: %w", err)
	}

	return token, expiresAt, nil
}

// Verify checks signature, expiry (with the signer's skew tolerance) and type.
func (c *Codec) Verify(token string, expected TokenType) (Claims, error) {
	var tc TokenClaims
	if err := c.signer.ParseToken(token, &tc); err != nil {
		return Claims{}, fmt.Errorf("session.Codec.Verify: %w", translateSignerError(err))
	}

	claims, err := tc.toClaims(expected)
	if err != nil {
		return Claims{}, fmt.Errorf("session.Codec.Verify: %w", err)
	}

	return claims, nil
}

// VerifySignature is Verify without the expiry check.
func (c *Codec) VerifySignature(token string, expected TokenType) (Claims, error) {
	var tc TokenClaims
	if err := c.signer.ParseTokenSignature(token, &tc); err != nil {
		return Claims{}, fmt.Errorf("session.Codec.VerifySignature: %w", translateSignerError(err))
	}

	claims, err := tc.toClaims(expected)
	if err != nil {
		return Claims{}, fmt.Errorf("session.Codec.VerifySignature: %w", err)
	}

	return claims, nil
}

func (c *Codec) mint(subject string, sessionID uuid.UUID, typ TokenType, generation int64, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("mint: empty subject")
	}
	if sessionID == uuid.Nil {
		return "", time.Time{}, fmt.Errorf("mint: nil session ID")
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("mint: non-positive ttl %s", ttl)
	}

	jti, err := c.rndGenerator.New(tokenIDBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("mint: %w", err)
	}

	now := c.timeGenerator.Now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))

	token, err := c.signer.GenerateToken(TokenClaims{
		SID:        sessionID.String(),
		Type:       typ,
		Generation: generation,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("mint: %w", err)
	}

	return token, expiresAt.Time, nil
}

func (tc TokenClaims) toClaims(expected TokenType) (Claims, error) {
	if tc.Type != expected {
		return Claims{}, fmt.Errorf("got %q, want %q: %w", tc.Type, expected, ErrTokenTypeMismatch())
	}
	if tc.Subject == "" || tc.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("missing required claims: %w", ErrTokenMalformed())
	}
	sessionID, err := uuid.Parse(tc.SID)
	if err != nil || sessionID == uuid.Nil {
		return Claims{}, fmt.Errorf("invalid sid %q: %w", tc.SID, ErrTokenMalformed())
	}
	if tc.Generation < 0 {
		return Claims{}, fmt.Errorf("negative generation: %w", ErrTokenMalformed())
	}

	claims := Claims{
		Subject:    tc.Subject,
		SessionID:  sessionID,
		Type:       tc.Type,
		Generation: tc.Generation,
		ExpiresAt:  tc.ExpiresAt.Time,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}

	return claims, nil
}

func translateSignerError(err error) error {
	switch {
	case errors.Is(err, secure.ErrTokenSignatureInvalid):
		return ErrTokenInvalidSignature()
	case errors.Is(err, secure.ErrTokenExpired):
		return ErrTokenExpired()
	default:
		return ErrTokenMalformed()
	}
}
