package secure

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token is expired")
)

type Clock interface {
	Now() time.Time
}

// TokenCodec signs and parses HS256 JWTs with a single process-wide secret.
type TokenCodec struct {
	secret []byte
	leeway time.Duration
	clock  Clock
}

func NewTokenCodec(secret []byte, leeway time.Duration, clock Clock) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("secure.NewTokenCodec: secret is empty")
	}
	if leeway < 0 {
		return nil, fmt.Errorf("secure.NewTokenCodec: negative leeway")
	}
	if clock == nil {
		return nil, fmt.Errorf("secure.NewTokenCodec: nil clock")
	}

	return &TokenCodec{
		secret: secret,
		leeway: leeway,
		clock:  clock,
	}, nil
}

func (c *TokenCodec) GenerateToken(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("secure.TokenCodec.GenerateToken: %w", err)
	}
	return tokenStr, nil
}

// ParseToken verifies the signature and the exp claim (which is required).
func (c *TokenCodec) ParseToken(tokenStr string, claims jwt.Claims) error {
	err := c.parse(tokenStr, claims,
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("secure.TokenCodec.ParseToken: %w", err)
	}

	return nil
}

// ParseTokenSignature verifies only the signature; time-based claims are ignored.
func (c *TokenCodec) ParseTokenSignature(tokenStr string, claims jwt.Claims) error {
	if err := c.parse(tokenStr, claims, jwt.WithoutClaimsValidation()); err != nil {
		return fmt.Errorf("secure.TokenCodec.ParseTokenSignature: %w", err)
	}

	return nil
}

func (c *TokenCodec) parse(tokenStr string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return classify(err)
	}
	if !token.Valid {
		return ErrTokenSignatureInvalid
	}

	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %s", ErrTokenMalformed, err.Error())
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %s", ErrTokenSignatureInvalid, err.Error())
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %s", ErrTokenExpired, err.Error())
	default:
		return fmt.Errorf("%w: %s", ErrTokenMalformed, err.Error())
	}
}
