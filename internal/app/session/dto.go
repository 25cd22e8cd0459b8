package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

func (t TokenType) String() string {
	return string(t)
}

// Session is one continuous authenticated session across refreshes.
// The refresh token hash is kept out of the struct and travels separately.
type Session struct {
	ID         uuid.UUID `json:"id"`
	Subject    string    `json:"subject"`
	Generation int64     `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Revoked    bool      `json:"revoked"`
}

// IsExpired reports whether the session's refresh capability has ended at now.
func (s Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

type RotateReq struct {
	SessionID          uuid.UUID `json:"session_id"`
	ExpectedGeneration int64     `json:"expected_generation"`
	NewGeneration      int64     `json:"new_generation"`
	RefreshTokenHash   string    `json:"-"`
}

type Tokens struct {
	SessionID        uuid.UUID `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Principal is what a verified access token proves about the caller.
type Principal struct {
	Subject   string    `json:"subject"`
	SessionID uuid.UUID `json:"session_id"`
}

type Claims struct {
	Subject    string
	SessionID  uuid.UUID
	Type       TokenType
	Generation int64
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

type TokenClaims struct {
	SID        string    `json:"sid"` // session_id
	Type       TokenType `json:"token_type"`
	Generation int64     `json:"gen,omitempty"`
	jwt.RegisteredClaims
}
