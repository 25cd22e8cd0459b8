package secure_test

import (
	"testing"
	"time"

	"github.com/66gu1/authsession/internal/infrastructure/secure"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashPassword(t *testing.T) {
	t.Parallel()

	password := "password"
	tests := []struct {
		name     string
		password []byte
		wantErr  bool
	}{
		{
			name:     "ok",
			password: []byte(password),
		},
		{
			name:     "too long password",
			password: []byte("passwordasdasdasdsadsadsadsadsadasdasdsadasdgjhjhgjhagsdjgsajhdgjsahdgjasgdjgasdjhgsadasdsa"),
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hasher := secure.NewPasswordHasher()
			hash, err := hasher.HashPassword(tt.password, 4)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				err = bcrypt.CompareHashAndPassword(hash, []byte(password))
				require.NoError(t, err)
			}
			for i := range tt.password {
				require.Zero(t, tt.password[i])
			}
		})
	}
}

func TestPasswordHasher_CheckPasswordHash(t *testing.T) {
	t.Parallel()
	password := "password"

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	require.NoError(t, err)
	tests := []struct {
		name     string
		password []byte
		hash     []byte
		wantErr  bool
	}{
		{
			name:     "ok",
			password: []byte(password),
			hash:     hash,
		},
		{
			name:     "mismatched password",
			password: []byte("wrongpassword"),
			hash:     hash,
			wantErr:  true,
		},
		{
			name:     "empty hash",
			password: []byte(password),
			hash:     []byte(""),
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hasher := secure.NewPasswordHasher()
			err := hasher.CheckPasswordHash(tt.password, string(tt.hash))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			for i := range tt.password {
				require.Zero(t, tt.password[i])
			}
		})
	}
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type testClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

func newClaims(now time.Time, ttl time.Duration) testClaims {
	return testClaims{
		SID: "sid",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "Subject",
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        "ID",
		},
	}
}

func TestNewTokenCodec(t *testing.T) {
	t.Parallel()
	clock := fixedClock{now: time.Now()}

	_, err := secure.NewTokenCodec(nil, 0, clock)
	require.Error(t, err)
	_, err = secure.NewTokenCodec([]byte("s"), -time.Second, clock)
	require.Error(t, err)
	_, err = secure.NewTokenCodec([]byte("s"), 0, nil)
	require.Error(t, err)
	_, err = secure.NewTokenCodec([]byte("s"), 0, clock)
	require.NoError(t, err)
}

func TestTokenCodec_GenerateToken(t *testing.T) {
	t.Parallel()
	secret := []byte("mysecret")
	now := time.Now()
	codec, err := secure.NewTokenCodec(secret, 0, fixedClock{now: now})
	require.NoError(t, err)

	claims := newClaims(now, time.Hour)
	tokenStr, err := codec.GenerateToken(claims)
	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)

	gotClaims := testClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, &gotClaims, func(token *jwt.Token) (interface{}, error) { return secret, nil })
	require.NoError(t, err)
	require.True(t, token.Valid)
	require.Equal(t, claims, gotClaims)
}

func TestTokenCodec_ParseToken(t *testing.T) {
	t.Parallel()
	var (
		secret = []byte("mysecret")
		now    = time.Now()
		leeway = 30 * time.Second
		claims = newClaims(now, time.Hour)
	)
	codec, err := secure.NewTokenCodec(secret, leeway, fixedClock{now: now})
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, c jwt.Claims, key []byte) string {
		tokenStr, err := jwt.NewWithClaims(method, c).SignedString(key)
		require.NoError(t, err)
		return tokenStr
	}
	noExp := claims
	noExp.ExpiresAt = nil

	tests := []struct {
		name     string
		tokenStr string
		err      error
	}{
		{
			name:     "valid token",
			tokenStr: sign(jwt.SigningMethodHS256, claims, secret),
		},
		{
			name:     "expired within leeway",
			tokenStr: sign(jwt.SigningMethodHS256, newClaims(now.Add(-time.Hour), time.Hour-leeway/2), secret),
		},
		{
			name:     "expired beyond leeway",
			tokenStr: sign(jwt.SigningMethodHS256, newClaims(now.Add(-time.Hour), time.Hour-2*leeway), secret),
			err:      secure.ErrTokenExpired,
		},
		{
			name:     "missing exp",
			tokenStr: sign(jwt.SigningMethodHS256, noExp, secret),
			err:      secure.ErrTokenMalformed,
		},
		{
			name:     "invalid signing method",
			tokenStr: sign(jwt.SigningMethodHS384, claims, secret),
			err:      secure.ErrTokenSignatureInvalid,
		},
		{
			name:     "invalid signature",
			tokenStr: sign(jwt.SigningMethodHS256, claims, []byte("wrongsecret")),
			err:      secure.ErrTokenSignatureInvalid,
		},
		{
			name:     "garbage",
			tokenStr: "not-a-token",
			err:      secure.ErrTokenMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gotClaims := testClaims{}
			err := codec.ParseToken(tt.tokenStr, &gotClaims)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
				require.Equal(t, "sid", gotClaims.SID)
			}
		})
	}
}

func TestTokenCodec_ParseTokenSignature(t *testing.T) {
	t.Parallel()
	secret := []byte("mysecret")
	now := time.Now()
	codec, err := secure.NewTokenCodec(secret, 0, fixedClock{now: now})
	require.NoError(t, err)

	expired := newClaims(now.Add(-48*time.Hour), time.Hour)
	tokenStr, err := codec.GenerateToken(expired)
	require.NoError(t, err)

	var got testClaims
	require.NoError(t, codec.ParseTokenSignature(tokenStr, &got))
	require.Equal(t, expired, got)

	require.ErrorIs(t, codec.ParseToken(tokenStr, &testClaims{}), secure.ErrTokenExpired)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte("other"))
	require.NoError(t, err)
	require.ErrorIs(t, codec.ParseTokenSignature(forged, &testClaims{}), secure.ErrTokenSignatureInvalid)
}

func TestRefreshTokenHash(t *testing.T) {
	t.Parallel()

	hash := secure.HashRefreshToken("token-a")
	require.Len(t, hash, 64)
	require.Equal(t, hash, secure.HashRefreshToken("token-a"))
	require.True(t, secure.RefreshTokenHashEqual("token-a", hash))
	require.False(t, secure.RefreshTokenHashEqual("token-b", hash))
	require.False(t, secure.RefreshTokenHashEqual("token-a", ""))
}
