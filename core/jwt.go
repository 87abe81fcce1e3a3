package core

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the claim set embedded in issued access tokens: subject is
// the user id, UniqueName the display name, ID (jti) the session identifier.
type SessionClaims struct {
	jwt.RegisteredClaims
	UniqueName string `json:"unique_name"`
}

// TokenSigner mints and verifies HMAC-signed bearer tokens.
type TokenSigner struct {
	key      []byte
	issuer   string
	audience string
	lifetime time.Duration

	now func() time.Time // injectable for tests
}

// NewTokenSigner builds a signer from config.
func NewTokenSigner(cfg Config) *TokenSigner {
	return &TokenSigner{
		key:      []byte(cfg.JWTKey),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		lifetime: time.Duration(cfg.TokenLifetimeMin) * time.Minute,
	}
}

// Lifetime returns the configured token validity window.
func (s *TokenSigner) Lifetime() time.Duration {
	return s.lifetime
}

// Sign produces a signed token for the given user and session identifier.
// It also returns the embedded expiry (now + the configured lifetime) so the
// caller can persist the exact same instant alongside the jti.
func (s *TokenSigner) Sign(userID int64, username, jti string) (string, time.Time, error) {
	now := s.clock()
	expiresAt := now.Add(s.lifetime)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        jti,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UniqueName: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, expiry, issuer and audience, returning the claims
// on success. Revocation is not checked here; callers consult the token
// ledger separately.
func (s *TokenSigner) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// UserID returns the numeric subject claim.
func (c *SessionClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

func (s *TokenSigner) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
