package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService authenticates credentials, mints bearer tokens, and handles
// session revocation. Login attempts are guarded by the brute-force throttle.
type AuthService struct {
	users    UserRepository
	tokens   TokenRepository
	throttle *BruteForceThrottle
	signer   *TokenSigner
}

func NewAuthService(users UserRepository, tokens TokenRepository, throttle *BruteForceThrottle, signer *TokenSigner) *AuthService {
	return &AuthService{users: users, tokens: tokens, throttle: throttle, signer: signer}
}

// loginThrottleKey namespaces the client identifier within the throttle.
func loginThrottleKey(clientKey string) string {
	return "bfp:" + clientKey
}

// Login verifies username/password and on success mints a signed bearer token
// and records the session.
//
// Failures are typed: *LockedOutError while the client key is locked out,
// ErrInvalidCredentials for a bad username or password (the two are not
// distinguishable, and an unknown username still counts as a failed attempt
// so callers cannot probe for account existence). Any other error is a
// storage failure.
func (s *AuthService) Login(ctx context.Context, username, password, clientKey string) (string, error) {
	key := loginThrottleKey(clientKey)

	if locked, minutes := s.throttle.IsLocked(key); locked {
		return "", &LockedOutError{MinutesRemaining: minutes}
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("look up user: %w", err)
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.throttle.RegisterFailure(key)
		return "", ErrInvalidCredentials
	}

	s.throttle.Clear(key)

	jti := uuid.NewString()
	signed, expiresAt, err := s.signer.Sign(user.ID, user.Username, jti)
	if err != nil {
		return "", err
	}
	if err := s.tokens.Insert(ctx, user.ID, jti, expiresAt); err != nil {
		return "", fmt.Errorf("persist session: %w", err)
	}
	return signed, nil
}

// Logout marks the session named by jti revoked. It returns false when the
// jti is unknown. Already-revoked sessions stay revoked.
func (s *AuthService) Logout(ctx context.Context, jti string) (bool, error) {
	return s.tokens.Revoke(ctx, jti)
}

// IsJtiValid reports whether jti names a known, non-revoked session. Bearer
// verification must consult this after checking signature and expiry;
// otherwise logout has no effect on tokens that have not yet expired.
func (s *AuthService) IsJtiValid(ctx context.Context, jti string) (bool, error) {
	return s.tokens.IsJtiValid(ctx, jti)
}

// HashPassword produces a salted bcrypt hash for account provisioning.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
