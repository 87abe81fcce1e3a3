package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService(t *testing.T, threshold int, lock time.Duration) (*AuthService, *memLedger, *fakeClock) {
	t.Helper()
	ledger := newMemLedger()
	throttle, clock := newThrottleWithClock(threshold, lock)
	signer := NewTokenSigner(testSignerConfig())
	return NewAuthService(ledger, ledger, throttle, signer), ledger, clock
}

func mustCreateUser(t *testing.T, ledger *memLedger, username, password string, balanceCents int64) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	id, err := ledger.Create(context.Background(), username, string(hash), balanceCents)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func TestLoginSuccessIssuesMatchingTokenRow(t *testing.T) {
	svc, ledger, _ := newTestAuthService(t, 5, 15*time.Minute)
	id := mustCreateUser(t, ledger, "alice", "s3cret", 800)

	signed, err := svc.Login(context.Background(), "alice", "s3cret", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	claims, err := svc.signer.Verify(signed)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}

	// The embedded session id and subject must round-trip to the stored row.
	row, err := ledger.FindByJti(context.Background(), claims.ID)
	if err != nil || row == nil {
		t.Fatalf("no token row for jti %q (err=%v)", claims.ID, err)
	}
	if row.UserID != id {
		t.Fatalf("token row user = %d, want %d", row.UserID, id)
	}
	if uid, _ := claims.UserID(); uid != id {
		t.Fatalf("subject = %d, want %d", uid, id)
	}
	if claims.UniqueName != "alice" {
		t.Fatalf("unique_name = %q, want alice", claims.UniqueName)
	}
	if row.Revoked {
		t.Fatalf("fresh token row is revoked")
	}
	if !row.ExpiresAt.Equal(claims.ExpiresAt.Time.Truncate(time.Second)) &&
		!row.ExpiresAt.Truncate(time.Second).Equal(claims.ExpiresAt.Time) {
		t.Fatalf("row expiry %v does not match claim expiry %v", row.ExpiresAt, claims.ExpiresAt.Time)
	}
}

func TestLoginFailureIsGeneric(t *testing.T) {
	svc, ledger, _ := newTestAuthService(t, 5, 15*time.Minute)
	mustCreateUser(t, ledger, "alice", "s3cret", 800)

	_, errUnknownUser := svc.Login(context.Background(), "nobody", "whatever", "10.0.0.1")
	_, errWrongPassword := svc.Login(context.Background(), "alice", "wrong", "10.0.0.1")

	// Wrong username and wrong password must be indistinguishable.
	if !errors.Is(errUnknownUser, ErrInvalidCredentials) {
		t.Fatalf("unknown user error = %v, want ErrInvalidCredentials", errUnknownUser)
	}
	if !errors.Is(errWrongPassword, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v, want ErrInvalidCredentials", errWrongPassword)
	}
}

func TestLoginLocksOutAfterMaxFailures(t *testing.T) {
	svc, ledger, _ := newTestAuthService(t, 3, 15*time.Minute)
	mustCreateUser(t, ledger, "alice", "s3cret", 800)

	for i := 0; i < 3; i++ {
		if _, err := svc.Login(context.Background(), "alice", "wrong", "10.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	// Correct password, but the client key is locked.
	_, err := svc.Login(context.Background(), "alice", "s3cret", "10.0.0.1")
	var locked *LockedOutError
	if !errors.As(err, &locked) {
		t.Fatalf("err = %v, want LockedOutError", err)
	}
	if locked.MinutesRemaining != 15 {
		t.Fatalf("minutes remaining = %d, want 15", locked.MinutesRemaining)
	}

	// A different client key is unaffected.
	if _, err := svc.Login(context.Background(), "alice", "s3cret", "10.0.0.2"); err != nil {
		t.Fatalf("other client key: %v", err)
	}
}

func TestLoginSucceedsAfterLockExpires(t *testing.T) {
	svc, ledger, clock := newTestAuthService(t, 2, 10*time.Minute)
	mustCreateUser(t, ledger, "alice", "s3cret", 800)

	svcLogin := func(password string) error {
		_, err := svc.Login(context.Background(), "alice", password, "10.0.0.1")
		return err
	}

	_ = svcLogin("wrong")
	_ = svcLogin("wrong")
	var locked *LockedOutError
	if err := svcLogin("s3cret"); !errors.As(err, &locked) {
		t.Fatalf("expected lockout, got %v", err)
	}

	clock.Advance(10 * time.Minute)
	if err := svcLogin("s3cret"); err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}

	// The success cleared the counter: a single new failure must not lock.
	_ = svcLogin("wrong")
	if err := svcLogin("s3cret"); err != nil {
		t.Fatalf("login after one failure post-clear: %v", err)
	}
}

func TestLoginSuccessClearsFailureCounter(t *testing.T) {
	svc, ledger, _ := newTestAuthService(t, 2, 10*time.Minute)
	mustCreateUser(t, ledger, "alice", "s3cret", 800)

	_, _ = svc.Login(context.Background(), "alice", "wrong", "10.0.0.1")
	if _, err := svc.Login(context.Background(), "alice", "s3cret", "10.0.0.1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Counter restarted from zero; one more failure stays below the threshold.
	_, _ = svc.Login(context.Background(), "alice", "wrong", "10.0.0.1")
	if _, err := svc.Login(context.Background(), "alice", "s3cret", "10.0.0.1"); err != nil {
		t.Fatalf("login after single failure: %v", err)
	}
}

func TestLogoutUnknownJti(t *testing.T) {
	svc, _, _ := newTestAuthService(t, 5, 15*time.Minute)

	ok, err := svc.Logout(context.Background(), "no-such-jti")
	if err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if ok {
		t.Fatalf("Logout of unknown jti returned true")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, ledger, _ := newTestAuthService(t, 5, 15*time.Minute)
	mustCreateUser(t, ledger, "alice", "s3cret", 800)

	signed, err := svc.Login(context.Background(), "alice", "s3cret", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := svc.signer.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if valid, _ := svc.IsJtiValid(context.Background(), claims.ID); !valid {
		t.Fatalf("fresh session reported invalid")
	}

	ok, err := svc.Logout(context.Background(), claims.ID)
	if err != nil || !ok {
		t.Fatalf("Logout = (%v, %v), want (true, nil)", ok, err)
	}

	if valid, _ := svc.IsJtiValid(context.Background(), claims.ID); valid {
		t.Fatalf("revoked session reported valid")
	}

	// Revocation is one-way; a second logout finds the row and leaves it revoked.
	if ok, _ := svc.Logout(context.Background(), claims.ID); !ok {
		t.Fatalf("second Logout did not find session")
	}
	row, _ := ledger.FindByJti(context.Background(), claims.ID)
	if row == nil || !row.Revoked {
		t.Fatalf("token row not revoked after logout")
	}
}

func TestIsJtiValidUnknown(t *testing.T) {
	svc, _, _ := newTestAuthService(t, 5, 15*time.Minute)
	if valid, err := svc.IsJtiValid(context.Background(), "ghost"); err != nil || valid {
		t.Fatalf("IsJtiValid(ghost) = (%v, %v), want (false, nil)", valid, err)
	}
}
