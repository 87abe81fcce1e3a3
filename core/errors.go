package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned for a bad username or password. The two
	// cases are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("Wrong credentials")

	// ErrSessionNotFound is returned when logging out an unknown jti.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAccountNotFound is returned when a payment targets a user that does
	// not exist.
	ErrAccountNotFound = errors.New("Account not found")

	// ErrDuplicateAccount is returned when account creation hits an existing username.
	ErrDuplicateAccount = errors.New("User already exists.")

	// ErrForbidden is returned when the admin secret is absent or wrong.
	ErrForbidden = errors.New("forbidden")
)

// LockedOutError signals that the client identifier is temporarily blocked
// from further login attempts.
type LockedOutError struct {
	MinutesRemaining int
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("Too many failed login attempts. IP is blocked for %d minutes", e.MinutesRemaining)
}

// InsufficientFundsError signals a debit larger than the current balance. It
// carries the unchanged balance so the caller can report it.
type InsufficientFundsError struct {
	BalanceCents int64
}

func (e *InsufficientFundsError) Error() string {
	return "Insufficient funds"
}
