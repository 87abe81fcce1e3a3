package core

import (
	"context"
	"sync"
	"time"
)

// memLedger is an in-memory stand-in for the postgres-backed repositories and
// payment processor, used by service and router tests. One mutex spans every
// operation, which gives the same per-user linearizable debit ordering the
// real processor gets from its row lock.
type memLedger struct {
	mu         sync.Mutex
	nextUserID int64
	byName     map[string]*UserRecord
	byID       map[int64]*UserRecord
	tokens     map[string]*TokenRecord
	nextToken  int64
	payments   []memPayment
}

type memPayment struct {
	userID      int64
	amountCents int64
	createdAt   time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{
		byName: make(map[string]*UserRecord),
		byID:   make(map[int64]*UserRecord),
		tokens: make(map[string]*TokenRecord),
	}
}

var (
	_ UserRepository   = (*memLedger)(nil)
	_ TokenRepository  = (*memLedger)(nil)
	_ PaymentProcessor = (*memLedger)(nil)
)

func (m *memLedger) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memLedger) Create(_ context.Context, username, passwordHash string, balanceCents int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[username]; exists {
		return 0, ErrDuplicateAccount
	}
	m.nextUserID++
	u := &UserRecord{
		ID:           m.nextUserID,
		Username:     username,
		PasswordHash: passwordHash,
		BalanceCents: balanceCents,
	}
	m.byName[username] = u
	m.byID[u.ID] = u
	return u.ID, nil
}

func (m *memLedger) Insert(_ context.Context, userID int64, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextToken++
	m.tokens[jti] = &TokenRecord{
		ID:        m.nextToken,
		Jti:       jti,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (m *memLedger) FindByJti(_ context.Context, jti string) (*TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[jti]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memLedger) Revoke(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[jti]
	if !ok {
		return false, nil
	}
	t.Revoked = true
	return true, nil
}

func (m *memLedger) IsJtiValid(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[jti]
	return ok && !t.Revoked, nil
}

func (m *memLedger) MakePayment(_ context.Context, userID int64, amountCents int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if u.BalanceCents < amountCents {
		return 0, &InsufficientFundsError{BalanceCents: u.BalanceCents}
	}
	u.BalanceCents -= amountCents
	m.payments = append(m.payments, memPayment{userID: userID, amountCents: amountCents, createdAt: time.Now()})
	return u.BalanceCents, nil
}

func (m *memLedger) paymentCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.payments {
		if p.userID == userID {
			n++
		}
	}
	return n
}

func (m *memLedger) balance(userID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[userID].BalanceCents
}
