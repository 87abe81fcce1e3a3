package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentProcessor performs the atomic fixed-amount balance debit. It is the
// sole authorized mutator of users.balance_cents.
type PaymentProcessor interface {
	// MakePayment debits amountCents from userID's balance and appends a
	// payment row, atomically. It returns the new balance on success,
	// ErrAccountNotFound for an unknown user, or *InsufficientFundsError
	// (carrying the unchanged balance) when the balance cannot cover the
	// debit.
	MakePayment(ctx context.Context, userID int64, amountCents int64) (int64, error)
}

// PgPaymentProcessor implements PaymentProcessor on pgxpool.
//
// Each debit runs in a serializable transaction and reads the user row with
// FOR UPDATE. The row lock serializes concurrent debits against the same user
// up front; the isolation level closes any remaining write-skew window. Two
// concurrent debits racing on a balance that covers only one will therefore
// never both commit.
type PgPaymentProcessor struct {
	db *pgxpool.Pool
}

func NewPgPaymentProcessor(db *pgxpool.Pool) *PgPaymentProcessor {
	return &PgPaymentProcessor{db: db}
}

func (p *PgPaymentProcessor) MakePayment(ctx context.Context, userID int64, amountCents int64) (int64, error) {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, err
	}
	// Rollback is a no-op after a successful commit; every other exit path
	// must leave both tables untouched.
	defer func() { _ = tx.Rollback(ctx) }()

	const lockQ = `SELECT balance_cents FROM users WHERE id=$1 FOR UPDATE`
	var balance int64
	if err := tx.QueryRow(ctx, lockQ, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}

	if balance < amountCents {
		return 0, &InsufficientFundsError{BalanceCents: balance}
	}

	const debitQ = `UPDATE users SET balance_cents = balance_cents - $1 WHERE id=$2`
	if _, err := tx.Exec(ctx, debitQ, amountCents, userID); err != nil {
		return 0, err
	}

	const insertQ = `INSERT INTO payments (user_id, amount_cents, created_at) VALUES ($1,$2,NOW())`
	if _, err := tx.Exec(ctx, insertQ, userID, amountCents); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance - amountCents, nil
}
