package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRecord represents the users projection stored in the persistence layer.
type UserRecord struct {
	ID           int64
	Username     string
	PasswordHash string
	BalanceCents int64
}

// UserRepository defines persistence operations for users. Balance mutation is
// deliberately absent: only the payment processor touches balance_cents, under
// its own transaction.
type UserRepository interface {
	// FindByUsername returns (nil, nil) when no such user exists, so callers
	// can treat absence as a normal outcome rather than a storage failure.
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	// Create provisions a new account. A username collision yields
	// ErrDuplicateAccount.
	Create(ctx context.Context, username, passwordHash string, balanceCents int64) (int64, error)
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	const q = `SELECT id, username, password_hash, balance_cents FROM users WHERE username=$1`
	var u UserRecord
	if err := r.db.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.BalanceCents); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, username, passwordHash string, balanceCents int64) (int64, error) {
	const q = `INSERT INTO users (username, password_hash, balance_cents) VALUES ($1,$2,$3) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, username, passwordHash, balanceCents).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateAccount
		}
		return 0, err
	}
	return id, nil
}

// isUniqueViolation reports whether err is a postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
