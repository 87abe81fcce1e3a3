package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenRecord represents one issued session. Rows are never deleted; the
// table doubles as an audit trail of every session ever minted.
type TokenRecord struct {
	ID        int64
	Jti       string
	UserID    int64
	ExpiresAt time.Time
	Revoked   bool
}

// TokenRepository defines persistence operations for issued sessions.
type TokenRepository interface {
	Insert(ctx context.Context, userID int64, jti string, expiresAt time.Time) error
	FindByJti(ctx context.Context, jti string) (*TokenRecord, error)
	// Revoke flips the revoked flag for jti. Returns false when the jti is
	// unknown. Revocation is one-way: the flag is only ever set, never cleared.
	Revoke(ctx context.Context, jti string) (bool, error)
	// IsJtiValid reports whether jti names a known, non-revoked session.
	IsJtiValid(ctx context.Context, jti string) (bool, error)
}

// PgTokenRepository implements TokenRepository using pgxpool.
type PgTokenRepository struct {
	db *pgxpool.Pool
}

func NewPgTokenRepository(db *pgxpool.Pool) *PgTokenRepository {
	return &PgTokenRepository{db: db}
}

func (r *PgTokenRepository) Insert(ctx context.Context, userID int64, jti string, expiresAt time.Time) error {
	const q = `INSERT INTO tokens (jti, user_id, expires_at, revoked) VALUES ($1,$2,$3,FALSE)`
	_, err := r.db.Exec(ctx, q, jti, userID, expiresAt)
	return err
}

func (r *PgTokenRepository) FindByJti(ctx context.Context, jti string) (*TokenRecord, error) {
	const q = `SELECT id, jti, user_id, expires_at, revoked FROM tokens WHERE jti=$1`
	var t TokenRecord
	if err := r.db.QueryRow(ctx, q, jti).Scan(&t.ID, &t.Jti, &t.UserID, &t.ExpiresAt, &t.Revoked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *PgTokenRepository) Revoke(ctx context.Context, jti string) (bool, error) {
	const q = `UPDATE tokens SET revoked=TRUE WHERE jti=$1`
	ct, err := r.db.Exec(ctx, q, jti)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PgTokenRepository) IsJtiValid(ctx context.Context, jti string) (bool, error) {
	const q = `SELECT NOT revoked FROM tokens WHERE jti=$1`
	var valid bool
	if err := r.db.QueryRow(ctx, q, jti).Scan(&valid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return valid, nil
}
