package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/db"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/recovery/domain"
)

const tokenColumns = `id, user_id, token_hash, expires_at, consumed_at, created_at`

// PostgresRepository stores recovery codes in the password_reset_tokens table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a recovery repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Issue retires the user's open code and inserts t in one transaction. The partial unique
// index on open codes turns a concurrent Issue into ErrActiveTokenConflict.
func (r *PostgresRepository) Issue(ctx context.Context, t *domain.ResetToken, at time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin issue: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx,
		`UPDATE password_reset_tokens SET consumed_at = $2 WHERE user_id = $1 AND consumed_at IS NULL`,
		t.UserID, at); err != nil {
		return fmt.Errorf("consume previous codes: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, NULL, $5)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrActiveTokenConflict
		}
		return fmt.Errorf("insert code: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit issue: %w", err)
	}
	return nil
}

// GetActive returns the user's open code, or nil if there is none.
func (r *PostgresRepository) GetActive(ctx context.Context, userID string) (*domain.ResetToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM password_reset_tokens WHERE user_id = $1 AND consumed_at IS NULL`, userID)
	var (
		t          domain.ResetToken
		consumedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &consumedAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if consumedAt.Valid {
		t.ConsumedAt = &consumedAt.Time
	}
	return &t, nil
}

// Consume marks the code used. Of two concurrent calls only one sees a row affected.
func (r *PostgresRepository) Consume(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE password_reset_tokens SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ConsumeAllForUser burns every open code of the user.
func (r *PostgresRepository) ConsumeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE password_reset_tokens SET consumed_at = $2 WHERE user_id = $1 AND consumed_at IS NULL`, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
