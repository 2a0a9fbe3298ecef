package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/db"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/session/domain"
)

const sessionColumns = `id, user_id, refresh_token_hash, expires_at, revoked_at,
	replaced_by_session_id, ip_address, user_agent, created_at`

const insertSession = `INSERT INTO auth_sessions (` + sessionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// PostgresRepository stores sessions in the auth_sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM auth_sessions WHERE id = $1`, id)
	return scanOne(row)
}

// GetByRefreshTokenHash returns the session owning hash, or nil if not found.
func (r *PostgresRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM auth_sessions WHERE refresh_token_hash = $1`, hash)
	return scanOne(row)
}

// ListByUser returns the user's sessions, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM auth_sessions WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, insertSession, insertArgs(s)...)
	if db.IsUniqueViolation(err) {
		return ErrSessionConflict
	}
	return err
}

// Revoke marks the session revoked unless it already is.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auth_sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RevokeAllActiveByUser revokes every unrevoked session of the user.
func (r *PostgresRepository) RevokeAllActiveByUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auth_sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Rotate inserts successor and retires the predecessor in one transaction. The conditional
// UPDATE takes the predecessor's row lock, so of two concurrent rotations exactly one
// sees a row affected; the other rolls back its successor.
func (r *PostgresRepository) Rotate(ctx context.Context, predecessorID string, successor *domain.Session, at time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertSession, insertArgs(successor)...); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrSessionConflict
		}
		return fmt.Errorf("insert successor: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE auth_sessions SET revoked_at = $2, replaced_by_session_id = $3
		 WHERE id = $1 AND revoked_at IS NULL AND replaced_by_session_id IS NULL`,
		predecessorID, at, successor.ID)
	if err != nil {
		return fmt.Errorf("retire predecessor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = ErrSessionConflict
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit rotate: %w", err)
	}
	return nil
}

func insertArgs(s *domain.Session) []any {
	return []any{
		s.ID,
		s.UserID,
		s.RefreshTokenHash,
		s.ExpiresAt,
		timeToNullTime(s.RevokedAt),
		stringPtrToNull(s.ReplacedBySessionID),
		sql.NullString{String: s.IPAddress, Valid: s.IPAddress != ""},
		sql.NullString{String: s.UserAgent, Valid: s.UserAgent != ""},
		s.CreatedAt,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*domain.Session, error) {
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func scanSession(sc scanner) (*domain.Session, error) {
	var (
		s          domain.Session
		revokedAt  sql.NullTime
		replacedBy sql.NullString
		ip, ua     sql.NullString
	)
	if err := sc.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.ExpiresAt, &revokedAt,
		&replacedBy, &ip, &ua, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.RevokedAt = nullTimeToPtr(revokedAt)
	if replacedBy.Valid {
		id := replacedBy.String
		s.ReplacedBySessionID = &id
	}
	s.IPAddress = ip.String
	s.UserAgent = ua.String
	return &s, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

func stringPtrToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
