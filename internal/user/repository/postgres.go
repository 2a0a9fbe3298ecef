package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/db"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectUser = `SELECT id, email, name, email_verified, status, created_at, updated_at FROM users`

// GetByID returns the user for id with roles loaded, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, selectUser+` WHERE id = $1`, id)
}

// GetByEmail returns the user with the given email (case-insensitive), or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, selectUser+` WHERE lower(email) = $1`, domain.NormalizeEmail(email))
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	var (
		u      domain.User
		status string
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &u.EmailVerified, &status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Status = domain.UserStatus(status)
	if u.Roles, err = r.roles(ctx, u.ID); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresRepository) roles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles, rows.Err()
}

// Create persists the user and its roles. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) (err error) {
	if err := u.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, name, email_verified, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.EmailVerified, string(u.Status), u.CreatedAt, u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if err = replaceRoles(ctx, tx, u.ID, u.Roles); err != nil {
		return err
	}
	return tx.Commit()
}

// Update writes name, verification flag, status and roles.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET name = $2, email_verified = $3, status = $4, updated_at = $5 WHERE id = $1`,
		u.ID, u.Name, u.EmailVerified, string(u.Status), u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if err = replaceRoles(ctx, tx, u.ID, u.Roles); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceRoles(ctx context.Context, tx *sql.Tx, userID string, roles []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, role); err != nil {
			return fmt.Errorf("insert role: %w", err)
		}
	}
	return nil
}
