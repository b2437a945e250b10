package repository

import (
	"context"
	"database/sql"
	"fmt"

	"stint/backend/internal/model"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO users (id, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		 FROM users
		 WHERE email = ?`,
		email,
	)
	return scanUser(row, "email")
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		 FROM users
		 WHERE id = ?`,
		id,
	)
	return scanUser(row, "id")
}

// CreateVersion seeds the optimistic-concurrency counter for a new user.
func (r *UserRepository) CreateVersion(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO user_versions (user_id, version) VALUES (?, 1)`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("create user version: %w", err)
	}
	return nil
}

func (r *UserRepository) GetVersion(ctx context.Context, userID string) (int, error) {
	var version int
	err := r.db.QueryRowContext(
		ctx,
		`SELECT version FROM user_versions WHERE user_id = ?`,
		userID,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get user version: %w", err)
	}
	return version, nil
}

func (r *UserRepository) GetVersionTx(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	var version int
	err := tx.QueryRowContext(
		ctx,
		`SELECT version FROM user_versions WHERE user_id = ?`,
		userID,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get user version: %w", err)
	}
	return version, nil
}

// BumpVersionTx increments the counter inside the caller's transaction so the
// new value becomes visible atomically with the stint change it tags.
func (r *UserRepository) BumpVersionTx(ctx context.Context, tx *sql.Tx, userID string) error {
	result, err := tx.ExecContext(
		ctx,
		`UPDATE user_versions SET version = version + 1 WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("bump user version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump user version: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row, by string) (*model.User, error) {
	var user model.User
	var createdAt string
	var updatedAt string
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by %s: %w", by, err)
	}

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse user created_at: %w", err)
	}
	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse user updated_at: %w", err)
	}
	user.CreatedAt = parsedCreatedAt
	user.UpdatedAt = parsedUpdatedAt

	return &user, nil
}
