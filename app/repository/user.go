package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type UserRepository struct {
	db *sql.DB
}

// NewUserRepository constructs a repository backed by MySQL.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetEmail returns the email address of userID or ErrNotFound.
func (r *UserRepository) GetEmail(ctx context.Context, userID string) (string, error) {
	const query = `
		SELECT email_address
		FROM users
		WHERE id = ?
	`
	var email string
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return "", fmt.Errorf("query user email: %w", err)
	}
	return email, nil
}
