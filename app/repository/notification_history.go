package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type NotificationHistoryRepository struct {
	db *sql.DB
}

// NewNotificationHistoryRepository constructs a repository backed by MySQL.
func NewNotificationHistoryRepository(db *sql.DB) *NotificationHistoryRepository {
	return &NotificationHistoryRepository{db: db}
}

// Begin records a processing attempt, creating the row on first delivery.
func (r *NotificationHistoryRepository) Begin(ctx context.Context, requestID string, userID string, horizonDays int, status int16) error {
	const query = `
		INSERT INTO notification_history (request_id, user_id, horizon_days, status, attempts)
		VALUES (?, ?, ?, ?, 1)
		ON DUPLICATE KEY UPDATE status = VALUES(status), attempts = attempts + 1
	`
	_, err := r.db.ExecContext(ctx, query, requestID, userID, horizonDays, status)
	return err
}

// GetStatus returns the stored status for a request ID or ErrNotFound.
func (r *NotificationHistoryRepository) GetStatus(ctx context.Context, requestID string) (int16, error) {
	const query = `
		SELECT status
		FROM notification_history
		WHERE request_id = ?
	`
	var status int16
	if err := r.db.QueryRowContext(ctx, query, requestID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("query notification status: %w", err)
	}
	return status, nil
}

// UpdateStatus updates the status for a request ID.
func (r *NotificationHistoryRepository) UpdateStatus(ctx context.Context, requestID string, status int16) error {
	const query = `
		UPDATE notification_history
		SET status = ?
		WHERE request_id = ?
	`
	_, err := r.db.ExecContext(ctx, query, status, requestID)
	return err
}

// UpdatePayload stores the published body for a request ID.
func (r *NotificationHistoryRepository) UpdatePayload(ctx context.Context, requestID string, payload string) error {
	const query = `
		UPDATE notification_history
		SET payload = ?
		WHERE request_id = ?
	`
	_, err := r.db.ExecContext(ctx, query, payload, requestID)
	return err
}
