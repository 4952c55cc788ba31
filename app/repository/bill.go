package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vibast-solutions/ms-go-bills-due/app/entity"
)

type BillRepository struct {
	db *sql.DB
}

// NewBillRepository constructs a repository backed by MySQL.
func NewBillRepository(db *sql.DB) *BillRepository {
	return &BillRepository{db: db}
}

// ListByOwner returns every bill owned by userID in creation order.
func (r *BillRepository) ListByOwner(ctx context.Context, userID string) ([]entity.Bill, error) {
	const query = `
		SELECT id, user_id, due_date
		FROM bills
		WHERE user_id = ?
		ORDER BY bill_created, id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	defer rows.Close()

	var bills []entity.Bill
	for rows.Next() {
		var bill entity.Bill
		if err := rows.Scan(&bill.ID, &bill.OwnerID, &bill.DueDate); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}
	return bills, nil
}
