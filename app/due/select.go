// Package due decides which of a user's bills fall inside a notification horizon.
package due

import (
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-bills-due/app/entity"
)

var (
	// ErrNoBills reports that the user owns no bills at all. It is not a failure.
	ErrNoBills = errors.New("user has no bills")
	// ErrNegativeHorizon is returned for a horizon below zero days.
	ErrNegativeHorizon = errors.New("horizon days must not be negative")
)

const secondsPerDay = 24 * 60 * 60

// Select returns the bills due between now and now+horizonDays inclusive,
// in input order. Overdue bills are never selected.
func Select(bills []entity.Bill, horizonDays int, now time.Time) ([]entity.Bill, error) {
	if horizonDays < 0 {
		return nil, ErrNegativeHorizon
	}
	if len(bills) == 0 {
		return nil, ErrNoBills
	}

	selected := make([]entity.Bill, 0, len(bills))
	for _, bill := range bills {
		days := DaysUntil(bill.DueDate, now)
		if days >= 0 && days <= horizonDays {
			selected = append(selected, bill)
		}
	}
	return selected, nil
}

// DaysUntil counts whole calendar days from now to dueDate, both taken as UTC dates.
func DaysUntil(dueDate, now time.Time) int {
	return int((civilDate(dueDate).Unix() - civilDate(now).Unix()) / secondsPerDay)
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
