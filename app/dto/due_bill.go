package dto

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

var (
	ErrMissingUserID   = errors.New("user_id is required")
	ErrMissingHorizon  = errors.New("horizon_days is required")
	ErrNegativeHorizon = errors.New("horizon_days must not be negative")
)

type DueBillRequest struct {
	UserID      string `json:"user_id"`
	HorizonDays *int   `json:"horizon_days"`
}

type DueBillResponse struct {
	RequestID string `json:"request_id"`
}

// FromEchoContext binds and normalizes a request from Echo.
func FromEchoContext(ctx echo.Context) (DueBillRequest, error) {
	var req DueBillRequest
	if err := ctx.Bind(&req); err != nil {
		return DueBillRequest{}, err
	}
	req.UserID = strings.TrimSpace(req.UserID)
	return req, nil
}

// Validate checks required fields and the horizon range.
func (r *DueBillRequest) Validate() error {
	if r.UserID == "" {
		return ErrMissingUserID
	}
	if r.HorizonDays == nil {
		return ErrMissingHorizon
	}
	if *r.HorizonDays < 0 {
		return ErrNegativeHorizon
	}
	return nil
}
