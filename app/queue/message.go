package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	DefaultStreamName    = "bills:due-requests"
	ConsumerGroup        = "due-bill-consumers"
	bodyField            = "body"
	receiveCountAttrName = "ApproximateReceiveCount"
)

// ErrMalformedBody is returned for queue bodies that are not a valid BillDueRequest.
var ErrMalformedBody = errors.New("malformed due-bill request body")

// Message is one delivery from the work queue. ReceiptHandle is valid only
// for this delivery and is the sole capability needed to delete it.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	// ReceiveCount is how many times the queue has delivered the message, 0 if unknown.
	ReceiveCount int
}

// BillDueRequest is the canonical JSON wire format of a queued request:
//
//	{"request_id": "...", "user_id": "...", "horizon_days": 5}
type BillDueRequest struct {
	RequestID   string `json:"request_id,omitempty"`
	UserID      string `json:"user_id"`
	HorizonDays *int   `json:"horizon_days"`
}

// Horizon returns the horizon in days; it is only valid after ParseBillDueRequest.
func (r BillDueRequest) Horizon() int {
	if r.HorizonDays == nil {
		return 0
	}
	return *r.HorizonDays
}

// NewBillDueRequest builds a request ready to be encoded.
func NewBillDueRequest(requestID string, userID string, horizonDays int) BillDueRequest {
	return BillDueRequest{RequestID: requestID, UserID: userID, HorizonDays: &horizonDays}
}

// Encode serializes the request to its wire body.
func (r BillDueRequest) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode due-bill request: %w", err)
	}
	return string(data), nil
}

// ParseBillDueRequest decodes and validates a queue body.
func ParseBillDueRequest(body string) (BillDueRequest, error) {
	if strings.TrimSpace(body) == "" {
		return BillDueRequest{}, fmt.Errorf("%w: empty body", ErrMalformedBody)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()

	var req BillDueRequest
	if err := dec.Decode(&req); err != nil {
		return BillDueRequest{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return BillDueRequest{}, fmt.Errorf("%w: trailing data after request", ErrMalformedBody)
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.UserID = strings.TrimSpace(req.UserID)

	if req.UserID == "" {
		return BillDueRequest{}, fmt.Errorf("%w: user_id is required", ErrMalformedBody)
	}
	if req.HorizonDays == nil {
		return BillDueRequest{}, fmt.Errorf("%w: horizon_days is required", ErrMalformedBody)
	}
	if *req.HorizonDays < 0 {
		return BillDueRequest{}, fmt.Errorf("%w: horizon_days must not be negative", ErrMalformedBody)
	}
	return req, nil
}

// Receiver is the consuming side of the work queue.
type Receiver interface {
	// Receive waits up to wait for a single message. It returns nil, nil when
	// nothing arrived in time.
	Receive(ctx context.Context, wait time.Duration) (*Message, error)
	// Delete acknowledges one delivery.
	Delete(ctx context.Context, msg Message) error
}

// Sender is the producing side of a queue.
type Sender interface {
	Send(ctx context.Context, body string) error
}
