package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type DueBillProducer struct {
	sender Sender
}

// NewDueBillProducer constructs a producer of due-bill requests.
func NewDueBillProducer(sender Sender) *DueBillProducer {
	return &DueBillProducer{sender: sender}
}

// EnqueueDueBillRequest queues a request for userID and returns its request ID.
func (p *DueBillProducer) EnqueueDueBillRequest(ctx context.Context, userID string, horizonDays int) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user_id is required")
	}
	if horizonDays < 0 {
		return "", fmt.Errorf("horizon_days must not be negative")
	}

	requestID := uuid.NewString()
	body, err := NewBillDueRequest(requestID, userID, horizonDays).Encode()
	if err != nil {
		return "", err
	}
	if err := p.sender.Send(ctx, body); err != nil {
		return "", err
	}
	return requestID, nil
}
