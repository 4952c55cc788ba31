package preparer

import (
	"context"
	"fmt"

	"github.com/vibast-solutions/ms-go-bills-due/app/entity"
)

type NotificationPreparer interface {
	Prepare(ctx context.Context, recipient string, bills []entity.Bill) (Notification, error)
}

// Notification is the outbound message; it is not modified after Prepare returns.
type Notification struct {
	RecipientEmail string
	BillReferences []string
	Body           string
}

// Message is the mutable state passed between preparer steps.
type Message struct {
	Recipient      string
	Bills          []entity.Bill
	BillReferences []string
	Body           string
}

type Step interface {
	Prepare(ctx context.Context, msg *Message) error
}

type Chain struct {
	steps []Step
}

// NewChain builds a notification preparer chain from steps.
func NewChain(steps ...Step) *Chain {
	return &Chain{steps: steps}
}

// Prepare runs all preparer steps and returns the finished notification.
func (c *Chain) Prepare(ctx context.Context, recipient string, bills []entity.Bill) (Notification, error) {
	msg := &Message{
		Recipient: recipient,
		Bills:     bills,
	}

	for _, step := range c.steps {
		if err := step.Prepare(ctx, msg); err != nil {
			return Notification{}, err
		}
	}

	if msg.Body == "" {
		return Notification{}, fmt.Errorf("prepared notification body is empty")
	}

	refs := make([]string, len(msg.BillReferences))
	copy(refs, msg.BillReferences)

	return Notification{
		RecipientEmail: msg.Recipient,
		BillReferences: refs,
		Body:           msg.Body,
	}, nil
}
