package preparer

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/vibast-solutions/ms-go-bills-due/app/entity"
)

// Delimiter separates the recipient and bill references in a notification body.
const Delimiter = ", "

// URLBuilder maps a bill to the reference published for it.
type URLBuilder func(bill entity.Bill) string

// AccessURLBuilder prefers the bill's own access reference and otherwise
// points at the bill resource under baseURL.
func AccessURLBuilder(baseURL string) URLBuilder {
	base := strings.TrimRight(baseURL, "/")
	return func(bill entity.Bill) string {
		if bill.AccessReference != "" {
			return bill.AccessReference
		}
		return base + "/v1/bill/" + bill.ID
	}
}

// Format joins the recipient and one reference per bill, in bill order.
func Format(email string, bills []entity.Bill, url URLBuilder) string {
	tokens := make([]string, 0, len(bills)+1)
	tokens = append(tokens, email)
	for _, bill := range bills {
		tokens = append(tokens, url(bill))
	}
	return strings.Join(tokens, Delimiter)
}

type RecipientStep struct{}

// NewRecipientStep creates a step that normalizes and validates the recipient address.
func NewRecipientStep() *RecipientStep {
	return &RecipientStep{}
}

// Prepare rejects recipients that are empty or not a bare email address.
func (s *RecipientStep) Prepare(_ context.Context, msg *Message) error {
	msg.Recipient = strings.TrimSpace(msg.Recipient)
	if msg.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	addr, err := mail.ParseAddress(msg.Recipient)
	if err != nil || addr.Address != msg.Recipient {
		return fmt.Errorf("recipient %q is not a valid email address", msg.Recipient)
	}
	return nil
}

type DueBillsStep struct {
	url URLBuilder
}

// NewDueBillsStep creates a step that renders the delimited due-bills body.
func NewDueBillsStep(url URLBuilder) *DueBillsStep {
	return &DueBillsStep{url: url}
}

// Prepare fills the bill references and the body.
func (s *DueBillsStep) Prepare(_ context.Context, msg *Message) error {
	refs := make([]string, 0, len(msg.Bills))
	for _, bill := range msg.Bills {
		ref := s.url(bill)
		if ref == "" {
			return fmt.Errorf("bill %s has no reference", bill.ID)
		}
		refs = append(refs, ref)
	}
	msg.BillReferences = refs
	msg.Body = Format(msg.Recipient, msg.Bills, s.url)
	return nil
}

// NewDuePreparer builds the standard chain for due-bill notifications.
func NewDuePreparer(baseURL string) *Chain {
	return NewChain(NewRecipientStep(), NewDueBillsStep(AccessURLBuilder(baseURL)))
}
