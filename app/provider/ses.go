package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/vibast-solutions/ms-go-bills-due/app/preparer"
)

const sesSubject = "Bills due soon"

// SESAPI is the subset of the SES v2 client used by SESPublisher.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESPublisher struct {
	client SESAPI
	source string
}

// NewSESPublisher builds a publisher that emails the recipient directly via SES.
func NewSESPublisher(client SESAPI, source string) *SESPublisher {
	return &SESPublisher{client: client, source: source}
}

// NewSESPublisherFromConfig builds an SES client from cfg and wraps it.
func NewSESPublisherFromConfig(cfg aws.Config, source string) *SESPublisher {
	return NewSESPublisher(sesv2.NewFromConfig(cfg), source)
}

// Publish sends the notification body as a plain-text email.
func (p *SESPublisher) Publish(ctx context.Context, n preparer.Notification) error {
	if p.source == "" {
		return fmt.Errorf("source email is required")
	}
	if n.RecipientEmail == "" {
		return fmt.Errorf("recipient is required")
	}
	if n.Body == "" {
		return fmt.Errorf("notification body is required")
	}

	_, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(p.source),
		Destination: &types.Destination{
			ToAddresses: []string{n.RecipientEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(sesSubject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(n.Body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}

	return nil
}
