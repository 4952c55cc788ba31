package provider

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-bills-due/app/preparer"
)

// NoopPublisher is a stubbed publisher that only logs notifications.
type NoopPublisher struct {
	logger logrus.FieldLogger
}

// NewNoopPublisher constructs a no-op notification publisher.
func NewNoopPublisher(logger logrus.FieldLogger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

// Publish logs the notification and returns nil.
func (p *NoopPublisher) Publish(_ context.Context, n preparer.Notification) error {
	p.logger.WithFields(logrus.Fields{
		"recipient": n.RecipientEmail,
		"bills":     len(n.BillReferences),
	}).Info("Noop publisher dropped notification")
	return nil
}
