package provider

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-bills-due/app/preparer"
)

// ErrTopicNotFound means no visible topic matches the configured name.
var ErrTopicNotFound = errors.New("topic not found")

type NotificationPublisher interface {
	Publish(ctx context.Context, notification preparer.Notification) error
}
