package service

import (
	"errors"

	"github.com/vibast-solutions/ms-go-bills-due/app/repository"
)

var (
	// ErrInvalidRequest marks a request that can never be processed as sent.
	ErrInvalidRequest = errors.New("invalid due-bill request")
	// ErrUnprocessable marks stored data that cannot be turned into a notification.
	ErrUnprocessable = errors.New("unprocessable due-bill data")
)

// IsPermanent reports whether retrying err through redelivery cannot succeed
// without an outside change to the request or the stored data.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnprocessable) ||
		errors.Is(err, repository.ErrNotFound)
}
