package chat

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of them.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInternal         = errors.New("internal error")
)

var (
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrNotMember            = fmt.Errorf("user is not part of conversation: %w", ErrForbidden)
	ErrSelfConversation     = fmt.Errorf("cannot chat with yourself: %w", ErrInvalidOperation)
	ErrConversationExists   = fmt.Errorf("conversation already exists: %w", ErrInvalidOperation)
	ErrEmptyContent         = fmt.Errorf("message content is empty: %w", ErrInvalidOperation)
	ErrMissingTarget        = fmt.Errorf("conversation or recipient is required: %w", ErrInvalidOperation)
	ErrMalformedID          = fmt.Errorf("malformed conversation id: %w", ErrInvalidOperation)
)

// Kind returns the taxonomy error that err wraps, defaulting to ErrInternal.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrForbidden, ErrInvalidOperation, ErrUnauthorized} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// internal marks an unexpected store failure.
func internal(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrInternal, err)
}
