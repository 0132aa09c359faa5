package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is wrapped by every "row does not exist" error of this package.
	ErrNotFound = errors.New("not found")

	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrConversationExists   = errors.New("conversation already exists")
	ErrSelfConversation     = errors.New("cannot create conversation with self")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
