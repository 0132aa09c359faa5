package repositories

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

const (
	convID  = "6f1c1c52-5d8e-4a57-9f0e-2b8a4c3f9e10"
	msgID   = "0b7e4c1a-2f0d-4d62-8b7a-5d3c9e1f2a44"
	msgID2  = "9a1d2e3f-4b5c-4d6e-8f70-8192a3b4c5d6"
	userAnn = "ann"
	userBob = "bob"
)

var createdAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), sqlMock
}

func messageRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "conversation_id", "sender_id", "content", "created_at"})
}

func conversationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user1_id", "user2_id", "message_ids", "opened_at", "created_at"})
}
