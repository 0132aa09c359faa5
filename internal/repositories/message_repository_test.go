package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	insertMessage = regexp.QuoteMeta(`INSERT INTO messages (id, conversation_id, sender_id, content)`)
	appendMessage = regexp.QuoteMeta(`UPDATE conversations SET message_ids = array_append(message_ids, $2::uuid) WHERE id=$1`)
)

func TestAppendLinksMessageInTransaction(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewMessageRepo(db)

	sqlMock.ExpectBegin()
	sqlMock.ExpectQuery(insertMessage).
		WithArgs(sqlmock.AnyArg(), convID, userAnn, "hi").
		WillReturnRows(messageRows().AddRow(msgID, convID, userAnn, "hi", createdAt))
	sqlMock.ExpectExec(appendMessage).
		WithArgs(convID, msgID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectCommit()

	msg, err := repo.Append(context.Background(), convID, userAnn, "hi")
	require.NoError(t, err)
	assert.Equal(t, msgID, msg.ID)
	assert.Equal(t, convID, msg.ConversationID)
	assert.Equal(t, userAnn, msg.SenderID)
	assert.Equal(t, createdAt, msg.CreatedAt)
	require.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestAppendRollsBackWhenConversationVanishes(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewMessageRepo(db)

	sqlMock.ExpectBegin()
	sqlMock.ExpectQuery(insertMessage).
		WillReturnRows(messageRows().AddRow(msgID, convID, userAnn, "hi", createdAt))
	sqlMock.ExpectExec(appendMessage).
		WithArgs(convID, msgID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	sqlMock.ExpectRollback()

	_, err := repo.Append(context.Background(), convID, userAnn, "hi")
	require.ErrorIs(t, err, ErrConversationNotFound)
	require.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestAppendRollsBackWhenLinkFails(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewMessageRepo(db)
	boom := errors.New("connection reset")

	sqlMock.ExpectBegin()
	sqlMock.ExpectQuery(insertMessage).
		WillReturnRows(messageRows().AddRow(msgID, convID, userAnn, "hi", createdAt))
	sqlMock.ExpectExec(appendMessage).WillReturnError(boom)
	sqlMock.ExpectRollback()

	_, err := repo.Append(context.Background(), convID, userAnn, "hi")
	require.ErrorIs(t, err, boom)
	require.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestAppendMapsForeignKeyViolation(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewMessageRepo(db)

	sqlMock.ExpectBegin()
	sqlMock.ExpectQuery(insertMessage).WillReturnError(&pq.Error{Code: pqForeignKeyViolation})
	sqlMock.ExpectRollback()

	_, err := repo.Append(context.Background(), convID, userAnn, "hi")
	require.ErrorIs(t, err, ErrConversationNotFound)
	require.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestAppendRejectsMalformedIDWithoutQuery(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewMessageRepo(db)

	_, err := repo.Append(context.Background(), "not-a-uuid", userAnn, "hi")
	require.ErrorIs(t, err, ErrConversationNotFound)
	require.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestListForConversationKeepsAppendOrder(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewMessageRepo(db)

	sqlMock.ExpectQuery(regexp.QuoteMeta(`unnest(c.message_ids) WITH ORDINALITY`)).
		WithArgs(convID).
		WillReturnRows(messageRows().
			AddRow(msgID2, convID, userBob, "second", createdAt).
			AddRow(msgID, convID, userAnn, "first", createdAt))

	msgs, err := repo.ListForConversation(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, msgID2, msgs[0].ID)
	assert.Equal(t, msgID, msgs[1].ID)
	require.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestListForConversationEmpty(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewMessageRepo(db)

	sqlMock.ExpectQuery(`ORDER BY ref.position ASC`).
		WithArgs(convID).
		WillReturnRows(messageRows())

	msgs, err := repo.ListForConversation(context.Background(), convID)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
	require.NoError(t, sqlMock.ExpectationsWereMet())
}
