package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockMySQL(t *testing.T) (*MySQLClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return WrapMySQL(db), mock
}

func TestMySQLClientRoundTrip(t *testing.T) {
	client, mock := newMockMySQL(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`ON DUPLICATE KEY UPDATE value = VALUES(value)`)).
		WithArgs("stats", `{"totalAnswered":2}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM quiz_state WHERE state_key = ?`)).
		WithArgs("stats").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"totalAnswered":2}`))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM quiz_state WHERE state_key = ?`)).
		WithArgs("stats").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, client.Set(ctx, "stats", `{"totalAnswered":2}`))
	value, found, err := client.Get(ctx, "stats")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"totalAnswered":2}`, value)
	require.NoError(t, client.Remove(ctx, "stats"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLClientGetMissingAndErrors(t *testing.T) {
	client, mock := newMockMySQL(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM quiz_state WHERE state_key = ?`)).
		WithArgs("questions").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM quiz_state WHERE state_key = ?`)).
		WithArgs("questions").
		WillReturnError(errors.New("connection reset"))

	_, found, err := client.Get(ctx, "questions")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = client.Get(ctx, "questions")
	assert.EqualError(t, err, "connection reset")
}

func TestMySQLClientInitSchema(t *testing.T) {
	client, mock := newMockMySQL(t)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS quiz_state`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, client.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
