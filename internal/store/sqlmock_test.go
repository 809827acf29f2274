package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/casedesk/internal/apperr"
)

func mockDB(t *testing.T, driver string) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return New(conn, driver), mock
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b IN ($2, $3)", pg.rebind("SELECT 1 WHERE a = ? AND b IN (?, ?)"))

	lite := &DB{driver: DriverSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestGetClient_PostgresPlaceholders(t *testing.T) {
	db, mock := mockDB(t, DriverPostgres)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM clients WHERE id = $1 AND user_id = $2`)).
		WithArgs("c1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "email", "phone", "address", "company", "status", "created_at", "updated_at"}).
			AddRow("c1", "u1", "Acme", "", "", "", "", "active", now, now))

	c, err := db.GetClient(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCase_NoRowsIsNotFound(t *testing.T) {
	db, mock := mockDB(t, DriverPostgres)
	mock.ExpectQuery(`FROM cases c`).WillReturnError(sql.ErrNoRows)

	_, err := db.GetCase(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseNotes_DriverErrorIsWrapped(t *testing.T) {
	db, mock := mockDB(t, DriverPostgres)
	boom := errors.New("connection reset")
	mock.ExpectQuery(`FROM notes`).WillReturnError(boom)

	_, err := db.CaseNotes(context.Background(), "u1", "case1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateCaseStatus_NoRowsAffected(t *testing.T) {
	db, mock := mockDB(t, DriverPostgres)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE cases SET status = $1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.UpdateCaseStatus(context.Background(), "u1", "case1", "closed")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSearchDocuments_PostgresUsesLike(t *testing.T) {
	db, mock := mockDB(t, DriverPostgres)
	mock.ExpectQuery(regexp.QuoteMeta(`lower(name) LIKE $2`)).
		WithArgs("u1", "%lease%", "%lease%", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "snippet"}).AddRow("d1", "Lease.pdf", "This lease"))

	res, err := db.SearchDocuments(context.Background(), "u1", "Lease", 0)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "d1", res[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
