package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTermRepositoryFindCurrent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	day := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"code", "start_date", "end_date", "active"}).
		AddRow("2024SP", time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT code, start_date, end_date, active FROM terms")).
		WithArgs(day).
		WillReturnRows(rows)

	term, err := repo.FindCurrent(context.Background(), day)
	require.NoError(t, err)
	require.Equal(t, "2024SP", term.Code)
	require.True(t, term.Contains(day))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryFindCurrentNoActiveTerm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT code, start_date, end_date, active FROM terms")).
		WithArgs(day).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCurrent(context.Background(), day)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
