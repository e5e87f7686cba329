package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestDisbursementRepositorySumScheduledBetweenExcludesCancelled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDisbursementRepository(db)

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"sum"}).AddRow(2000.0)
	mock.ExpectQuery(regexp.QuoteMeta("AND status <> $4")).
		WithArgs("1001", start, end, "X").
		WillReturnRows(rows)

	total, err := repo.SumScheduledBetween(context.Background(), "1001", start, end, "X")
	require.NoError(t, err)
	require.True(t, total.Valid)
	require.Equal(t, 2000.0, total.Float64)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDisbursementRepositorySumScheduledBetweenFilterDisabled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDisbursementRepository(db)

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"sum"}).AddRow(2500.0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT SUM(net_amount_scheduled) FROM disbursements")).
		WithArgs("1001", start, end).
		WillReturnRows(rows)

	total, err := repo.SumScheduledBetween(context.Background(), "1001", start, end, "")
	require.NoError(t, err)
	require.True(t, total.Valid)
	require.Equal(t, 2500.0, total.Float64)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDisbursementRepositorySumByEnrollmentSequence(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDisbursementRepository(db)

	rows := sqlmock.NewRows([]string{"sum"}).AddRow(2000.0)
	mock.ExpectQuery(regexp.QuoteMeta("AND enrollment_sequence = $2")).
		WithArgs("1001", int64(2), "X").
		WillReturnRows(rows)

	total, err := repo.SumByEnrollmentSequence(context.Background(), "1001", 2, "X")
	require.NoError(t, err)
	require.True(t, total.Valid)
	require.Equal(t, 2000.0, total.Float64)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDisbursementRepositorySumByEnrollmentSequenceNoMatches(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDisbursementRepository(db)

	rows := sqlmock.NewRows([]string{"sum"}).AddRow(nil)
	mock.ExpectQuery(regexp.QuoteMeta("AND enrollment_sequence = $2")).
		WithArgs("1001", int64(9), "X").
		WillReturnRows(rows)

	total, err := repo.SumByEnrollmentSequence(context.Background(), "1001", 9, "X")
	require.NoError(t, err)
	require.False(t, total.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}
