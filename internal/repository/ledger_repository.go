package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campusops/student-funds-api/internal/models"
)

// LedgerRepository reads the student account ledger.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// SumTuition sums tuition-coded transactions for a student inside the date
// window, boundaries included. The sum is null when no tuition transaction
// exists in the window; callers must keep that distinct from a zero sum.
func (r *LedgerRepository) SumTuition(ctx context.Context, studentID string, start, end time.Time) (sql.NullFloat64, error) {
	const query = `SELECT SUM(amount) FROM account_ledger
        WHERE transaction_code = $1
          AND transaction_date >= $2
          AND transaction_date <= $3
          AND student_id = $4`
	var total sql.NullFloat64
	if err := r.db.GetContext(ctx, &total, query, models.TransactionCodeTuition, start, end, studentID); err != nil {
		return sql.NullFloat64{}, fmt.Errorf("sum tuition for %s: %w", studentID, err)
	}
	return total, nil
}
