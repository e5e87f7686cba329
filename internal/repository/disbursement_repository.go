package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// DisbursementRepository reads the financial aid disbursement schedule.
type DisbursementRepository struct {
	db *sqlx.DB
}

// NewDisbursementRepository constructs the repository.
func NewDisbursementRepository(db *sqlx.DB) *DisbursementRepository {
	return &DisbursementRepository{db: db}
}

// SumScheduledBetween sums scheduled net amounts for a student with a
// scheduled date inside the window. When excludeStatus is non-empty,
// disbursements carrying that status are left out; an empty excludeStatus
// counts every record. The sum is null when nothing matches.
func (r *DisbursementRepository) SumScheduledBetween(ctx context.Context, studentID string, start, end time.Time, excludeStatus string) (sql.NullFloat64, error) {
	query := `SELECT SUM(net_amount_scheduled) FROM disbursements
        WHERE student_id = $1
          AND scheduled_date >= $2
          AND scheduled_date <= $3`
	args := []interface{}{studentID, start, end}
	if excludeStatus != "" {
		query += fmt.Sprintf(" AND status <> $%d", len(args)+1)
		args = append(args, excludeStatus)
	}
	var total sql.NullFloat64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return sql.NullFloat64{}, fmt.Errorf("sum term disbursements for %s: %w", studentID, err)
	}
	return total, nil
}

// SumByEnrollmentSequence sums scheduled net amounts attached to one
// enrollment episode of a student, with the same optional status exclusion.
func (r *DisbursementRepository) SumByEnrollmentSequence(ctx context.Context, studentID string, sequence int64, excludeStatus string) (sql.NullFloat64, error) {
	query := `SELECT SUM(net_amount_scheduled) FROM disbursements
        WHERE student_id = $1
          AND enrollment_sequence = $2`
	args := []interface{}{studentID, sequence}
	if excludeStatus != "" {
		query += fmt.Sprintf(" AND status <> $%d", len(args)+1)
		args = append(args, excludeStatus)
	}
	var total sql.NullFloat64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return sql.NullFloat64{}, fmt.Errorf("sum enrollment disbursements for %s: %w", studentID, err)
	}
	return total, nil
}
