package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusops/student-funds-api/internal/models"
)

// EnrollmentRepository reads the append-only enrollment history.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListCurrent returns the current enrollment per student: the record with
// the largest sequence number among accepted-status, enrollment-type records.
// Output is ordered ascending by student id so runs are reproducible.
func (r *EnrollmentRepository) ListCurrent(ctx context.Context, statuses []models.EnrollmentStatus) ([]models.Enrollment, error) {
	const query = `SELECT e.student_id, e.start_date, e.program_code, e.status, e.sequence_number, e.type
        FROM enrollments e
        JOIN (
            SELECT student_id, MAX(sequence_number) AS max_sequence
            FROM enrollments
            WHERE status = ANY($1) AND type = $2
            GROUP BY student_id
        ) latest ON latest.student_id = e.student_id AND latest.max_sequence = e.sequence_number
        WHERE e.status = ANY($1) AND e.type = $2
        ORDER BY e.student_id ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, pq.Array(statusStrings(statuses)), models.EnrollmentTypeEnrollment); err != nil {
		return nil, fmt.Errorf("list current enrollments: %w", err)
	}
	return enrollments, nil
}

// LatestAcceptedCredits returns the credit value of the most recent
// accepted-status enrollment record for the student. The legacy report took
// an arbitrary first match here; ordering by sequence number makes the
// choice explicit and stable. Null when no qualifying record exists.
func (r *EnrollmentRepository) LatestAcceptedCredits(ctx context.Context, studentID string, statuses []models.EnrollmentStatus) (sql.NullFloat64, error) {
	const query = `SELECT credit_value FROM enrollments
        WHERE student_id = $1 AND status = ANY($2) AND type = $3
        ORDER BY sequence_number DESC LIMIT 1`
	var credits sql.NullFloat64
	err := r.db.GetContext(ctx, &credits, query, studentID, pq.Array(statusStrings(statuses)), models.EnrollmentTypeEnrollment)
	if err == sql.ErrNoRows {
		return sql.NullFloat64{}, nil
	}
	if err != nil {
		return sql.NullFloat64{}, fmt.Errorf("latest accepted credits for %s: %w", studentID, err)
	}
	return credits, nil
}

// MaxSequence returns the largest enrollment sequence number recorded for
// the student across all statuses and record types. Null when the student
// has no enrollment rows at all.
func (r *EnrollmentRepository) MaxSequence(ctx context.Context, studentID string) (sql.NullInt64, error) {
	const query = `SELECT MAX(sequence_number) FROM enrollments WHERE student_id = $1`
	var sequence sql.NullInt64
	if err := r.db.GetContext(ctx, &sequence, query, studentID); err != nil {
		return sql.NullInt64{}, fmt.Errorf("max enrollment sequence for %s: %w", studentID, err)
	}
	return sequence, nil
}

func statusStrings(statuses []models.EnrollmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
