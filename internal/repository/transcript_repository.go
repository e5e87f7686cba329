package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// TranscriptRepository reads transcript credit records.
type TranscriptRepository struct {
	db *sqlx.DB
}

// NewTranscriptRepository constructs the repository.
func NewTranscriptRepository(db *sqlx.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// SumCreditsOverlapping sums credit values of transcript records whose
// interval overlaps the window (record end on or after the window start,
// record start on or before the window end). Null when nothing overlaps.
func (r *TranscriptRepository) SumCreditsOverlapping(ctx context.Context, studentID string, start, end time.Time) (sql.NullFloat64, error) {
	const query = `SELECT SUM(credit_value) FROM transcript_credits
        WHERE end_date >= $1
          AND start_date <= $2
          AND student_id = $3`
	var total sql.NullFloat64
	if err := r.db.GetContext(ctx, &total, query, start, end, studentID); err != nil {
		return sql.NullFloat64{}, fmt.Errorf("sum transcript credits for %s: %w", studentID, err)
	}
	return total, nil
}
