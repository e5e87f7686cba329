package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campusops/student-funds-api/internal/models"
)

// TermRepository reads the academic term calendar.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// FindCurrent returns the active term whose date window contains the given
// day, boundaries included. Overlapping active terms are a data anomaly; the
// lowest term code wins so repeated runs resolve the same term. Returns
// sql.ErrNoRows when no active term contains the day.
func (r *TermRepository) FindCurrent(ctx context.Context, day time.Time) (*models.Term, error) {
	const query = `SELECT code, start_date, end_date, active FROM terms
        WHERE start_date <= $1 AND end_date >= $1 AND active = TRUE
        ORDER BY code ASC LIMIT 1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, day); err != nil {
		return nil, err
	}
	return &term, nil
}
