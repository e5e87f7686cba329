package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// ProgramRepository reads the program catalog pricing.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// FindActivePrice returns the raw price-per-credit text of the active
// catalog row for a program. The value is stored as free text upstream and
// is parsed (and degraded) by the caller. Returns sql.ErrNoRows when the
// program has no active row.
func (r *ProgramRepository) FindActivePrice(ctx context.Context, programCode string) (sql.NullString, error) {
	const query = `SELECT price_per_credit FROM programs
        WHERE program_code = $1 AND active = TRUE LIMIT 1`
	var price sql.NullString
	if err := r.db.GetContext(ctx, &price, query, programCode); err != nil {
		return sql.NullString{}, err
	}
	return price, nil
}
