package models

// Program carries the catalog pricing for an academic program. The
// price-per-credit is stored as free text upstream and may be blank or
// malformed; parsing happens in the fact calculator, which degrades bad
// values to zero instead of failing a run.
type Program struct {
	ProgramCode    string `db:"program_code" json:"program_code"`
	PricePerCredit string `db:"price_per_credit" json:"price_per_credit"`
	Active         bool   `db:"active" json:"active"`
}
