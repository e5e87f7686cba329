package models

import "time"

// TransactionCodeTuition selects the ledger entries that count as tuition
// charges when reconciling a term.
const TransactionCodeTuition = "Tuition"

// LedgerTransaction is one account ledger entry for a student.
type LedgerTransaction struct {
	StudentID       string    `db:"student_id" json:"student_id"`
	TransactionCode string    `db:"transaction_code" json:"transaction_code"`
	TransactionDate time.Time `db:"transaction_date" json:"transaction_date"`
	Amount          float64   `db:"amount" json:"amount"`
}
