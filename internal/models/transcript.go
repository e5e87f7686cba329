package models

import "time"

// TranscriptCredit records credits earned by a student over a date interval.
// Term credits sum every record whose interval overlaps the term window.
type TranscriptCredit struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	CreditValue float64   `db:"credit_value" json:"credit_value"`
}
