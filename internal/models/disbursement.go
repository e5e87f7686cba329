package models

import "time"

// Disbursement is one scheduled release of financial aid funds to a
// student's account.
type Disbursement struct {
	StudentID          string    `db:"student_id" json:"student_id"`
	EnrollmentSequence int64     `db:"enrollment_sequence" json:"enrollment_sequence"`
	ScheduledDate      time.Time `db:"scheduled_date" json:"scheduled_date"`
	NetAmountScheduled float64   `db:"net_amount_scheduled" json:"net_amount_scheduled"`
	Status             string    `db:"status" json:"status"`
}
