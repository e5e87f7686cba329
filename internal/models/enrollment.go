package models

import "time"

// EnrollmentStatus is the single-letter status code carried by enrollment
// records in the student information system.
type EnrollmentStatus string

const (
	EnrollmentStatusContinuing EnrollmentStatus = "C"
	EnrollmentStatusPending    EnrollmentStatus = "P"
	EnrollmentStatusWithdrawn  EnrollmentStatus = "W"
	EnrollmentStatusLeave      EnrollmentStatus = "L"
	EnrollmentStatusCancelled  EnrollmentStatus = "X"
)

// EnrollmentType distinguishes enrollment episodes from other record kinds
// stored in the same table.
type EnrollmentType string

// EnrollmentTypeEnrollment marks a record as an actual enrollment episode.
const EnrollmentTypeEnrollment EnrollmentType = "E"

// Enrollment is one entry of a student's append-only enrollment history.
// The current enrollment for a student is the accepted-status record of type
// Enrollment with the largest sequence number.
type Enrollment struct {
	StudentID      string           `db:"student_id" json:"student_id"`
	StartDate      time.Time        `db:"start_date" json:"start_date"`
	ProgramCode    string           `db:"program_code" json:"program_code"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	SequenceNumber int64            `db:"sequence_number" json:"sequence_number"`
	Type           EnrollmentType   `db:"type" json:"type"`
}
