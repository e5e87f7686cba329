package models

import "time"

// Term models one entry of the academic term calendar.
type Term struct {
	Code      string    `db:"code" json:"code"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	Active    bool      `db:"active" json:"active"`
}

// Contains reports whether the given calendar day falls inside the term
// window, boundaries included.
func (t Term) Contains(day time.Time) bool {
	return !day.Before(t.StartDate) && !day.After(t.EndDate)
}
