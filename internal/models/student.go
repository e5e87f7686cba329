package models

// Student is the directory entry used to resolve names on funding rows.
// A missing directory entry is not an error; the row carries empty names.
type Student struct {
	ID        string `db:"id" json:"id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}
