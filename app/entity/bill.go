package entity

import "time"

type Bill struct {
	ID      string
	OwnerID string
	// DueDate is a calendar date; any time component is ignored.
	DueDate time.Time
	// AccessReference is an absolute URL for the bill when the store has one.
	AccessReference string
}

type User struct {
	ID    string
	Email string
}
