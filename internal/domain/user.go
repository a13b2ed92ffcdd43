package domain

import "time"

// User represents an authenticated account. Identity and plan are resolved by
// the auth layer and trusted verbatim by credit accounting.
type User struct {
	ID        string
	Email     string
	Name      string
	Locale    string
	Plan      Plan
	CreatedAt time.Time
	UpdatedAt time.Time
}
