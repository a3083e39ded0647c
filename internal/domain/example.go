package domain

import "time"

// Example is the template entity stored by the relational backends.
// IDs are UUID strings assigned by the service layer.
type Example struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
