package domain

import "time"

// User is an account provisioned from an external identity provider.
// The ID is the provider's subject claim; there are no local credentials.
type User struct {
	ID        string
	Email     string
	Username  string
	FirstName string
	LastName  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity carries the claims extracted from a verified bearer token.
type Identity struct {
	Sub       string
	Email     string
	FirstName string
	LastName  string
}
