package domain

import "time"

// User is a principal: a locally registered or federated identity.
type User struct {
	ID           string
	Handle       string // unique public handle
	Email        string // unique contact address
	DisplayName  string
	PasswordHash string // argon2 encoded; random placeholder for federated-only users

	// ExternalID links the account to a federated identity provider subject.
	// Written once on first federated login; never overwritten.
	ExternalID *string

	// RefreshFingerprint is the fingerprint of the currently valid refresh
	// token. At most one is stored; a new one always supersedes the old.
	// Nil after logout.
	RefreshFingerprint *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SafeUser is the externally visible view of a User: credential hash and
// refresh fingerprint stripped.
type SafeUser struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Federated   bool   `json:"federated"`
}

// Safe returns the sanitized view of u.
func (u User) Safe() SafeUser {
	return SafeUser{
		ID:          u.ID,
		Handle:      u.Handle,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Federated:   u.ExternalID != nil,
	}
}
