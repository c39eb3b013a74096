package domain

import "time"

// Role labels. Anything that is not RoleAdmin is treated as RoleUser.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the identity record held by the identity provider.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	MetadataRole string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the resolved authenticated subject.
type Identity struct {
	SubjectID string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// IsAdmin reports whether the identity resolved to the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
