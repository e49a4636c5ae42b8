package domain

import "time"

// Role classifies what a user may do across services.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole maps a raw role value to a known Role. An empty value
// defaults to USER; anything else unknown is rejected.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case "":
		return RoleUser, true
	case RoleUser, RoleAdmin:
		return Role(raw), true
	default:
		return "", false
	}
}

// User is the identity record. Email is the login key and is unique
// across all users (exact match, case-sensitive). PasswordHash holds the
// one-way digest of the secret and never leaves the service.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
