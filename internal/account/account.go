// Package account defines the identity records persisted by the auth service
// and the stores that hold them.
package account

import (
	"regexp"
	"strings"
	"time"
)

// Role is the closed set of account roles. There is no policy engine behind
// it; downstream services compare against these values directly.
type Role string

const (
	RoleFarmer Role = "Farmer"
	RoleBuyer  Role = "Buyer"
	RoleAdmin  Role = "Admin"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleBuyer, RoleAdmin:
		return true
	}
	return false
}

// Account is a stored identity record. Every account carries at least one
// authentication method: a password hash, a linked Google id, or both.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	GoogleID     string
	Role         Role
	Suspended    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Projection is the public shape of an account, safe to cache and to return
// to clients. It never carries the password hash.
type Projection struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"userType"`
}

// Project returns the public projection of the account.
func (a *Account) Project() Projection {
	return Projection{
		ID:    a.ID,
		Name:  a.Name,
		Email: a.Email,
		Role:  string(a.Role),
	}
}

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)

// NormalizeEmail lowercases and trims an email address. Email is the unique
// join key across authentication methods, so every lookup and write goes
// through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address has a plausible mailbox shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
