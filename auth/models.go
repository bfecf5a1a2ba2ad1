// Package auth manages the operator accounts guarding the release API.
// Accounts live in a JSON file next to the run log, so the service needs no
// extra infrastructure to protect its destructive endpoints.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is an operator account
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"password_hash"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	FailedLogins int        `json:"failed_logins"`
	Locked       bool       `json:"locked"`
}

// UserDatabase is the on-disk account store structure
type UserDatabase struct {
	Version   string          `json:"version"`
	Users     map[string]User `json:"users"` // keyed by username
	UpdatedAt time.Time       `json:"updated_at"`
}

// Claims are the JWT claims issued at login
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMode selects how the release API is protected
type AuthMode string

const (
	AuthModeNone AuthMode = "none" // Open API, for development only
	AuthModeJWT  AuthMode = "jwt"  // Operator accounts with role checks
)

// Operator roles. Admins may clear failed tasks and manage accounts;
// operators may inspect the queue and trigger runs.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)
