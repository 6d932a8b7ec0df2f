package domain

import (
	"time"
)

// Role represents a user role used for route-level authorization
type Role string

const (
	RoleHost     Role = "HOST"
	RoleSupplier Role = "SUPPLIER"
	RoleAdmin    Role = "ADMIN"
)

// User represents a platform user account
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize password
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	OrgID        string    `json:"organization_id"`
	DeptID       string    `json:"department_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the decoded, verified form of an access token.
// It is constructed only by the token validator and never persisted
// server-side; authorization is derivable entirely from it.
type Identity struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	OrgID     string    `json:"organization_id"`
	DeptID    string    `json:"department_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds until access token expires
}
