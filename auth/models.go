package auth

import "time"

type Role string

const (
	// RoleManager may create and disable claim events, grant entitlements,
	// seed inventory and toggle the pause switch.
	RoleManager Role = "manager"
	// RoleClaimant may execute claims and trade on the marketplace.
	RoleClaimant Role = "claimant"
)

// User is the domain representation of an account. It mirrors the users
// table and carries no JSON annotations so it can be reused by different
// presentation layers.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains account registration data supplied by callers.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
