package models

import "time"

// User represents an account entity used for authentication and authorization.
// Credential fields must never be exposed outside trusted boundaries.
type User struct {
	// UserID is the opaque unique identifier of the user (UUID v7).
	UserID string `json:"user_id"`

	// Email is the login handle. Unique and stored exactly as provided.
	Email string `json:"email"`

	// Name is the display name of the user.
	Name string `json:"name"`

	// PasswordHash is the bcrypt output for the user's password.
	// Never serialized.
	PasswordHash string `json:"-"`

	// TwoFactorEnabled is true once a TOTP secret has been confirmed.
	TwoFactorEnabled bool `json:"two_factor_enabled"`

	// TwoFactorSecret is the base32 TOTP secret. Present iff TwoFactorEnabled.
	TwoFactorSecret *string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile returns the public view of the user.
func (u User) Profile() ProfileResponse {
	return ProfileResponse{
		UserID:           u.UserID,
		Email:            u.Email,
		Name:             u.Name,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
	}
}

// BackupCode is a hashed one-time recovery code bound to a user.
type BackupCode struct {
	UserID   string
	CodeHash string
	UsedAt   *time.Time
}
