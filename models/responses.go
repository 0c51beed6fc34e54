package models

import "time"

// SignupResponse is returned with 201 after a successful signup.
type SignupResponse struct {
	UserID string `json:"user_id"`
}

// ChallengeResponse tells the client that a second factor is required.
type ChallengeResponse struct {
	TwoFactorRequired bool   `json:"two_factor_required"`
	ChallengeID       string `json:"challenge_id"`
	// ExpiresIn is the remaining challenge lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// ProfileResponse is the public view of an account.
type ProfileResponse struct {
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`

	// BackupCodesRemaining counts unused backup codes. Set only when
	// two-factor authentication is enabled.
	BackupCodesRemaining *int `json:"backup_codes_remaining,omitempty"`
}

// TwoFactorStatusResponse reports the 2FA flag after confirm or disable.
type TwoFactorStatusResponse struct {
	TwoFactorEnabled bool     `json:"two_factor_enabled"`
	BackupCodes      []string `json:"backup_codes,omitempty"`
}

// BackupCodesResponse carries freshly generated backup codes. They are shown
// once and never retrievable again.
type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
