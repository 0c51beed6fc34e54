package models

// SignupRequest is the body of POST /api/v1/auth/signup.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,min=6,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginCodeRequest answers a login challenge with a TOTP code.
type LoginCodeRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required"`
	Code        string `json:"code" validate:"required,numeric,len=6"`
}

// LoginBackupCodeRequest answers a login challenge with a backup code.
type LoginBackupCodeRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required"`
	BackupCode  string `json:"backup_code" validate:"required,min=10,max=11"`
}

// RefreshRequest carries a refresh token for rotation or logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordRequest is the body of POST /api/v1/users/me/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
}

// UpdateEmailRequest is the body of PATCH /api/v1/users/me. The email is the
// login handle, so the current password is required.
type UpdateEmailRequest struct {
	Email    string `json:"email" validate:"required,email,min=6,max=254"`
	Password string `json:"password" validate:"required"`
}

// EnableTwoFactorRequest re-confirms the password before enrollment starts.
type EnableTwoFactorRequest struct {
	Password string `json:"password" validate:"required"`
}

// TwoFactorCodeRequest carries a single TOTP code.
type TwoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

// DisableTwoFactorRequest requires both factors.
type DisableTwoFactorRequest struct {
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"required,numeric,len=6"`
}
