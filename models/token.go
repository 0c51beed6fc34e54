package models

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeBearer is the only token type issued by the service.
const TokenTypeBearer = "Bearer"

// AccessClaims is the claim set of an access token.
//
// Only RFC 7519 registered claims are used: the user id travels in "sub",
// the token id in "jti".
type AccessClaims struct {
	jwt.RegisteredClaims
}

// UserID returns the owner of the token taken from the "sub" claim.
func (c *AccessClaims) UserID() (string, error) {
	sub, err := c.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("empty subject claim")
	}
	return sub, nil
}

// TokenPair is the credential set returned after a successful authentication.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// RefreshRecord is the session-store value kept for an outstanding refresh
// token. The token itself is never stored, only its SHA-256 digest as key.
type RefreshRecord struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginChallenge is the transient state between password verification and
// second-factor verification.
type LoginChallenge struct {
	ChallengeID string    `json:"-"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PendingTwoFactor holds a generated but not yet confirmed TOTP secret.
type PendingTwoFactor struct {
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResult is the outcome of a password login. Exactly one of Tokens and
// Challenge is set.
type LoginResult struct {
	Tokens    *TokenPair
	Challenge *LoginChallenge
}

// TwoFactorEnrollment is returned when a user starts enabling 2FA.
type TwoFactorEnrollment struct {
	Secret     string `json:"secret"`
	OTPAuthURI string `json:"otpauth_uri"`
	QRCode     string `json:"qr_code"`
}
