package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MKhiriev/go-todo-auth/models"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidJWTParams      = errors.New("invalid params for generating JWT token")
	ErrInvalidAuthorization  = errors.New("invalid authorization header")
	ErrUnsupportedAuthScheme = errors.New("unsupported authorization scheme")

	signingMethod = jwt.SigningMethodHS256
)

// SignAccessToken creates a signed HMAC-SHA256 JWT with the given parameters.
//
// The token includes the following registered claims:
//   - Issuer    (iss): identifies the service that issued the token
//   - Subject   (sub): the user ID
//   - ID        (jti): unique token id
//   - IssuedAt  (iat): issuedAt
//   - ExpiresAt (exp): issuedAt plus ttl
//
// Example usage:
//
//	token, err := utils.SignAccessToken("todo", userID, jti, time.Now(), 15*time.Minute, key)
func SignAccessToken(issuer, userID, tokenID string, issuedAt time.Time, ttl time.Duration, signKey []byte) (string, error) {
	if issuer == "" || userID == "" || ttl <= 0 || len(signKey) == 0 {
		return "", ErrInvalidJWTParams
	}

	claims := models.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, &claims).SignedString(signKey)
	if err != nil {
		return "", fmt.Errorf("error occurred during signing JWT token: %w", err)
	}

	return signed, nil
}

// ParseAccessToken verifies the signature, issuer and expiry of tokenString
// against now and returns its claims.
//
// Only HS256 is accepted; "alg":"none" and algorithm substitution are
// rejected by the parser. The returned error wraps jwt.ErrTokenExpired when
// the token is otherwise valid but expired.
func ParseAccessToken(tokenString string, signKey []byte, issuer string, now time.Time) (*models.AccessClaims, error) {
	claims := &models.AccessClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return signKey, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("error occurred validating and parsing token: %w", err)
	}

	if _, err = claims.UserID(); err != nil {
		return nil, fmt.Errorf("error occurred during getting subject from token: %w", err)
	}

	return claims, nil
}

// ParseBearerToken extracts the credential from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func ParseBearerToken(authorizationHeader string) (string, error) {
	parts := strings.Fields(authorizationHeader)
	if len(parts) != 2 {
		return "", ErrInvalidAuthorization
	}
	if !strings.EqualFold(parts[0], models.TokenTypeBearer) {
		return "", ErrUnsupportedAuthScheme
	}
	return parts[1], nil
}
