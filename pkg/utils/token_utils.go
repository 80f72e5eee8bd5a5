package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"laundry-pickup/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateSecureToken creates a random, URL-safe string.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand.Read failed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewAccessToken signs an HS256 token for the user. The role claim is only a
// hint for clients; the server reloads the role on every request.
func NewAccessToken(secret string, user *models.User, ttl time.Duration, now time.Time) (string, error) {
	claims := &models.JwtCustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates a token outside the echo middleware (e.g. the
// websocket query parameter).
func ParseAccessToken(secret, token string) (*models.JwtCustomClaims, error) {
	claims := new(models.JwtCustomClaims)
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrForbidden, err)
	}
	return claims, nil
}
