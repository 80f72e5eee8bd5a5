package models

import "github.com/golang-jwt/jwt/v5"

// JwtCustomClaims is the payload of the access tokens we issue. Role is a hint
// for clients only; the server re-reads the role on every request.
type JwtCustomClaims struct {
	UserID string `json:"userID"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
