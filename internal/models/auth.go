package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims carried by an access token
type TokenClaims struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
