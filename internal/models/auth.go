package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims carries the identity and role of a management API caller.
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)
