package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the claims carried by console access tokens. Tokens are issued by the
// upstream identity service; the console only verifies them.
type SessionClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
