package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims is the resolved identity attached to an authenticated request.
// The policy engine trusts these fields verbatim.
type JWTClaims struct {
	UserID       string `json:"user_id"`
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id"`
	jwt.RegisteredClaims
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the issued access token plus basic identity info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	User        UserInfo  `json:"user"`
}

// UserInfo is the public identity subset returned on login.
type UserInfo struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id"`
}
