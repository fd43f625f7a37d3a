package dto

import (
	"time"

	"github.com/eris-support/triage-service/internal/domain"
)

// LoginRequest payload for operator login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Operator  OperatorResponse `json:"operator"`
}

// OperatorResponse describes a signed-in operator.
type OperatorResponse struct {
	ID       string              `json:"id"`
	Email    string              `json:"email"`
	FullName string              `json:"full_name"`
	Role     domain.OperatorRole `json:"role"`
}
