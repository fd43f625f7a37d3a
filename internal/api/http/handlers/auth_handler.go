package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/eris-support/triage-service/internal/api/dto"
	"github.com/eris-support/triage-service/internal/auth"
	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/service"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// AuthHandler exposes operator login endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"data": dto.AuthResponse{
			Token:     res.Token,
			ExpiresAt: res.ExpiresAt,
			Operator:  operatorResponse(res.Operator),
		},
	})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"operator":   operatorResponse(session.Operator),
		"expires_at": session.ExpiresAt,
	}})
}

func operatorResponse(op *domain.Operator) dto.OperatorResponse {
	if op == nil {
		return dto.OperatorResponse{}
	}
	return dto.OperatorResponse{ID: op.ID, Email: op.Email, FullName: op.FullName, Role: op.Role}
}
