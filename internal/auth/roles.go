package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/eris-support/triage-service/internal/domain"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// RequireRole ensures the operator holds one of the allowed roles. With no
// roles listed any authenticated operator passes.
func RequireRole(allowed ...domain.OperatorRole) fiber.Handler {
	allowedSet := make(map[domain.OperatorRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		session, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("operator session required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[session.Operator.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireBotSecret guards the notification bot endpoints with the shared
// X-Bot-Secret header. An unset secret rejects every request.
func RequireBotSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" || subtle.ConstantTimeCompare([]byte(c.Get("X-Bot-Secret")), []byte(secret)) != 1 {
			return apperrors.NewForbidden("invalid bot secret")
		}
		return c.Next()
	}
}
