package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketdesk/internal/domain"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

// RequireProfile ensures the caller has one of the allowed profiles.
func RequireProfile(allowed ...domain.UserProfile) fiber.Handler {
	allowedSet := make(map[domain.UserProfile]struct{}, len(allowed))
	for _, profile := range allowed {
		allowedSet[profile] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.User.Profile]; !exists {
			return apperrors.NewForbidden("insufficient profile")
		}
		return c.Next()
	}
}
