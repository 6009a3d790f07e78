package middleware

import (
	"context"

	common_models "coprox/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

// ActorMiddleware extracts the X-Actor header and adds it to the context so
// audit entries can name who made a change.
func ActorMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if actor := c.Get("X-Actor"); actor != "" {
			ctx := context.WithValue(c.UserContext(), common_models.ActorKey, actor)
			c.SetUserContext(ctx)
		}
		return c.Next()
	}
}
