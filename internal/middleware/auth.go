package middleware

import (
	"context"
	"strings"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// TokenParser validates a bearer token and returns the user it was issued to.
type TokenParser func(token string) (uint, error)

// AuthRequired rejects requests without a valid bearer token. On success the
// user ID is stored in c.Locals("userID") and in the request context.
func AuthRequired(parse TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Unauthorized. No token."))
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid authorization header format"))
		}

		userID, err := parse(parts[1])
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Unauthorized. Invalid token."))
		}

		c.Locals("userID", userID)
		ctx := context.WithValue(c.UserContext(), UserIDKey, userID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}
