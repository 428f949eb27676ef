package middleware

import (
	"github.com/gofiber/fiber/v2"

	"dinidesk_backend/internal/guard"
	"dinidesk_backend/pkg/metrics"
)

// Guard maps the access decision onto HTTP. Forbidden callers are
// redirected with an empty body; they never learn why.
func Guard(req guard.Requirement) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision := guard.Evaluate(guard.Input{
			State: StateFrom(c),
			Path:  c.OriginalURL(),
		}, req)
		metrics.GuardDecisionsTotal.WithLabelValues(string(decision.Status)).Inc()

		switch decision.Status {
		case guard.Authorized:
			return c.Next()
		case guard.Loading:
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusServiceUnavailable).Send(nil)
		default:
			return c.Redirect(decision.Redirect, fiber.StatusFound)
		}
	}
}

// Section guards a back-office section by its entry in guard.Routes.
func Section(section guard.Section) fiber.Handler {
	return Guard(guard.For(section))
}
