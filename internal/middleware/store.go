package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type StoreStatus interface {
	StoreOpen(ctx context.Context) (bool, error)
}

// CheckStoreOpen closes the public storefront while the store is disabled
// or the site is in maintenance.
func CheckStoreOpen(status StoreStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		open, err := status.StoreOpen(c.UserContext())
		if err != nil {
			log.Error().Err(err).Msg("Could not read store status")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not read store status",
			})
		}
		if !open {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "The store is currently closed",
			})
		}
		return c.Next()
	}
}
