package controller

import (
	"github.com/gofiber/fiber/v2"

	"dinidesk_backend/internal/model"
)

// GetSettings returns the app or store settings named by :kind.
func (h *Handler) GetSettings(c *fiber.Ctx) error {
	v, err := h.Settings.Get(c.UserContext(), model.SettingsKind(c.Params("kind")))
	if err != nil {
		return err
	}
	return c.JSON(v)
}

// UpdateSettings replaces a settings document. The body is decoded
// strictly: unknown fields are rejected.
func (h *Handler) UpdateSettings(c *fiber.Ctx) error {
	v, err := h.Settings.Update(c.UserContext(), model.SettingsKind(c.Params("kind")), c.Body())
	if err != nil {
		return err
	}
	return c.JSON(v)
}
