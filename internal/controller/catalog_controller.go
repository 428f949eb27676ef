package controller

import (
	"github.com/gofiber/fiber/v2"

	"dinidesk_backend/internal/catalog"
)

// Platforms

func (h *Handler) ListPlatforms(c *fiber.Ctx) error {
	platforms, err := h.Catalog.ListPlatforms(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(platforms)
}

func (h *Handler) GetPlatform(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	platform, err := h.Catalog.GetPlatform(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(platform)
}

func (h *Handler) CreatePlatform(c *fiber.Ctx) error {
	input := new(catalog.PlatformInput)
	if err := bind(c, input); err != nil {
		return err
	}
	platform, err := h.Catalog.CreatePlatform(c.UserContext(), *input)
	if err != nil {
		return err
	}
	return created(c, platform)
}

func (h *Handler) UpdatePlatform(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	input := new(catalog.PlatformInput)
	if err := bind(c, input); err != nil {
		return err
	}
	platform, err := h.Catalog.UpdatePlatform(c.UserContext(), id, *input)
	if err != nil {
		return err
	}
	return c.JSON(platform)
}

func (h *Handler) DeletePlatform(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeletePlatform(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Accounts

func (h *Handler) ListAccounts(c *fiber.Ctx) error {
	platformID, err := uintQuery(c, "platform_id")
	if err != nil {
		return err
	}
	accounts, err := h.Catalog.ListAccounts(c.UserContext(), catalog.AccountFilter{
		PlatformID: platformID,
		ActiveOnly: c.QueryBool("active"),
	})
	if err != nil {
		return err
	}
	return c.JSON(accounts)
}

func (h *Handler) GetAccount(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	account, err := h.Catalog.GetAccount(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(account)
}

func (h *Handler) CreateAccount(c *fiber.Ctx) error {
	input := new(catalog.AccountInput)
	if err := bind(c, input); err != nil {
		return err
	}
	account, err := h.Catalog.CreateAccount(c.UserContext(), *input)
	if err != nil {
		return err
	}
	// profiles are created alongside, return the account with them
	fresh, err := h.Catalog.GetAccount(c.UserContext(), account.ID)
	if err != nil {
		return err
	}
	return created(c, fresh)
}

func (h *Handler) UpdateAccount(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	input := new(catalog.AccountInput)
	if err := bind(c, input); err != nil {
		return err
	}
	if _, err := h.Catalog.UpdateAccount(c.UserContext(), id, *input); err != nil {
		return err
	}
	fresh, err := h.Catalog.GetAccount(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fresh)
}

func (h *Handler) DeleteAccount(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteAccount(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Profiles

func (h *Handler) ListAccountProfiles(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	profiles, err := h.Catalog.ListProfiles(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(profiles)
}

func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	input := new(catalog.ProfileInput)
	if err := bind(c, input); err != nil {
		return err
	}
	profile, err := h.Catalog.UpdateProfile(c.UserContext(), id, *input)
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

// Plans

func (h *Handler) ListPlans(c *fiber.Ctx) error {
	platformID, err := uintQuery(c, "platform_id")
	if err != nil {
		return err
	}
	plans, err := h.Catalog.ListPlans(c.UserContext(), platformID)
	if err != nil {
		return err
	}
	return c.JSON(plans)
}

func (h *Handler) GetPlan(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	plan, err := h.Catalog.GetPlan(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(plan)
}

func (h *Handler) CreatePlan(c *fiber.Ctx) error {
	input := new(catalog.PlanInput)
	if err := bind(c, input); err != nil {
		return err
	}
	plan, err := h.Catalog.CreatePlan(c.UserContext(), *input)
	if err != nil {
		return err
	}
	return created(c, plan)
}

func (h *Handler) UpdatePlan(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	input := new(catalog.PlanInput)
	if err := bind(c, input); err != nil {
		return err
	}
	plan, err := h.Catalog.UpdatePlan(c.UserContext(), id, *input)
	if err != nil {
		return err
	}
	return c.JSON(plan)
}

func (h *Handler) DeletePlan(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeletePlan(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
