package controller

import (
	"github.com/gofiber/fiber/v2"

	"dinidesk_backend/internal/allocation"
	"dinidesk_backend/internal/model"
)

func (h *Handler) ListSubscriptions(c *fiber.Ctx) error {
	filter := allocation.Filter{Status: model.SubscriptionStatus(c.Query("status"))}
	var err error
	if filter.CustomerID, err = uintQuery(c, "customer_id"); err != nil {
		return err
	}
	if filter.AccountID, err = uintQuery(c, "account_id"); err != nil {
		return err
	}
	if filter.PlatformID, err = uintQuery(c, "platform_id"); err != nil {
		return err
	}

	subs, err := h.Allocation.ListSubscriptions(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(subs)
}

func (h *Handler) GetSubscription(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	sub, err := h.Allocation.GetSubscription(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(sub)
}

// EligibleAccounts lists the accounts a plan can be allocated on, as of
// ?date= or today.
func (h *Handler) EligibleAccounts(c *fiber.Ctx) error {
	planID, err := uintQuery(c, "plan_id")
	if err != nil {
		return err
	}
	if planID == 0 {
		return model.Invalid("plan_id is required")
	}
	on, err := dateQuery(c, "date")
	if err != nil {
		return err
	}
	day := h.now()
	if on != nil {
		day = *on
	}

	accounts, err := h.Allocation.ListEligibleAccounts(c.UserContext(), planID, day)
	if err != nil {
		return err
	}
	return c.JSON(accounts)
}

func (h *Handler) CreateSubscription(c *fiber.Ctx) error {
	input := new(allocation.CreateInput)
	if err := bind(c, input); err != nil {
		return err
	}

	sub, err := h.Allocation.CreateSubscription(c.UserContext(), *input)
	if err != nil {
		return err
	}
	fresh, err := h.Allocation.GetSubscription(c.UserContext(), sub.ID)
	if err != nil {
		return err
	}
	h.mailSubscription(c.UserContext(), fresh, true)
	return created(c, fresh)
}

func (h *Handler) CancelSubscription(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	// profile names are gone from the subscription once released
	before, err := h.Allocation.GetSubscription(c.UserContext(), id)
	if err != nil {
		return err
	}
	if _, err := h.Allocation.CancelSubscription(c.UserContext(), id); err != nil {
		return err
	}
	fresh, err := h.Allocation.GetSubscription(c.UserContext(), id)
	if err != nil {
		return err
	}
	before.Status = fresh.Status
	h.mailSubscription(c.UserContext(), before, false)
	return c.JSON(fresh)
}

func (h *Handler) DeleteSubscription(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Allocation.DeleteSubscription(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ExpiringSubscriptions lists active subscriptions ending within ?days=
// (default 7).
func (h *Handler) ExpiringSubscriptions(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	if days < 0 {
		return model.Invalid("days must not be negative")
	}
	subs, err := h.Allocation.ExpiringWithin(c.UserContext(), h.now(), days)
	if err != nil {
		return err
	}
	return c.JSON(subs)
}
