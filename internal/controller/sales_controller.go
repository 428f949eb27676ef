package controller

import (
	"github.com/gofiber/fiber/v2"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/sales"
)

func (h *Handler) ListSales(c *fiber.Ctx) error {
	from, err := dateQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := dateQuery(c, "to")
	if err != nil {
		return err
	}
	if to != nil {
		// inclusive day for clients, exclusive bound for the query
		end := to.AddDate(0, 0, 1)
		to = &end
	}
	customerID, err := uintQuery(c, "customer_id")
	if err != nil {
		return err
	}

	list, err := h.Sales.ListSales(c.UserContext(), sales.Filter{
		Status:     model.SaleStatus(c.Query("status")),
		Channel:    model.SaleChannel(c.Query("channel")),
		CustomerID: customerID,
		From:       from,
		To:         to,
		Limit:      c.QueryInt("limit"),
	})
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *Handler) GetSale(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	sale, err := h.Sales.GetSale(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(sale)
}

// RecordSale books a counter sale.
func (h *Handler) RecordSale(c *fiber.Ctx) error {
	input := new(sales.RecordInput)
	if err := bind(c, input); err != nil {
		return err
	}
	sale, err := h.Sales.RecordSale(c.UserContext(), *input)
	if err != nil {
		return err
	}
	fresh, err := h.Sales.GetSale(c.UserContext(), sale.ID)
	if err != nil {
		return err
	}
	return created(c, fresh)
}

func (h *Handler) CompleteSale(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.Sales.CompleteSale(c.UserContext(), id); err != nil {
		return err
	}
	fresh, err := h.Sales.GetSale(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fresh)
}

func (h *Handler) CancelSale(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.Sales.CancelSale(c.UserContext(), id); err != nil {
		return err
	}
	fresh, err := h.Sales.GetSale(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fresh)
}
