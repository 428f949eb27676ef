package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"dinidesk_backend/internal/catalog"
	"dinidesk_backend/internal/middleware"
	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/sales"
	"dinidesk_backend/pkg/payment"
)

// StoreInfo is the public part of the settings the storefront renders.
func (h *Handler) StoreInfo(c *fiber.Ctx) error {
	app, err := h.Settings.App(c.UserContext())
	if err != nil {
		return err
	}
	store, err := h.Settings.Store(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"store_name":           store.StoreName,
		"currency":             app.Currency,
		"currency_symbol":      app.CurrencySymbol,
		"payment_methods":      app.PaymentMethods,
		"allow_guest_checkout": store.AllowGuestCheckout,
		"shipping_zones":       store.ShippingZones,
		"product_categories":   store.ProductCategories,
		"seo":                  store.SEO,
		"social":               store.Social,
	})
}

// StoreProducts hides sold-out products unless the store shows them.
func (h *Handler) StoreProducts(c *fiber.Ctx) error {
	store, err := h.Settings.Store(c.UserContext())
	if err != nil {
		return err
	}
	products, err := h.Catalog.ListProducts(c.UserContext(), catalog.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("q"),
		InStock:  !store.ShowOutOfStock,
	})
	if err != nil {
		return err
	}
	return c.JSON(products)
}

func (h *Handler) StoreProduct(c *fiber.Ctx) error {
	product, err := h.Catalog.GetProductBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *Handler) StoreServices(c *fiber.Ctx) error {
	services, err := h.Catalog.ListServices(c.UserContext(), c.Query("category"))
	if err != nil {
		return err
	}
	return c.JSON(services)
}

// Checkout places a storefront order. Signed-in callers are linked to the
// order; guests only get through when the store allows it.
func (h *Handler) Checkout(c *fiber.Ctx) error {
	input := new(sales.CheckoutInput)
	if err := bind(c, input); err != nil {
		return err
	}
	input.UserID = nil
	if a := middleware.ActorFrom(c); a != nil {
		id := a.ID
		input.UserID = &id
	}

	result, err := h.Sales.Checkout(c.UserContext(), *input)
	if err != nil {
		return err
	}
	return created(c, result)
}

// StripeWebhook completes the sale paid through a hosted checkout.
func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	if h.Payments == nil || !h.Payments.Enabled() {
		return model.ErrUnavailable
	}

	event, err := h.Payments.ParseWebhook(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("Rejected payment webhook")
		return err
	}
	if event.Type != payment.EventCheckoutCompleted || !event.Paid {
		return c.JSON(fiber.Map{"received": true})
	}

	sale, err := h.Sales.ConfirmPayment(c.UserContext(), event.SessionID)
	if errors.Is(err, model.ErrNotFound) {
		// not one of ours; acknowledge so the gateway stops retrying
		log.Warn().Str("session_id", event.SessionID).Msg("Payment for unknown checkout session")
		return c.JSON(fiber.Map{"received": true})
	}
	if err != nil {
		return err
	}
	log.Info().Uint("sale_id", sale.ID).Str("invoice", sale.InvoiceNumber).Msg("Card payment confirmed")
	return c.JSON(fiber.Map{"received": true})
}
