package controller

import (
	"bytes"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"

	"dinidesk_backend/internal/invoice"
	"dinidesk_backend/internal/model"
)

func (h *Handler) ListInvoices(c *fiber.Ctx) error {
	entries, err := h.Invoices.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(entries)
}

func invoiceTarget(c *fiber.Ctx) (invoice.Kind, uint, error) {
	kind := invoice.Kind(c.Params("kind"))
	if !kind.Valid() {
		return "", 0, model.Invalid("unknown invoice kind %q", kind)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return "", 0, err
	}
	return kind, id, nil
}

// DownloadInvoice renders the invoice PDF. ?inline=true opens it in the
// browser instead of downloading.
func (h *Handler) DownloadInvoice(c *fiber.Ctx) error {
	kind, id, err := invoiceTarget(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	number, err := h.Invoices.Render(c.UserContext(), kind, id, &buf)
	if err != nil {
		return err
	}

	disposition := "attachment"
	if c.QueryBool("inline") {
		disposition = "inline"
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`%s; filename="facture-%s.pdf"`, disposition, slug.Make(number)))
	return c.Send(buf.Bytes())
}

func (h *Handler) ArchiveInvoice(c *fiber.Ctx) error {
	kind, id, err := invoiceTarget(c)
	if err != nil {
		return err
	}
	url, err := h.Invoices.Archive(c.UserContext(), kind, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"url": url})
}
