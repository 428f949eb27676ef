package controller

import (
	"github.com/gofiber/fiber/v2"

	"dinidesk_backend/internal/catalog"
	"dinidesk_backend/internal/model"
	"dinidesk_backend/pkg/utils/image"
	"dinidesk_backend/pkg/utils/validation"
)

// Products

func (h *Handler) ListProducts(c *fiber.Ctx) error {
	products, err := h.Catalog.ListProducts(c.UserContext(), catalog.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("q"),
		InStock:  c.QueryBool("in_stock"),
	})
	if err != nil {
		return err
	}
	return c.JSON(products)
}

func (h *Handler) GetProduct(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	product, err := h.Catalog.GetProduct(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *Handler) CreateProduct(c *fiber.Ctx) error {
	input := new(catalog.ProductInput)
	if err := bind(c, input); err != nil {
		return err
	}
	product, err := h.Catalog.CreateProduct(c.UserContext(), *input)
	if err != nil {
		return err
	}
	return created(c, product)
}

func (h *Handler) UpdateProduct(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	input := new(catalog.ProductInput)
	if err := bind(c, input); err != nil {
		return err
	}
	product, err := h.Catalog.UpdateProduct(c.UserContext(), id, *input)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *Handler) DeleteProduct(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteProduct(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadProductImage replaces a product picture with a WebP copy of the
// multipart "image" field.
func (h *Handler) UploadProductImage(c *fiber.Ctx) error {
	if h.Images == nil {
		return model.ErrUnavailable
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}

	file, err := c.FormFile("image")
	if err != nil {
		return model.Invalid("%s", validation.ErrFileRequired)
	}
	if err := validation.ProductImage.Check(file); err != nil {
		return model.Invalid("%s", err)
	}
	src, err := file.Open()
	if err != nil {
		return model.Invalid("could not read upload")
	}
	defer src.Close()

	product, err := h.Catalog.SetProductImage(c.UserContext(), id, h.Images, image.ToWebP, src)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// LowStock lists products at or under the store's threshold.
func (h *Handler) LowStock(c *fiber.Ctx) error {
	store, err := h.Settings.Store(c.UserContext())
	if err != nil {
		return err
	}
	products, err := h.Catalog.LowStock(c.UserContext(), c.QueryInt("threshold", store.LowStockThreshold))
	if err != nil {
		return err
	}
	return c.JSON(products)
}

// Services

func (h *Handler) ListServices(c *fiber.Ctx) error {
	services, err := h.Catalog.ListServices(c.UserContext(), c.Query("category"))
	if err != nil {
		return err
	}
	return c.JSON(services)
}

func (h *Handler) GetService(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	service, err := h.Catalog.GetService(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(service)
}

func (h *Handler) CreateService(c *fiber.Ctx) error {
	input := new(catalog.ServiceInput)
	if err := bind(c, input); err != nil {
		return err
	}
	service, err := h.Catalog.CreateService(c.UserContext(), *input)
	if err != nil {
		return err
	}
	return created(c, service)
}

func (h *Handler) UpdateService(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	input := new(catalog.ServiceInput)
	if err := bind(c, input); err != nil {
		return err
	}
	service, err := h.Catalog.UpdateService(c.UserContext(), id, *input)
	if err != nil {
		return err
	}
	return c.JSON(service)
}

func (h *Handler) DeleteService(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteService(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Customers

func (h *Handler) ListCustomers(c *fiber.Ctx) error {
	customers, err := h.Catalog.SearchCustomers(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(customers)
}

func (h *Handler) GetCustomer(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	customer, err := h.Catalog.GetCustomer(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(customer)
}

func (h *Handler) CreateCustomer(c *fiber.Ctx) error {
	input := new(catalog.CustomerInput)
	if err := bind(c, input); err != nil {
		return err
	}
	customer, err := h.Catalog.CreateCustomer(c.UserContext(), *input)
	if err != nil {
		return err
	}
	return created(c, customer)
}

func (h *Handler) UpdateCustomer(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	input := new(catalog.CustomerInput)
	if err := bind(c, input); err != nil {
		return err
	}
	customer, err := h.Catalog.UpdateCustomer(c.UserContext(), id, *input)
	if err != nil {
		return err
	}
	return c.JSON(customer)
}

func (h *Handler) DeleteCustomer(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteCustomer(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Expenses

func (h *Handler) ListExpenses(c *fiber.Ctx) error {
	from, err := dateQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := dateQuery(c, "to")
	if err != nil {
		return err
	}
	expenses, err := h.Catalog.ListExpenses(c.UserContext(), catalog.ExpenseFilter{
		Category: c.Query("category"),
		From:     from,
		To:       to,
	})
	if err != nil {
		return err
	}
	return c.JSON(expenses)
}

func (h *Handler) GetExpense(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	expense, err := h.Catalog.GetExpense(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(expense)
}

func (h *Handler) CreateExpense(c *fiber.Ctx) error {
	input := new(catalog.ExpenseInput)
	if err := bind(c, input); err != nil {
		return err
	}
	expense, err := h.Catalog.CreateExpense(c.UserContext(), *input)
	if err != nil {
		return err
	}
	return created(c, expense)
}

func (h *Handler) UpdateExpense(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	input := new(catalog.ExpenseInput)
	if err := bind(c, input); err != nil {
		return err
	}
	expense, err := h.Catalog.UpdateExpense(c.UserContext(), id, *input)
	if err != nil {
		return err
	}
	return c.JSON(expense)
}

func (h *Handler) DeleteExpense(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteExpense(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
