package controller

import (
	"github.com/gofiber/fiber/v2"

	"dinidesk_backend/internal/guard"
	"dinidesk_backend/internal/middleware"
)

// Mount registers every route under /api.
func (h *Handler) Mount(app *fiber.App) {
	authenticate := middleware.Authenticate(h.Identity)
	signedIn := middleware.Guard(guard.Requirement{})

	api := app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth
	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Post("/logout", h.Logout)
	auth.Get("/me", authenticate, signedIn, h.Me)
	auth.Put("/me", authenticate, signedIn, h.UpdateMe)
	auth.Post("/me/avatar", authenticate, signedIn, h.UploadAvatar)
	auth.Get("/me/logins", authenticate, signedIn, h.MyLoginHistory)

	// Storefront
	store := api.Group("/store", middleware.CheckStoreOpen(h.Settings), authenticate)
	store.Get("/", h.StoreInfo)
	store.Get("/products", h.StoreProducts)
	store.Get("/products/:slug", h.StoreProduct)
	store.Get("/services", h.StoreServices)
	store.Post("/checkout", h.Checkout)

	// Stripe webhook
	api.Post("/webhook/stripe", h.StripeWebhook)

	// Back office
	admin := api.Group("/admin", authenticate)

	admin.Get("/dashboard", middleware.Section(guard.Dashboard), h.Dashboard)

	notifications := admin.Group("/notifications", middleware.Section(guard.Notifications))
	notifications.Get("/", h.ListNotifications)
	notifications.Put("/read-all", h.MarkAllNotificationsRead)
	notifications.Put("/:id/read", h.MarkNotificationRead)
	notifications.Delete("/:id", h.DeleteNotification)

	tasks := admin.Group("/tasks", middleware.Section(guard.Tasks))
	tasks.Get("/", h.ListTasks)
	tasks.Post("/", h.CreateTask)
	tasks.Put("/:id", h.UpdateTask)
	tasks.Delete("/:id", h.DeleteTask)

	platforms := admin.Group("/platforms", middleware.Section(guard.Platforms))
	platforms.Get("/", h.ListPlatforms)
	platforms.Post("/", h.CreatePlatform)
	platforms.Get("/:id", h.GetPlatform)
	platforms.Put("/:id", h.UpdatePlatform)
	platforms.Delete("/:id", h.DeletePlatform)

	accounts := admin.Group("/accounts", middleware.Section(guard.Accounts))
	accounts.Get("/", h.ListAccounts)
	accounts.Post("/", h.CreateAccount)
	accounts.Get("/:id", h.GetAccount)
	accounts.Put("/:id", h.UpdateAccount)
	accounts.Delete("/:id", h.DeleteAccount)
	accounts.Get("/:id/profiles", h.ListAccountProfiles)

	profiles := admin.Group("/profiles", middleware.Section(guard.Profiles))
	profiles.Put("/:id", h.UpdateProfile)

	plans := admin.Group("/plans", middleware.Section(guard.Plans))
	plans.Get("/", h.ListPlans)
	plans.Post("/", h.CreatePlan)
	plans.Get("/:id", h.GetPlan)
	plans.Put("/:id", h.UpdatePlan)
	plans.Delete("/:id", h.DeletePlan)

	users := admin.Group("/users", middleware.Section(guard.Users))
	users.Get("/", h.ListUsers)
	users.Post("/", h.CreateUser)
	users.Put("/:id/role", h.SetUserRole)
	users.Get("/:id/logins", h.UserLoginHistory)

	settings := admin.Group("/settings", middleware.Section(guard.Settings))
	settings.Get("/:kind", h.GetSettings)
	settings.Put("/:kind", h.UpdateSettings)

	customers := admin.Group("/customers", middleware.Section(guard.Customers))
	customers.Get("/", h.ListCustomers)
	customers.Post("/", h.CreateCustomer)
	customers.Get("/:id", h.GetCustomer)
	customers.Put("/:id", h.UpdateCustomer)
	customers.Delete("/:id", h.DeleteCustomer)

	subscriptions := admin.Group("/subscriptions", middleware.Section(guard.Subscriptions))
	subscriptions.Get("/", h.ListSubscriptions)
	subscriptions.Post("/", h.CreateSubscription)
	subscriptions.Get("/eligible-accounts", h.EligibleAccounts)
	subscriptions.Get("/expiring", h.ExpiringSubscriptions)
	subscriptions.Get("/:id", h.GetSubscription)
	subscriptions.Post("/:id/cancel", h.CancelSubscription)
	subscriptions.Delete("/:id", h.DeleteSubscription)

	products := admin.Group("/products", middleware.Section(guard.Products))
	products.Get("/", h.ListProducts)
	products.Post("/", h.CreateProduct)
	products.Get("/low-stock", h.LowStock)
	products.Get("/:id", h.GetProduct)
	products.Put("/:id", h.UpdateProduct)
	products.Delete("/:id", h.DeleteProduct)
	products.Post("/:id/image", h.UploadProductImage)

	services := admin.Group("/services", middleware.Section(guard.Services))
	services.Get("/", h.ListServices)
	services.Post("/", h.CreateService)
	services.Get("/:id", h.GetService)
	services.Put("/:id", h.UpdateService)
	services.Delete("/:id", h.DeleteService)

	salesGroup := admin.Group("/sales", middleware.Section(guard.Sales))
	salesGroup.Get("/", h.ListSales)
	salesGroup.Post("/", h.RecordSale)
	salesGroup.Get("/:id", h.GetSale)
	salesGroup.Post("/:id/complete", h.CompleteSale)
	salesGroup.Post("/:id/cancel", h.CancelSale)

	expenses := admin.Group("/expenses", middleware.Section(guard.Expenses))
	expenses.Get("/", h.ListExpenses)
	expenses.Post("/", h.CreateExpense)
	expenses.Get("/:id", h.GetExpense)
	expenses.Put("/:id", h.UpdateExpense)
	expenses.Delete("/:id", h.DeleteExpense)

	reports := admin.Group("/reports", middleware.Section(guard.Reports))
	reports.Get("/", h.Report)
	reports.Get("/sales", h.SalesReport)
	reports.Get("/revenue", h.RevenueReport)
	reports.Get("/expenses", h.ExpensesReport)
	reports.Get("/expiring-accounts", h.ExpiringAccounts)
	reports.Get("/export", h.ExportReport)

	invoices := admin.Group("/invoices", middleware.Section(guard.Invoices))
	invoices.Get("/", h.ListInvoices)
	invoices.Get("/:kind/:id/pdf", h.DownloadInvoice)
	invoices.Post("/:kind/:id/archive", h.ArchiveInvoice)
}
