package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	goimage "image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dinidesk_backend/internal/allocation"
	"dinidesk_backend/internal/catalog"
	"dinidesk_backend/internal/identity"
	"dinidesk_backend/internal/invoice"
	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/notification"
	"dinidesk_backend/internal/reporting"
	"dinidesk_backend/internal/sales"
	"dinidesk_backend/internal/settings"
	"dinidesk_backend/internal/task"
	"dinidesk_backend/internal/testutil"
	"dinidesk_backend/pkg/email"
	"dinidesk_backend/pkg/payment"
	jwtutil "dinidesk_backend/pkg/utils/jwt"
)

type outbox struct {
	mu   sync.Mutex
	sent []email.Message
}

func (o *outbox) Send(_ context.Context, msg email.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) subjects() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.sent))
	for i, m := range o.sent {
		out[i] = m.Subject
	}
	return out
}

type memImages struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memImages) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (m *memImages) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, strings.TrimPrefix(url, "https://cdn.test/"))
	return nil
}

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	handler  *Handler
	settings *settings.Service
	mail     *outbox
	images   *memImages
	tokens   map[model.Role]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	provider := identity.NewLocalProvider(db, jwtutil.NewManager("test-secret", time.Hour))
	st := settings.NewService(db)
	notes := notification.NewService(db)

	box := &outbox{}
	mailer, err := email.NewService(box, "DiniDesk <noreply@dinidesk.test>")
	require.NoError(t, err)
	images := &memImages{objects: map[string][]byte{}}

	h := New(Deps{
		Identity:      provider,
		Catalog:       catalog.NewRegistry(db),
		Allocation:    allocation.NewEngine(db, allocation.WithInvoicePrefix(st), allocation.WithNotifier(notes)),
		Sales:         sales.NewService(db, st, sales.WithNotifier(notes)),
		Reports:       reporting.NewService(db),
		Invoices:      invoice.NewService(db, st),
		Settings:      st,
		Notifications: notes,
		Tasks:         task.NewService(db),
		Images:        images,
		Mailer:        mailer,
	})
	h.mail = func(_ string, fn func(ctx context.Context) error) {
		require.NoError(t, fn(context.Background()))
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	h.Mount(app)

	env := &testEnv{
		app:      app,
		db:       db,
		handler:  h,
		settings: st,
		mail:     box,
		images:   images,
		tokens:   map[model.Role]string{},
	}
	for _, role := range []model.Role{model.RoleAdmin, model.RoleStaff, model.RoleCustomer} {
		sess, err := provider.SignUp(context.Background(), string(role)+"@dinidesk.test", "secret123", role)
		require.NoError(t, err)
		env.tokens[role] = sess.Token
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, role model.Role, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token := e.tokens[role]; token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func errorOf(t *testing.T, body []byte) string {
	t.Helper()
	return decode[map[string]string](t, body)["error"]
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrAuthentication, http.StatusUnauthorized},
		{model.ErrAuthorization, http.StatusForbidden},
		{model.ErrInsufficientCapacity, http.StatusConflict},
		{model.ErrInsufficientStock, http.StatusConflict},
		{model.ErrStillReferenced, http.StatusConflict},
		{model.ErrNotFound, http.StatusNotFound},
		{model.ErrInvalidInput, http.StatusBadRequest},
		{model.ErrInvalidTransition, http.StatusConflict},
		{model.ErrEmailTaken, http.StatusConflict},
		{model.ErrPersistence, http.StatusInternalServerError},
		{model.ErrUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("load plan: %w", model.ErrNotFound), http.StatusNotFound},
		{payment.ErrInvalidSignature, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email": "Rado@Example.com", "password": "secret123", "first_name": "Rado",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	registered := decode[struct {
		Token string         `json:"token"`
		User  identity.Actor `json:"user"`
	}](t, body)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, model.RoleCustomer, registered.User.Role)
	assert.Equal(t, "rado@example.com", registered.User.Email)
	assert.Contains(t, env.mail.subjects(), "Bienvenue sur DiniDesk")

	resp, body = env.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email": "rado@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, body = env.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email": "rado@example.com", "password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid credentials", errorOf(t, body))

	resp, body = env.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email": "rado@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	login := decode[struct {
		Token string `json:"token"`
	}](t, body)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "auth_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, login.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	// the cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: login.Token})
	resp, body = env.send(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	me := decode[map[string]map[string]interface{}](t, body)
	assert.Equal(t, "Rado", me["user"]["first_name"])

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me/logins", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+login.Token)
	resp, body = env.send(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.LoginHistory](t, body), 1)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+login.Token)
	resp, _ = env.send(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+login.Token)
	resp, _ = env.send(t, req)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?returnUrl=%2Fapi%2Fauth%2Fme", resp.Header.Get(fiber.HeaderLocation))
}

func TestLoginStampsLastLogin(t *testing.T) {
	env := newTestEnv(t)

	var user model.User
	require.NoError(t, env.db.Where("email = ?", "staff@dinidesk.test").First(&user).Error)
	require.Nil(t, user.LastLogin)

	resp, body := env.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email": "staff@dinidesk.test", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	require.NoError(t, env.db.First(&user, user.ID).Error)
	require.NotNil(t, user.LastLogin)
	assert.WithinDuration(t, time.Now(), *user.LastLogin, time.Minute)

	var history int64
	require.NoError(t, env.db.Model(&model.LoginHistory{}).Where("user_id = ?", user.ID).Count(&history).Error)
	assert.EqualValues(t, 1, history)
}

func TestSectionGating(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path     string
		role     model.Role
		status   int
		location string
	}{
		{"/api/admin/platforms", model.RoleAdmin, http.StatusOK, ""},
		{"/api/admin/platforms", model.RoleStaff, http.StatusFound, "/"},
		{"/api/admin/platforms", model.RoleCustomer, http.StatusFound, "/"},
		{"/api/admin/settings/app", model.RoleStaff, http.StatusFound, "/"},
		{"/api/admin/sales", model.RoleStaff, http.StatusOK, ""},
		{"/api/admin/sales", model.RoleCustomer, http.StatusFound, "/"},
		{"/api/admin/reports/sales", model.RoleStaff, http.StatusOK, ""},
		{"/api/admin/tasks", model.RoleCustomer, http.StatusOK, ""},
		{"/api/admin/dashboard", "", http.StatusFound, "/login?returnUrl=%2Fapi%2Fadmin%2Fdashboard"},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+" "+tt.path, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, tt.path, tt.role, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.location != "" {
				assert.Equal(t, tt.location, resp.Header.Get(fiber.HeaderLocation))
				assert.Empty(t, body)
			}
		})
	}
}

// seedStreaming creates a platform, an account with three profiles, a
// two-profile plan and a customer over HTTP and returns their ids.
func seedStreaming(t *testing.T, env *testEnv) (platformID, accountID, planID, customerID uint) {
	t.Helper()
	type idOnly struct {
		ID uint `json:"id"`
	}

	resp, body := env.do(t, http.MethodPost, "/api/admin/platforms", model.RoleAdmin, fiber.Map{
		"name": "Netflix", "max_profiles": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	platformID = decode[idOnly](t, body).ID

	resp, body = env.do(t, http.MethodPost, "/api/admin/accounts", model.RoleAdmin, fiber.Map{
		"platform_id": platformID, "name": "NF-01", "account_email": "nf01@dinidesk.test",
		"password": "pw", "is_active": true, "max_profiles": 3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	account := decode[model.Account](t, body)
	require.Len(t, account.Profiles, 3)
	accountID = account.ID

	resp, body = env.do(t, http.MethodPost, "/api/admin/plans", model.RoleAdmin, fiber.Map{
		"platform_id": platformID, "name": "Netflix Duo", "profiles_count": 2,
		"price": "15000", "duration_months": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	planID = decode[idOnly](t, body).ID

	resp, body = env.do(t, http.MethodPost, "/api/admin/customers", model.RoleStaff, fiber.Map{
		"name": "Hery", "email": "hery@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	customerID = decode[idOnly](t, body).ID
	return
}

func TestSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	platformID, accountID, planID, customerID := seedStreaming(t, env)

	resp, body := env.do(t, http.MethodGet, fmt.Sprintf("/api/admin/subscriptions/eligible-accounts?plan_id=%d&date=2024-03-01", planID), model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	eligible := decode[[]allocation.EligibleAccount](t, body)
	require.Len(t, eligible, 1)
	assert.Equal(t, 3, eligible[0].AvailableProfiles)

	create := fiber.Map{
		"customer_id": customerID, "account_id": accountID, "plan_id": planID,
		"start_date": "2024-03-01T00:00:00Z",
	}
	resp, body = env.do(t, http.MethodPost, "/api/admin/subscriptions", model.RoleStaff, create)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	sub := decode[model.Subscription](t, body)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
	assert.Len(t, sub.Profiles, 2)
	assert.Equal(t, "2024-03-31", sub.EndDate.Format(time.DateOnly))
	assert.True(t, strings.HasPrefix(sub.InvoiceNumber, "INV"))
	assert.Contains(t, env.mail.subjects(), "Votre abonnement Netflix est actif")

	// one profile left, the plan needs two
	resp, body = env.do(t, http.MethodPost, "/api/admin/subscriptions", model.RoleStaff, create)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, errorOf(t, body), "insufficient capacity")

	resp, body = env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/platforms/%d", platformID), model.RoleAdmin, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, errorOf(t, body), "cannot delete, still referenced")

	resp, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/subscriptions/%d/cancel", sub.ID), model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, model.SubscriptionCancelled, decode[model.Subscription](t, body).Status)
	assert.Contains(t, env.mail.subjects(), "Votre abonnement Netflix a été annulé")

	resp, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/subscriptions/%d/cancel", sub.ID), model.RoleStaff, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/admin/accounts/%d/profiles", accountID), model.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, p := range decode[[]model.Profile](t, body) {
		assert.True(t, p.IsAvailable, p.Name)
	}

	resp, body = env.do(t, http.MethodGet, "/api/admin/subscriptions?status=active", model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]model.Subscription](t, body))
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		path string
		body interface{}
		want string
	}{
		{"missing fields", "/api/admin/platforms", fiber.Map{"logo_url": "not a url"}, "Field 'name' is required"},
		{"bad url", "/api/admin/platforms", fiber.Map{"name": "X", "max_profiles": 1, "logo_url": "nope"}, "Field 'logo_url' must be a valid URL"},
		{"wrong type", "/api/admin/platforms", fiber.Map{"name": 12, "max_profiles": 1}, "Field 'name' should be of type string"},
		{"empty items", "/api/admin/sales", fiber.Map{"customer_id": 1, "items": []interface{}{}}, "Field 'items' must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, tt.path, model.RoleAdmin, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, errorOf(t, body), tt.want)
		})
	}

	resp, body := env.do(t, http.MethodGet, "/api/admin/platforms/abc", model.RoleAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errorOf(t, body), "invalid id")

	resp, _ = env.do(t, http.MethodGet, "/api/admin/platforms/999", model.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCounterSaleAndInvoice(t *testing.T) {
	env := newTestEnv(t)
	customer := model.Customer{Name: "Hery"}
	require.NoError(t, env.db.Create(&customer).Error)
	cable := model.Product{Name: "HDMI cable", Slug: "hdmi-cable", Price: decimal.NewFromInt(5000), Stock: 3}
	require.NoError(t, env.db.Create(&cable).Error)

	resp, body := env.do(t, http.MethodPost, "/api/admin/sales", model.RoleStaff, fiber.Map{
		"customer_id": customer.ID,
		"items":       []fiber.Map{{"product_id": cable.ID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	sale := decode[model.Sale](t, body)
	assert.Equal(t, model.SaleCompleted, sale.Status)
	assert.True(t, decimal.NewFromInt(10000).Equal(sale.TotalAmount), sale.TotalAmount.String())
	require.Len(t, sale.Items, 1)

	resp, body = env.do(t, http.MethodPost, "/api/admin/sales", model.RoleStaff, fiber.Map{
		"customer_id": customer.ID,
		"items":       []fiber.Map{{"product_id": cable.ID, "quantity": 2}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, errorOf(t, body), "insufficient stock")

	resp, body = env.do(t, http.MethodGet, "/api/admin/invoices", model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]invoice.Entry](t, body)
	require.Len(t, entries, 1)
	assert.Equal(t, sale.InvoiceNumber, entries[0].Number)

	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/admin/invoices/sale/%d/pdf", sale.ID), model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	resp, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/admin/invoices/order/%d/pdf", sale.ID), model.RoleStaff, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// no archive configured
	resp, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/invoices/sale/%d/archive", sale.ID), model.RoleStaff, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/sales/%d/cancel", sale.ID), model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, model.SaleCancelled, decode[model.Sale](t, body).Status)

	var stock model.Product
	require.NoError(t, env.db.First(&stock, cable.ID).Error)
	assert.Equal(t, 3, stock.Stock)
}

func TestStorefront(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mouse := model.Product{Name: "Mouse", Slug: "mouse", Price: decimal.NewFromInt(12000), Stock: 4}
	require.NoError(t, env.db.Create(&mouse).Error)
	empty := model.Product{Name: "Keyboard", Slug: "keyboard", Price: decimal.NewFromInt(30000)}
	require.NoError(t, env.db.Create(&empty).Error)

	resp, body := env.do(t, http.MethodGet, "/api/store/products", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "The store is currently closed", errorOf(t, body))

	store := settings.DefaultStore()
	store.StoreEnabled = true
	store.ShowOutOfStock = false
	_, err := env.settings.UpdateStore(ctx, store)
	require.NoError(t, err)

	resp, body = env.do(t, http.MethodGet, "/api/store/products", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products := decode[[]model.Product](t, body)
	require.Len(t, products, 1)
	assert.Equal(t, "Mouse", products[0].Name)

	resp, _ = env.do(t, http.MethodGet, "/api/store/products/mouse", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	order := fiber.Map{
		"name": "Fara", "email": "fara@example.com", "shipping_zone": "Antananarivo",
		"payment_method": "cash", "items": []fiber.Map{{"product_id": mouse.ID, "quantity": 1}},
	}
	resp, body = env.do(t, http.MethodPost, "/api/store/checkout", "", order)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, string(body))

	resp, body = env.do(t, http.MethodPost, "/api/store/checkout", model.RoleCustomer, order)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	result := decode[sales.CheckoutResult](t, body)
	require.NotNil(t, result.Sale)
	assert.Equal(t, model.SalePending, result.Sale.Status)
	assert.True(t, decimal.NewFromInt(5000).Equal(result.Sale.ShippingFee))
	assert.Empty(t, result.CheckoutURL)
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/admin/settings/app", model.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	app := decode[model.AppSettings](t, body)
	assert.Equal(t, "Ar", app.CurrencySymbol)

	app.SiteName = "Dini Shop"
	resp, body = env.do(t, http.MethodPut, "/api/admin/settings/app", model.RoleAdmin, app)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "Dini Shop", decode[model.AppSettings](t, body).SiteName)

	resp, body = env.do(t, http.MethodPut, "/api/admin/settings/app", model.RoleAdmin, fiber.Map{"site_name": "x", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, _ = env.do(t, http.MethodGet, "/api/admin/settings/theme", model.RoleAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUsersSection(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/admin/users", model.RoleAdmin, fiber.Map{
		"email": "nirina@dinidesk.test", "password": "secret123", "role": "staff", "first_name": "Nirina",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	user := decode[map[string]interface{}](t, body)
	assert.Equal(t, "staff", user["role"])
	assert.NotContains(t, string(body), "password")

	id := uint(user["id"].(float64))
	resp, body = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", id), model.RoleAdmin, fiber.Map{"role": "admin"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "admin", decode[map[string]interface{}](t, body)["role"])

	resp, _ = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", id), model.RoleAdmin, fiber.Map{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/auth/me", model.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	self := uint(decode[map[string]map[string]interface{}](t, body)["user"]["id"].(float64))
	resp, body = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", self), model.RoleAdmin, fiber.Map{"role": "staff"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errorOf(t, body), "own admin role")
}

func TestTasksAndNotificationsAreScopedToCaller(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/admin/tasks", model.RoleStaff, fiber.Map{
		"title": "Renew NF-01", "priority": "high",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decode[model.Task](t, body)
	assert.Equal(t, model.TaskPending, created.Status)

	resp, body = env.do(t, http.MethodGet, "/api/admin/tasks", model.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]model.Task](t, body))

	resp, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/tasks/%d", created.ID), model.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/tasks/%d", created.ID), model.RoleStaff, fiber.Map{
		"title": "Renew NF-01", "status": "done",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, model.TaskDone, decode[model.Task](t, body).Status)

	_, err := env.handler.Notifications.NotifyStaff(context.Background(), notification.Notice{
		Kind: model.NotifyLowStock, Title: "Low stock", Message: "Mouse",
	}, 0)
	require.NoError(t, err)

	resp, body = env.do(t, http.MethodGet, "/api/admin/notifications", model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	inbox := decode[struct {
		Notifications []model.Notification `json:"notifications"`
		Unread        int64                `json:"unread"`
	}](t, body)
	require.Len(t, inbox.Notifications, 1)
	assert.EqualValues(t, 1, inbox.Unread)

	resp, _ = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/notifications/%d/read", inbox.Notifications[0].ID), model.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/notifications/%d/read", inbox.Notifications[0].ID), model.RoleStaff, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestReportsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	customer := model.Customer{Name: "Hery"}
	require.NoError(t, env.db.Create(&customer).Error)
	require.NoError(t, env.db.Create(&model.Expense{
		Description: "Internet", Amount: decimal.NewFromInt(2000), Category: "utilities",
		Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}).Error)

	resp, body := env.do(t, http.MethodGet, "/api/admin/reports?start=2024-03-01&end=2024-03-03&granularity=daily", model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	report := decode[reporting.Report](t, body)
	assert.Len(t, report.Revenue, 3)
	assert.True(t, decimal.NewFromInt(-2000).Equal(report.Summary.NetProfit), report.Summary.NetProfit.String())

	resp, _ = env.do(t, http.MethodGet, "/api/admin/reports?granularity=yearly", model.RoleStaff, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/admin/reports?start=2024-03-05&end=2024-03-01", model.RoleStaff, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/admin/reports/export?start=2024-03-01&end=2024-03-03", model.RoleStaff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, xlsxContentType, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "rapport_2024-03-01_2024-03-03.xlsx")
	assert.True(t, bytes.HasPrefix(body, []byte("PK")))

	resp, body = env.do(t, http.MethodGet, "/api/admin/dashboard", model.RoleCustomer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	dash := decode[map[string]json.RawMessage](t, body)
	assert.Contains(t, dash, "stats")
	assert.Contains(t, dash, "revenue")
}

func pngUpload(t *testing.T, field, filename string) (*bytes.Buffer, string) {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, img))
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestUploadProductImage(t *testing.T) {
	env := newTestEnv(t)
	mouse := model.Product{Name: "Mouse", Slug: "mouse", Price: decimal.NewFromInt(12000), Stock: 4}
	require.NoError(t, env.db.Create(&mouse).Error)

	body, contentType := pngUpload(t, "image", "mouse.png")
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/admin/products/%d/image", mouse.ID), body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+env.tokens[model.RoleStaff])
	resp, out := env.send(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(out))

	product := decode[model.Product](t, out)
	assert.True(t, strings.HasPrefix(product.ImageURL, "https://cdn.test/"), product.ImageURL)
	assert.True(t, strings.HasSuffix(product.ImageURL, ".webp"), product.ImageURL)
	assert.Len(t, env.images.objects, 1)

	body, contentType = pngUpload(t, "image", "mouse.gif")
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/admin/products/%d/image", mouse.ID), body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+env.tokens[model.RoleStaff])
	resp, out = env.send(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errorOf(t, out), "invalid file type")
}

func TestWebhookWithoutPayments(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, "/api/webhook/stripe", "", fiber.Map{"type": "checkout.session.completed"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not configured", errorOf(t, body))
}
