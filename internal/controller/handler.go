// Package controller exposes the back office over HTTP.
package controller

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"dinidesk_backend/internal/allocation"
	"dinidesk_backend/internal/catalog"
	"dinidesk_backend/internal/identity"
	"dinidesk_backend/internal/invoice"
	"dinidesk_backend/internal/middleware"
	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/notification"
	"dinidesk_backend/internal/reporting"
	"dinidesk_backend/internal/sales"
	"dinidesk_backend/internal/settings"
	"dinidesk_backend/internal/task"
	"dinidesk_backend/pkg/email"
	"dinidesk_backend/pkg/payment"
	"dinidesk_backend/pkg/utils/validation"
)

const mailTimeout = 15 * time.Second

// Deps are the services behind the routes. Payments, Images and Mailer are
// optional; routes that need a missing one answer 503.
type Deps struct {
	Identity      *identity.LocalProvider
	Catalog       *catalog.Registry
	Allocation    *allocation.Engine
	Sales         *sales.Service
	Reports       *reporting.Service
	Invoices      *invoice.Service
	Settings      *settings.Service
	Notifications *notification.Service
	Tasks         *task.Service

	Payments *payment.Stripe
	Images   catalog.ImageStore
	Mailer   *email.Service

	SecureCookies bool
}

type Handler struct {
	Deps
	now func() time.Time
	// mail runs outgoing emails; tests replace it to run them inline.
	mail func(name string, fn func(ctx context.Context) error)
}

func New(d Deps) *Handler {
	return &Handler{
		Deps: d,
		now:  time.Now,
		mail: sendInBackground,
	}
}

func sendInBackground(name string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Str("email", name).Msg("Could not send email")
		}
	}()
}

// ErrorHandler renders every error returned by a handler as {"error": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	status := errorStatus(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("Request failed")
		msg = "Internal server error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrAuthentication):
		return fiber.StatusUnauthorized
	case errors.Is(err, model.ErrAuthorization):
		return fiber.StatusForbidden
	case errors.Is(err, model.ErrInsufficientCapacity),
		errors.Is(err, model.ErrInsufficientStock),
		errors.Is(err, model.ErrStillReferenced),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrEmailTaken):
		return fiber.StatusConflict
	case errors.Is(err, model.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, payment.ErrInvalidSignature):
		return fiber.StatusBadRequest
	case errors.Is(err, model.ErrUnavailable),
		errors.Is(err, payment.ErrDisabled):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// bind decodes the JSON body into dst and runs its validate tags.
func bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return model.Invalid("%s", validation.FormatError(err))
	}
	if err := validation.Struct(dst); err != nil {
		return model.Invalid("%s", err.Error())
	}
	return nil
}

func idParam(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, model.Invalid("invalid %s", name)
	}
	return uint(id), nil
}

func uintQuery(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, model.Invalid("invalid %s", name)
	}
	return uint(v), nil
}

// dateQuery parses a YYYY-MM-DD query parameter; missing values yield nil.
func dateQuery(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
	if err != nil {
		return nil, model.Invalid("%s must be a YYYY-MM-DD date", name)
	}
	return &t, nil
}

// actor returns the signed-in caller. Routes using it sit behind a guard,
// so a missing actor is a wiring mistake rather than a client error.
func actor(c *fiber.Ctx) (*identity.Actor, error) {
	a := middleware.ActorFrom(c)
	if a == nil {
		return nil, model.ErrAuthentication
	}
	return a, nil
}

func created(c *fiber.Ctx, v interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(v)
}
