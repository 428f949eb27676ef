package controller

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"dinidesk_backend/internal/identity"
	"dinidesk_backend/internal/middleware"
	"dinidesk_backend/internal/model"
)

type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"max=64"`
	LastName  string `json:"last_name" validate:"max=64"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileInput struct {
	FirstName string `json:"first_name" validate:"max=64"`
	LastName  string `json:"last_name" validate:"max=64"`
	Phone     string `json:"phone" validate:"max=32"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

// Register creates a customer account and signs it in. Staff accounts are
// only created from the users section.
func (h *Handler) Register(c *fiber.Ctx) error {
	input := new(RegisterInput)
	if err := bind(c, input); err != nil {
		return err
	}

	sess, err := h.Identity.SignUp(c.UserContext(), input.Email, input.Password, model.RoleCustomer)
	if err != nil {
		return err
	}
	if input.FirstName != "" || input.LastName != "" {
		if _, err := h.Identity.UpdateProfile(c.UserContext(), sess.Actor.ID, identity.ProfileInput{
			FirstName: input.FirstName,
			LastName:  input.LastName,
		}); err != nil {
			return err
		}
	}
	h.welcome(sess.Actor.Email, input.FirstName, model.RoleCustomer)

	return h.sessionResponse(c, fiber.StatusCreated, sess)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := bind(c, input); err != nil {
		return err
	}

	sess, err := h.Identity.SignIn(c.UserContext(), input.Email, input.Password)
	if err != nil {
		return err
	}
	if err := h.Identity.RecordLoginHistory(c.UserContext(), sess.Actor.ID, c.Get(fiber.HeaderUserAgent), c.IP()); err != nil {
		log.Warn().Err(err).Uint("user_id", sess.Actor.ID).Msg("Could not record login history")
	}
	if err := h.Identity.RecordLogin(c.UserContext(), sess.Actor.ID, h.now()); err != nil {
		log.Warn().Err(err).Uint("user_id", sess.Actor.ID).Msg("Could not record last login")
	}

	return h.sessionResponse(c, fiber.StatusOK, sess)
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	if token := middleware.TokenFrom(c); token != "" {
		if err := h.Identity.SignOut(c.UserContext(), token); err != nil {
			return err
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"message": "Signed out"})
}

// Me returns the caller's profile with its resolved role.
func (h *Handler) Me(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	user, err := h.Identity.GetUser(c.UserContext(), a.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": user.GetPublicProfile()})
}

func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	input := new(ProfileInput)
	if err := bind(c, input); err != nil {
		return err
	}

	user, err := h.Identity.UpdateProfile(c.UserContext(), a.ID, identity.ProfileInput{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
		AvatarURL: input.AvatarURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": user.GetPublicProfile()})
}

func (h *Handler) MyLoginHistory(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	history, err := h.Identity.LoginHistory(c.UserContext(), a.ID, c.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	return c.JSON(history)
}

func (h *Handler) sessionResponse(c *fiber.Ctx, status int, sess *identity.Session) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Status(status).JSON(fiber.Map{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
		"user":       sess.Actor,
	})
}

func (h *Handler) welcome(to, name string, role model.Role) {
	if h.Mailer == nil {
		return
	}
	h.mail("welcome", func(ctx context.Context) error {
		return h.Mailer.SendWelcome(ctx, to, emailWelcome(name, role))
	})
}
