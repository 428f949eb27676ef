package controller

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"dinidesk_backend/internal/identity"
	"dinidesk_backend/internal/model"
	"dinidesk_backend/pkg/utils/image"
	"dinidesk_backend/pkg/utils/validation"
)

type CreateUserInput struct {
	Email     string     `json:"email" validate:"required,email"`
	Password  string     `json:"password" validate:"required,min=6"`
	Role      model.Role `json:"role" validate:"required,oneof=admin staff customer"`
	FirstName string     `json:"first_name" validate:"max=64"`
	LastName  string     `json:"last_name" validate:"max=64"`
	Phone     string     `json:"phone" validate:"max=32"`
}

type RoleInput struct {
	Role model.Role `json:"role" validate:"required,oneof=admin staff customer"`
}

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.Identity.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]map[string]interface{}, len(users))
	for i := range users {
		out[i] = users[i].GetPublicProfile()
	}
	return c.JSON(out)
}

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	input := new(CreateUserInput)
	if err := bind(c, input); err != nil {
		return err
	}
	user, err := h.Identity.CreateUser(c.UserContext(), identity.NewUser{
		Email:     input.Email,
		Password:  input.Password,
		Role:      input.Role,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
	})
	if err != nil {
		return err
	}
	h.welcome(user.Email, user.GetFullName(), user.Role)
	return created(c, user.GetPublicProfile())
}

// SetUserRole changes a role. Admins cannot demote themselves, so the
// console always keeps at least the caller as admin.
func (h *Handler) SetUserRole(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	input := new(RoleInput)
	if err := bind(c, input); err != nil {
		return err
	}
	if id == a.ID && input.Role != model.RoleAdmin {
		return model.Invalid("you cannot remove your own admin role")
	}

	user, err := h.Identity.SetRole(c.UserContext(), id, input.Role)
	if err != nil {
		return err
	}
	return c.JSON(user.GetPublicProfile())
}

func (h *Handler) UserLoginHistory(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	history, err := h.Identity.LoginHistory(c.UserContext(), id, c.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	return c.JSON(history)
}

// UploadAvatar stores the caller's picture as WebP and links it to the
// profile.
func (h *Handler) UploadAvatar(c *fiber.Ctx) error {
	if h.Images == nil {
		return model.ErrUnavailable
	}
	a, err := actor(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return model.Invalid("%s", validation.ErrFileRequired)
	}
	if err := validation.Avatar.Check(file); err != nil {
		return model.Invalid("%s", err)
	}
	src, err := file.Open()
	if err != nil {
		return model.Invalid("could not read upload")
	}
	defer src.Close()

	body, contentType, err := image.ToWebP(src)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("avatars/%d/%s.webp", a.ID, uuid.NewString())
	url, err := h.Images.Put(c.UserContext(), key, body, contentType)
	if err != nil {
		return err
	}

	user, err := h.Identity.GetUser(c.UserContext(), a.ID)
	if err != nil {
		return err
	}
	previous := user.AvatarURL
	user, err = h.Identity.UpdateProfile(c.UserContext(), a.ID, identity.ProfileInput{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		AvatarURL: url,
	})
	if err != nil {
		return err
	}
	if previous != "" {
		if err := h.Images.Delete(c.UserContext(), previous); err != nil {
			log.Warn().Err(err).Str("url", previous).Msg("Could not delete previous avatar")
		}
	}
	return c.JSON(fiber.Map{"avatar_url": url, "user": user.GetPublicProfile()})
}
