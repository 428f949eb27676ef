package controller

import (
	"github.com/gofiber/fiber/v2"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/task"
)

// Notifications and tasks always belong to the caller.

func (h *Handler) ListNotifications(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	rows, err := h.Notifications.ListForUser(c.UserContext(), a.ID, c.QueryBool("unread"), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	unread, err := h.Notifications.UnreadCount(c.UserContext(), a.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"notifications": rows, "unread": unread})
}

func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Notifications.MarkRead(c.UserContext(), a.ID, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) MarkAllNotificationsRead(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	n, err := h.Notifications.MarkAllRead(c.UserContext(), a.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"updated": n})
}

func (h *Handler) DeleteNotification(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Notifications.Delete(c.UserContext(), a.ID, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ListTasks(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	tasks, err := h.Tasks.List(c.UserContext(), a.ID, model.TaskStatus(c.Query("status")))
	if err != nil {
		return err
	}
	return c.JSON(tasks)
}

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	input := new(task.Input)
	if err := bind(c, input); err != nil {
		return err
	}
	t, err := h.Tasks.Create(c.UserContext(), a.ID, *input)
	if err != nil {
		return err
	}
	return created(c, t)
}

func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	input := new(task.Input)
	if err := bind(c, input); err != nil {
		return err
	}
	t, err := h.Tasks.Update(c.UserContext(), a.ID, id, *input)
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Tasks.Delete(c.UserContext(), a.ID, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
