// Package task keeps a personal to-do list per back-office user.
package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

type Input struct {
	Title       string             `json:"title" validate:"required,max=200"`
	Description string             `json:"description"`
	DueDate     *time.Time         `json:"due_date"`
	Status      model.TaskStatus   `json:"status" validate:"omitempty,oneof=pending in_progress done"`
	Priority    model.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

func (in *Input) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return model.Invalid("title is required")
	}
	switch in.Status {
	case "":
		in.Status = model.TaskPending
	case model.TaskPending, model.TaskInProgress, model.TaskDone:
	default:
		return model.Invalid("unknown task status %q", in.Status)
	}
	switch in.Priority {
	case "":
		in.Priority = model.PriorityMedium
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
	default:
		return model.Invalid("unknown task priority %q", in.Priority)
	}
	return nil
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// List returns the user's tasks by due date, undated tasks last.
func (s *Service) List(ctx context.Context, userID uint, status model.TaskStatus) ([]model.Task, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var tasks []model.Task
	err := q.Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END").
		Order("due_date").Order("id").Find(&tasks).Error
	return tasks, model.Wrap(err, "list tasks")
}

func (s *Service) Get(ctx context.Context, userID, id uint) (*model.Task, error) {
	var t model.Task
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error
	if err != nil {
		return nil, model.Wrap(err, "load task")
	}
	return &t, nil
}

func (s *Service) Create(ctx context.Context, userID uint, in Input) (*model.Task, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	t := model.Task{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Status:      in.Status,
		Priority:    in.Priority,
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, model.Wrap(err, "create task")
	}
	return &t, nil
}

func (s *Service) Update(ctx context.Context, userID, id uint, in Input) (*model.Task, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&model.Task{}).Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"title":       in.Title,
			"description": in.Description,
			"due_date":    in.DueDate,
			"status":      in.Status,
			"priority":    in.Priority,
		})
	if res.Error != nil {
		return nil, model.Wrap(res.Error, "update task")
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("task %d: %w", id, model.ErrNotFound)
	}
	return s.Get(ctx, userID, id)
}

func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Task{})
	if res.Error != nil {
		return model.Wrap(res.Error, "delete task")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", id, model.ErrNotFound)
	}
	return nil
}
