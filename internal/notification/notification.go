// Package notification stores in-app notices for back-office users.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

// Notice is the content of a notification before it is addressed.
type Notice struct {
	Kind    model.NotificationKind
	Title   string
	Message string
	Link    string
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID uint, n Notice) (*model.Notification, error) {
	row := model.Notification{
		UserID:  userID,
		Kind:    n.Kind,
		Title:   n.Title,
		Message: n.Message,
		Link:    n.Link,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, model.Wrap(err, "create notification")
	}
	return &row, nil
}

// NotifyStaff addresses n to every admin and staff user. A user who already
// received the same kind and link within the last dedupe window is skipped;
// a zero window disables the check. Returns how many rows were written.
func (s *Service) NotifyStaff(ctx context.Context, n Notice, dedupe time.Duration) (int, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("role IN ?", []model.Role{model.RoleAdmin, model.RoleStaff}).
		Order("id").Pluck("id", &ids).Error
	if err != nil {
		return 0, model.Wrap(err, "list staff")
	}

	sent := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			if dedupe > 0 {
				var seen int64
				if err := tx.Model(&model.Notification{}).
					Where("user_id = ? AND kind = ? AND link = ? AND created_at >= ?", id, n.Kind, n.Link, s.now().Add(-dedupe).UTC()).
					Count(&seen).Error; err != nil {
					return err
				}
				if seen > 0 {
					continue
				}
			}
			row := model.Notification{UserID: id, Kind: n.Kind, Title: n.Title, Message: n.Message, Link: n.Link}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, model.Wrap(err, "notify staff")
	}
	log.Debug().Str("kind", string(n.Kind)).Int("recipients", sent).Msg("staff notified")
	return sent, nil
}

// ListForUser returns the user's notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]model.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.Notification
	err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error
	return rows, model.Wrap(err, "list notifications")
}

func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).Count(&n).Error
	return n, model.Wrap(err, "count notifications")
}

func (s *Service) MarkRead(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).Update("read", true)
	if res.Error != nil {
		return model.Wrap(res.Error, "mark notification read")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).Update("read", true)
	return res.RowsAffected, model.Wrap(res.Error, "mark notifications read")
}

func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Notification{})
	if res.Error != nil {
		return model.Wrap(res.Error, "delete notification")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %d: %w", id, model.ErrNotFound)
	}
	return nil
}
