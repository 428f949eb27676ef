package allocation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

type Filter struct {
	Status     model.SubscriptionStatus
	CustomerID uint
	AccountID  uint
	PlatformID uint
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Customer").
		Preload("Plan.Platform").
		Preload("Account.Platform").
		Preload("Profiles", func(db *gorm.DB) *gorm.DB { return db.Order("profiles.id") })
}

func (e *Engine) ListSubscriptions(ctx context.Context, f Filter) ([]model.Subscription, error) {
	q := withDetails(e.db.WithContext(ctx))
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, model.Invalid("unknown status %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.CustomerID != 0 {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.AccountID != 0 {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.PlatformID != 0 {
		q = q.Where("plan_id IN (?)", e.db.Model(&model.SubscriptionPlan{}).Select("id").Where("platform_id = ?", f.PlatformID))
	}
	var subs []model.Subscription
	err := q.Order("created_at DESC").Order("id DESC").Find(&subs).Error
	return subs, model.Wrap(err, "list subscriptions")
}

func (e *Engine) GetSubscription(ctx context.Context, id uint) (*model.Subscription, error) {
	var sub model.Subscription
	if err := withDetails(e.db.WithContext(ctx)).First(&sub, id).Error; err != nil {
		return nil, model.Wrap(err, "load subscription")
	}
	return &sub, nil
}

// ExpiringWithin lists active subscriptions ending in the next days days,
// soonest first.
func (e *Engine) ExpiringWithin(ctx context.Context, now time.Time, days int) ([]model.Subscription, error) {
	until := model.DateOnly(now).AddDate(0, 0, days+1)
	var subs []model.Subscription
	err := withDetails(e.db.WithContext(ctx)).
		Where("status = ? AND end_date > ? AND end_date < ?", model.SubscriptionActive, now.UTC(), until).
		Order("end_date").Order("id").Find(&subs).Error
	return subs, model.Wrap(err, "list expiring subscriptions")
}
