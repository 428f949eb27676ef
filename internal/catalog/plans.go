package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

type PlanInput struct {
	PlatformID     uint            `json:"platform_id" validate:"required"`
	Name           string          `json:"name" validate:"required,max=120"`
	ProfilesCount  int             `json:"profiles_count" validate:"required,min=1"`
	Price          decimal.Decimal `json:"price"`
	DurationMonths int             `json:"duration_months" validate:"required,min=1,max=36"`
}

func (r *Registry) ListPlans(ctx context.Context, platformID uint) ([]model.SubscriptionPlan, error) {
	q := r.db.WithContext(ctx).Preload("Platform")
	if platformID != 0 {
		q = q.Where("platform_id = ?", platformID)
	}
	var plans []model.SubscriptionPlan
	err := q.Order("platform_id").Order("profiles_count").Order("id").Find(&plans).Error
	return plans, model.Wrap(err, "list plans")
}

func (r *Registry) GetPlan(ctx context.Context, id uint) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	if err := r.db.WithContext(ctx).Preload("Platform").First(&plan, id).Error; err != nil {
		return nil, model.Wrap(err, "load plan")
	}
	return &plan, nil
}

func (r *Registry) CreatePlan(ctx context.Context, in PlanInput) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkPlan(tx, in); err != nil {
			return err
		}
		plan = model.SubscriptionPlan{
			PlatformID:     in.PlatformID,
			Name:           strings.TrimSpace(in.Name),
			ProfilesCount:  in.ProfilesCount,
			Price:          in.Price,
			DurationMonths: in.DurationMonths,
		}
		return tx.Omit("Platform").Create(&plan).Error
	})
	if err != nil {
		return nil, model.Wrap(err, "create plan")
	}
	return r.GetPlan(ctx, plan.ID)
}

func (r *Registry) UpdatePlan(ctx context.Context, id uint, in PlanInput) (*model.SubscriptionPlan, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan model.SubscriptionPlan
		if err := tx.First(&plan, id).Error; err != nil {
			return err
		}
		if err := checkPlan(tx, in); err != nil {
			return err
		}
		return tx.Model(&plan).Updates(map[string]interface{}{
			"platform_id":     in.PlatformID,
			"name":            strings.TrimSpace(in.Name),
			"profiles_count":  in.ProfilesCount,
			"price":           in.Price,
			"duration_months": in.DurationMonths,
		}).Error
	})
	if err != nil {
		return nil, model.Wrap(err, "update plan")
	}
	return r.GetPlan(ctx, id)
}

func checkPlan(tx *gorm.DB, in PlanInput) error {
	var platform model.Platform
	if err := tx.First(&platform, in.PlatformID).Error; err != nil {
		return model.Wrap(err, "load platform")
	}
	if in.ProfilesCount < 1 || in.ProfilesCount > platform.MaxProfiles {
		return model.Invalid("profiles_count must be between 1 and %d for %s", platform.MaxProfiles, platform.Name)
	}
	if in.Price.IsNegative() {
		return model.Invalid("price cannot be negative")
	}
	if in.DurationMonths < 1 {
		return model.Invalid("duration_months must be at least 1")
	}
	return nil
}

func (r *Registry) DeletePlan(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnreferenced(tx, "plan has subscriptions", &model.Subscription{}, "plan_id = ?", id); err != nil {
			return err
		}
		return deleteByID(tx, &model.SubscriptionPlan{}, id)
	})
	return model.Wrap(err, "delete plan")
}
