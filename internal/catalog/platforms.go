package catalog

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

type PlatformInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	LogoURL     string `json:"logo_url" validate:"omitempty,url"`
	MaxProfiles int    `json:"max_profiles" validate:"required,min=1,max=20"`
}

func (r *Registry) ListPlatforms(ctx context.Context) ([]model.Platform, error) {
	var platforms []model.Platform
	err := r.db.WithContext(ctx).Order("name").Find(&platforms).Error
	return platforms, model.Wrap(err, "list platforms")
}

func (r *Registry) GetPlatform(ctx context.Context, id uint) (*model.Platform, error) {
	var p model.Platform
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, model.Wrap(err, "load platform")
	}
	return &p, nil
}

func (r *Registry) CreatePlatform(ctx context.Context, in PlatformInput) (*model.Platform, error) {
	if in.MaxProfiles < 1 {
		return nil, model.Invalid("max_profiles must be at least 1")
	}
	p := model.Platform{
		Name:        strings.TrimSpace(in.Name),
		LogoURL:     in.LogoURL,
		MaxProfiles: in.MaxProfiles,
	}
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, model.Wrap(err, "create platform")
	}
	return &p, nil
}

// UpdatePlatform refuses to lower the cap below what existing accounts or
// plans already use.
func (r *Registry) UpdatePlatform(ctx context.Context, id uint, in PlatformInput) (*model.Platform, error) {
	if in.MaxProfiles < 1 {
		return nil, model.Invalid("max_profiles must be at least 1")
	}
	var p model.Platform
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		if in.MaxProfiles < p.MaxProfiles {
			var used struct{ Accounts, Plans int }
			if err := tx.Model(&model.Account{}).Select("COALESCE(MAX(max_profiles), 0)").
				Where("platform_id = ?", id).Scan(&used.Accounts).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.SubscriptionPlan{}).Select("COALESCE(MAX(profiles_count), 0)").
				Where("platform_id = ?", id).Scan(&used.Plans).Error; err != nil {
				return err
			}
			if in.MaxProfiles < used.Accounts || in.MaxProfiles < used.Plans {
				return model.Invalid("max_profiles %d is below what accounts or plans of this platform use", in.MaxProfiles)
			}
		}
		p.Name = strings.TrimSpace(in.Name)
		p.LogoURL = in.LogoURL
		p.MaxProfiles = in.MaxProfiles
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, model.Wrap(err, "update platform")
	}
	return &p, nil
}

func (r *Registry) DeletePlatform(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnreferenced(tx, "platform has accounts", &model.Account{}, "platform_id = ?", id); err != nil {
			return err
		}
		if err := ensureUnreferenced(tx, "platform has plans", &model.SubscriptionPlan{}, "platform_id = ?", id); err != nil {
			return err
		}
		return deleteByID(tx, &model.Platform{}, id)
	})
	return model.Wrap(err, "delete platform")
}
