package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

type AccountInput struct {
	PlatformID     uint       `json:"platform_id" validate:"required"`
	Name           string     `json:"name" validate:"required,max=120"`
	AccountEmail   string     `json:"account_email" validate:"omitempty,email"`
	Password       string     `json:"password" validate:"max=255"`
	ExpirationDate *time.Time `json:"expiration_date"`
	IsActive       bool       `json:"is_active"`
	// MaxProfiles defaults to the platform cap when zero.
	MaxProfiles int `json:"max_profiles" validate:"gte=0"`
}

type AccountFilter struct {
	PlatformID uint
	ActiveOnly bool
}

func (r *Registry) ListAccounts(ctx context.Context, f AccountFilter) ([]model.Account, error) {
	q := r.db.WithContext(ctx).Preload("Platform").Preload("Profiles", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	})
	if f.PlatformID != 0 {
		q = q.Where("platform_id = ?", f.PlatformID)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var accounts []model.Account
	err := q.Order("id").Find(&accounts).Error
	return accounts, model.Wrap(err, "list accounts")
}

func (r *Registry) GetAccount(ctx context.Context, id uint) (*model.Account, error) {
	var a model.Account
	err := r.db.WithContext(ctx).Preload("Platform").Preload("Profiles", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).First(&a, id).Error
	if err != nil {
		return nil, model.Wrap(err, "load account")
	}
	return &a, nil
}

// CreateAccount stores the account and its Profile 1..N seats, all available.
func (r *Registry) CreateAccount(ctx context.Context, in AccountInput) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var platform model.Platform
		if err := tx.First(&platform, in.PlatformID).Error; err != nil {
			return fmt.Errorf("platform %d: %w", in.PlatformID, model.Wrap(err, "load platform"))
		}
		maxProfiles := in.MaxProfiles
		if maxProfiles == 0 {
			maxProfiles = platform.MaxProfiles
		}
		if maxProfiles < 1 || maxProfiles > platform.MaxProfiles {
			return model.Invalid("max_profiles must be between 1 and %d for %s", platform.MaxProfiles, platform.Name)
		}

		account = model.Account{
			PlatformID:     platform.ID,
			Name:           strings.TrimSpace(in.Name),
			AccountEmail:   strings.TrimSpace(in.AccountEmail),
			Password:       in.Password,
			ExpirationDate: dateOnlyPtr(in.ExpirationDate),
			IsActive:       in.IsActive,
			MaxProfiles:    maxProfiles,
		}
		if err := tx.Omit("Platform", "Profiles").Create(&account).Error; err != nil {
			return err
		}
		profiles := account.NewProfiles()
		return tx.Create(&profiles).Error
	})
	if err != nil {
		return nil, model.Wrap(err, "create account")
	}
	return r.GetAccount(ctx, account.ID)
}

// UpdateAccount edits the account. Growing max_profiles adds seats;
// shrinking removes available seats from the end and fails when the seats
// to remove are in use.
func (r *Registry) UpdateAccount(ctx context.Context, id uint, in AccountInput) (*model.Account, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account model.Account
		if err := tx.First(&account, id).Error; err != nil {
			return err
		}
		if in.PlatformID != 0 && in.PlatformID != account.PlatformID {
			return model.Invalid("an account cannot move to another platform")
		}
		var platform model.Platform
		if err := tx.First(&platform, account.PlatformID).Error; err != nil {
			return err
		}

		maxProfiles := in.MaxProfiles
		if maxProfiles == 0 {
			maxProfiles = account.MaxProfiles
		}
		if maxProfiles < 1 || maxProfiles > platform.MaxProfiles {
			return model.Invalid("max_profiles must be between 1 and %d for %s", platform.MaxProfiles, platform.Name)
		}
		if err := resizeProfiles(tx, &account, maxProfiles); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"name":            strings.TrimSpace(in.Name),
			"account_email":   strings.TrimSpace(in.AccountEmail),
			"expiration_date": dateOnlyPtr(in.ExpirationDate),
			"is_active":       in.IsActive,
			"max_profiles":    maxProfiles,
		}
		if in.Password != "" {
			updates["password"] = in.Password
		}
		return tx.Model(&account).Updates(updates).Error
	})
	if err != nil {
		return nil, model.Wrap(err, "update account")
	}
	return r.GetAccount(ctx, id)
}

func resizeProfiles(tx *gorm.DB, account *model.Account, target int) error {
	var profiles []model.Profile
	if err := tx.Where("account_id = ?", account.ID).Order("id").Find(&profiles).Error; err != nil {
		return err
	}
	current := len(profiles)
	switch {
	case target > current:
		added := make([]model.Profile, 0, target-current)
		for i := current + 1; i <= target; i++ {
			added = append(added, model.Profile{
				AccountID:   account.ID,
				Name:        fmt.Sprintf("Profile %d", i),
				IsAvailable: true,
			})
		}
		return tx.Create(&added).Error
	case target < current:
		surplus := profiles[target:]
		ids := make([]uint, 0, len(surplus))
		for _, p := range surplus {
			if !p.IsAvailable {
				return model.Invalid("profile %q is in use, cannot shrink the account to %d profiles", p.Name, target)
			}
			ids = append(ids, p.ID)
		}
		if err := ensureUnreferenced(tx, "profile history", &model.SubscriptionProfile{}, "profile_id IN ?", ids); err != nil {
			return err
		}
		return tx.Where("id IN ? AND is_available = ?", ids, true).Delete(&model.Profile{}).Error
	}
	return nil
}

// DeleteAccount refuses while any subscription, current or past, points at
// the account.
func (r *Registry) DeleteAccount(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnreferenced(tx, "account has subscriptions", &model.Subscription{}, "account_id = ?", id); err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&model.Profile{}).Error; err != nil {
			return err
		}
		return deleteByID(tx, &model.Account{}, id)
	})
	return model.Wrap(err, "delete account")
}

func (r *Registry) ListProfiles(ctx context.Context, accountID uint) ([]model.Profile, error) {
	var profiles []model.Profile
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id").Find(&profiles).Error
	return profiles, model.Wrap(err, "list profiles")
}

type ProfileInput struct {
	Name string `json:"name" validate:"required,max=64"`
	Pin  string `json:"pin" validate:"omitempty,numeric,max=8"`
}

// UpdateProfile renames a profile. Availability only changes through
// allocation.
func (r *Registry) UpdateProfile(ctx context.Context, id uint, in ProfileInput) (*model.Profile, error) {
	res := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name": strings.TrimSpace(in.Name),
		"pin":  in.Pin,
	})
	if res.Error != nil {
		return nil, model.Wrap(res.Error, "update profile")
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("profile %d: %w", id, model.ErrNotFound)
	}
	var p model.Profile
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, model.Wrap(err, "load profile")
	}
	return &p, nil
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := model.DateOnly(*t)
	return &d
}
