package model

import (
	"fmt"
	"time"
)

// Account is a credential set on a platform, split into profiles.
type Account struct {
	Base
	PlatformID     uint       `json:"platform_id" gorm:"index;not null"`
	Name           string     `json:"name" gorm:"not null"`
	AccountEmail   string     `json:"account_email"`
	Password       string     `json:"-"`
	ExpirationDate *time.Time `json:"expiration_date"`
	IsActive       bool       `json:"is_active" gorm:"not null"`
	MaxProfiles    int        `json:"max_profiles" gorm:"not null"`

	Platform *Platform `json:"platform,omitempty" gorm:"foreignKey:PlatformID"`
	Profiles []Profile `json:"profiles,omitempty" gorm:"foreignKey:AccountID"`
}

// EligibleOn reports whether the account may receive new allocations on day.
// An account expiring on day is still eligible that day.
func (a *Account) EligibleOn(day time.Time) bool {
	if !a.IsActive {
		return false
	}
	return a.ExpirationDate == nil || !DateOnly(*a.ExpirationDate).Before(DateOnly(day))
}

// NewProfiles builds the initial, all-available profile set of the account.
func (a *Account) NewProfiles() []Profile {
	profiles := make([]Profile, 0, a.MaxProfiles)
	for i := 1; i <= a.MaxProfiles; i++ {
		profiles = append(profiles, Profile{
			AccountID:   a.ID,
			Name:        fmt.Sprintf("Profile %d", i),
			IsAvailable: true,
		})
	}
	return profiles
}

// Profile is an allocatable seat of an account. It is either available or
// bound to exactly one active subscription.
type Profile struct {
	Base
	AccountID   uint   `json:"account_id" gorm:"index;not null"`
	Name        string `json:"name" gorm:"not null"`
	Pin         string `json:"pin,omitempty"`
	IsAvailable bool   `json:"is_available" gorm:"index;not null"`

	Account *Account `json:"account,omitempty" gorm:"foreignKey:AccountID"`
}
