package model

import "github.com/shopspring/decimal"

// SubscriptionPlan is a priced bundle of profiles on one platform.
// DurationMonths is informational: allocation always grants SubscriptionPeriodDays.
type SubscriptionPlan struct {
	Base
	PlatformID     uint            `json:"platform_id" gorm:"index;not null"`
	Name           string          `json:"name" gorm:"not null"`
	ProfilesCount  int             `json:"profiles_count" gorm:"not null"`
	Price          decimal.Decimal `json:"price" gorm:"type:numeric(14,2);not null"`
	DurationMonths int             `json:"duration_months" gorm:"not null"`

	Platform *Platform `json:"platform,omitempty" gorm:"foreignKey:PlatformID"`
}
