package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubscriptionPeriodDays is the fixed length of every subscription.
// It deliberately ignores SubscriptionPlan.DurationMonths; the two disagree
// for multi-month plans and the mismatch is kept until product decides.
const SubscriptionPeriodDays = 30

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// CanTransitionTo reports whether status may move to next.
// Only active subscriptions move; expired and cancelled are terminal.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	return s == SubscriptionActive && (next == SubscriptionExpired || next == SubscriptionCancelled)
}

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionExpired, SubscriptionCancelled:
		return true
	}
	return false
}

type Subscription struct {
	Base
	CustomerID    uint               `json:"customer_id" gorm:"index;not null"`
	PlanID        uint               `json:"plan_id" gorm:"index;not null"`
	AccountID     uint               `json:"account_id" gorm:"index;not null"`
	StartDate     time.Time          `json:"start_date" gorm:"not null"`
	EndDate       time.Time          `json:"end_date" gorm:"index;not null"`
	Status        SubscriptionStatus `json:"status" gorm:"index;not null"`
	CancelledAt   *time.Time         `json:"cancelled_at"`
	InvoiceNumber string             `json:"invoice_number" gorm:"uniqueIndex;not null"`

	Customer *Customer         `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Plan     *SubscriptionPlan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
	Account  *Account          `json:"account,omitempty" gorm:"foreignKey:AccountID"`
	Profiles []Profile         `json:"profiles,omitempty" gorm:"many2many:subscription_profiles;"`
}

// SubscriptionProfile binds a profile to the subscription that reserved it.
type SubscriptionProfile struct {
	SubscriptionID uint      `gorm:"primaryKey"`
	ProfileID      uint      `gorm:"primaryKey;index"`
	CreatedAt      time.Time `json:"created_at"`
}

// EndDateFor returns the end date granted to a subscription starting on start.
func EndDateFor(start time.Time) time.Time {
	return DateOnly(start).AddDate(0, 0, SubscriptionPeriodDays)
}

// NewInvoiceNumber returns "<prefix>-<8 hex chars>".
func NewInvoiceNumber(prefix string) string {
	if prefix == "" {
		prefix = "INV"
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", strings.ToUpper(prefix), strings.ToUpper(id[:8]))
}

// DaysLeft counts whole days between now and the end date.
func (s *Subscription) DaysLeft(now time.Time) int {
	return int(DateOnly(s.EndDate).Sub(DateOnly(now)).Hours() / 24)
}
