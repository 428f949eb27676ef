package model

import "gorm.io/gorm"

type NotificationKind string

const (
	NotifyAccountExpiring      NotificationKind = "account_expiring"
	NotifySubscriptionExpiring NotificationKind = "subscription_expiring"
	NotifySubscriptionExpired  NotificationKind = "subscription_expired"
	NotifyCapacityConflict     NotificationKind = "capacity_conflict"
	NotifyLowStock             NotificationKind = "low_stock"
	NotifyOrder                NotificationKind = "order"
)

type Notification struct {
	gorm.Model
	UserID  uint             `json:"user_id" gorm:"index;not null"`
	Kind    NotificationKind `json:"kind" gorm:"size:32;not null"`
	Title   string           `json:"title" gorm:"not null"`
	Message string           `json:"message" gorm:"type:text"`
	Read    bool             `json:"read" gorm:"not null"`
	Link    string           `json:"link"`
}
