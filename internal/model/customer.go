package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContactChannel tags where a customer came from.
type ContactChannel string

const (
	ChannelFacebookSB  ContactChannel = "facebook_sb"
	ChannelWhatsAppYas ContactChannel = "whatsapp_yas"
	ChannelEmail       ContactChannel = "email"
	ChannelSMSYas      ContactChannel = "sms_yas"
	ChannelFacebookSAB ContactChannel = "facebook_sab"
	ChannelFacebookSSB ContactChannel = "facebook_ssb"
	ChannelFacebookBNK ContactChannel = "facebook_bnk"
	ChannelSMSOrange   ContactChannel = "sms_orange"
	ChannelCallYas     ContactChannel = "call_yas"
	ChannelCallOrange  ContactChannel = "call_orange"
	ChannelStorefront  ContactChannel = "storefront"
)

var contactChannels = map[ContactChannel]bool{
	ChannelFacebookSB: true, ChannelWhatsAppYas: true, ChannelEmail: true,
	ChannelSMSYas: true, ChannelFacebookSAB: true, ChannelFacebookSSB: true,
	ChannelFacebookBNK: true, ChannelSMSOrange: true, ChannelCallYas: true,
	ChannelCallOrange: true, ChannelStorefront: true,
}

func (c ContactChannel) Valid() bool {
	return contactChannels[c]
}

type Customer struct {
	Base
	UserID         *uint           `json:"user_id" gorm:"index"`
	Name           string          `json:"name" gorm:"not null"`
	Email          string          `json:"email" gorm:"index"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	City           string          `json:"city"`
	Notes          string          `json:"notes" gorm:"type:text"`
	ContactChannel ContactChannel  `json:"contact_channel" gorm:"size:32"`
	TotalOrders    int             `json:"total_orders" gorm:"not null;default:0"`
	TotalSpent     decimal.Decimal `json:"total_spent" gorm:"type:numeric(14,2);not null;default:0"`
	LastOrderDate  *time.Time      `json:"last_order_date"`
}
