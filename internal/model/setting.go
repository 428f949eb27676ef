package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SettingsSchemaVersion is the only payload version this build accepts.
const SettingsSchemaVersion = 1

type SettingsKind string

const (
	SettingsApp   SettingsKind = "app"
	SettingsStore SettingsKind = "store"
)

type PaymentMethods struct {
	Cash         bool `json:"cash"`
	MobileMoney  bool `json:"mobile_money"`
	BankTransfer bool `json:"bank_transfer"`
	Card         bool `json:"card"`
}

// Enabled reports whether m is switched on.
func (p PaymentMethods) Enabled(m PaymentMethod) bool {
	switch m {
	case PaymentCash:
		return p.Cash
	case PaymentMobileMoney:
		return p.MobileMoney
	case PaymentBankTransfer:
		return p.BankTransfer
	case PaymentCard:
		return p.Card
	}
	return false
}

type AppSettings struct {
	SchemaVersion   int            `json:"schema_version" validate:"required"`
	SiteName        string         `json:"site_name" validate:"required,max=120"`
	ContactEmail    string         `json:"contact_email" validate:"omitempty,email"`
	ContactPhone    string         `json:"contact_phone" validate:"max=32"`
	Address         string         `json:"address" validate:"max=255"`
	Currency        string         `json:"currency" validate:"required,len=3,alpha"`
	CurrencySymbol  string         `json:"currency_symbol" validate:"required,max=8"`
	InvoicePrefix   string         `json:"invoice_prefix" validate:"required,alphanum,max=10"`
	TaxRate         float64        `json:"tax_rate" validate:"gte=0,lte=100"`
	PaymentMethods  PaymentMethods `json:"payment_methods"`
	MaintenanceMode bool           `json:"maintenance_mode"`
}

type ShippingZone struct {
	Name          string          `json:"name" validate:"required,max=64"`
	Fee           decimal.Decimal `json:"fee"`
	EstimatedDays int             `json:"estimated_days" validate:"gte=0,lte=60"`
}

type ProductCategory struct {
	Name string `json:"name" validate:"required,max=64"`
	Slug string `json:"slug" validate:"omitempty,max=64"`
}

type SEOSettings struct {
	MetaTitle       string   `json:"meta_title" validate:"max=70"`
	MetaDescription string   `json:"meta_description" validate:"max=160"`
	Keywords        []string `json:"keywords" validate:"max=20,dive,max=40"`
}

type SocialLinks struct {
	Facebook  string `json:"facebook" validate:"omitempty,url"`
	Instagram string `json:"instagram" validate:"omitempty,url"`
	TikTok    string `json:"tiktok" validate:"omitempty,url"`
	WhatsApp  string `json:"whatsapp" validate:"max=32"`
}

type StoreSettings struct {
	SchemaVersion      int               `json:"schema_version" validate:"required"`
	StoreName          string            `json:"store_name" validate:"required,max=120"`
	StoreEnabled       bool              `json:"store_enabled"`
	AllowGuestCheckout bool              `json:"allow_guest_checkout"`
	ShowOutOfStock     bool              `json:"show_out_of_stock"`
	LowStockThreshold  int               `json:"low_stock_threshold" validate:"gte=0"`
	ShippingZones      []ShippingZone    `json:"shipping_zones" validate:"dive"`
	ProductCategories  []ProductCategory `json:"product_categories" validate:"dive"`
	SEO                SEOSettings       `json:"seo"`
	Social             SocialLinks       `json:"social"`
}

// Zone looks a shipping zone up by name.
func (s StoreSettings) Zone(name string) (ShippingZone, bool) {
	for _, z := range s.ShippingZones {
		if z.Name == name {
			return z, true
		}
	}
	return ShippingZone{}, false
}

// AppSetting and StoreSetting hold one row each.
type AppSetting struct {
	Base
	Data datatypes.JSONType[AppSettings] `json:"data"`
}

type StoreSetting struct {
	Base
	Data datatypes.JSONType[StoreSettings] `json:"data"`
}
