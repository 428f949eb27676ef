package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleCompleted SaleStatus = "completed"
	SalePending   SaleStatus = "pending"
	SaleCancelled SaleStatus = "cancelled"
)

type SaleChannel string

const (
	SaleChannelCounter    SaleChannel = "counter"
	SaleChannelStorefront SaleChannel = "storefront"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentMobileMoney  PaymentMethod = "mobile_money"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCard         PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentMobileMoney, PaymentBankTransfer, PaymentCard:
		return true
	}
	return false
}

type Sale struct {
	Base
	CustomerID       uint            `json:"customer_id" gorm:"index;not null"`
	Date             time.Time       `json:"date" gorm:"index;not null"`
	Status           SaleStatus      `json:"status" gorm:"index;not null"`
	TotalAmount      decimal.Decimal `json:"total_amount" gorm:"type:numeric(14,2);not null"`
	ShippingFee      decimal.Decimal `json:"shipping_fee" gorm:"type:numeric(14,2);not null;default:0"`
	ShippingZone     string          `json:"shipping_zone,omitempty"`
	Channel          SaleChannel     `json:"channel" gorm:"size:16;not null"`
	PaymentMethod    PaymentMethod   `json:"payment_method" gorm:"size:16;not null"`
	PaymentReference string          `json:"payment_reference,omitempty" gorm:"index"`
	InvoiceNumber    string          `json:"invoice_number" gorm:"uniqueIndex;not null"`

	Customer *Customer  `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Items    []SaleItem `json:"items,omitempty" gorm:"foreignKey:SaleID"`
}

// GrandTotal is what the customer pays: lines plus shipping.
func (s *Sale) GrandTotal() decimal.Decimal {
	return s.TotalAmount.Add(s.ShippingFee)
}

// SaleItem references exactly one of ProductID or ServiceID.
type SaleItem struct {
	Base
	SaleID      uint            `json:"sale_id" gorm:"index;not null"`
	ProductID   *uint           `json:"product_id" gorm:"index"`
	ServiceID   *uint           `json:"service_id" gorm:"index"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(14,2);not null"`
	TotalPrice  decimal.Decimal `json:"total_price" gorm:"type:numeric(14,2);not null"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Service *Service `json:"service,omitempty" gorm:"foreignKey:ServiceID"`
}
