package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Expense struct {
	Base
	Description string          `json:"description" gorm:"not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	Category    string          `json:"category" gorm:"index;not null"`
	Date        time.Time       `json:"date" gorm:"index;not null"`
}
