package model

import (
	"fmt"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	Base
	Name        string          `json:"name" gorm:"not null"`
	Slug        string          `json:"slug" gorm:"uniqueIndex;not null"`
	Description string          `json:"description" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(14,2);not null"`
	Stock       int             `json:"stock" gorm:"not null"`
	ImageURL    string          `json:"image_url"`
	Category    string          `json:"category" gorm:"index"`
}

// BeforeCreate derives a unique slug from the name.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.Slug != "" {
		return nil
	}
	base := slug.Make(p.Name)
	if base == "" {
		base = "product"
	}
	candidate := base
	for i := 2; ; i++ {
		var count int64
		if err := tx.Session(&gorm.Session{NewDB: true}).Model(&Product{}).
			Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			break
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	p.Slug = candidate
	return nil
}

type Service struct {
	Base
	Name            string          `json:"name" gorm:"not null"`
	Description     string          `json:"description" gorm:"type:text"`
	Price           decimal.Decimal `json:"price" gorm:"type:numeric(14,2);not null"`
	DurationMinutes int             `json:"duration_minutes"`
	Category        string          `json:"category" gorm:"index"`
}
