package model

type Platform struct {
	Base
	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	LogoURL     string `json:"logo_url"`
	MaxProfiles int    `json:"max_profiles" gorm:"not null"`
}
