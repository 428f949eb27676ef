package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// OrDefault returns the role, or customer when none is attached.
func (r Role) OrDefault() Role {
	if r == "" {
		return RoleCustomer
	}
	return r
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

type User struct {
	gorm.Model
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-" gorm:"not null"`
	Role     Role   `json:"role" gorm:"size:16;not null"`

	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Phone     string     `json:"phone"`
	AvatarURL string     `json:"avatar_url"`
	LastLogin *time.Time `json:"last_login"`
}

func (u *User) GetFullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) GetPublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":         u.ID,
		"email":      u.Email,
		"role":       u.Role.OrDefault(),
		"full_name":  u.GetFullName(),
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"phone":      u.Phone,
		"avatar_url": u.AvatarURL,
		"last_login": u.LastLogin,
	}
}

// NormalizeEmail trims and lower-cases an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
