// Package catalog manages the read-mostly reference data: platforms,
// accounts and their profiles, plans, products, services, customers and
// expenses.
package catalog

import (
	"fmt"

	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// ensureUnreferenced fails with ErrStillReferenced when any row of m
// matches the query.
func ensureUnreferenced(tx *gorm.DB, what string, m interface{}, query string, args ...interface{}) error {
	var n int64
	if err := tx.Model(m).Where(query, args...).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%s: %w", what, model.ErrStillReferenced)
	}
	return nil
}

// deleteByID removes one row, reporting ErrNotFound when nothing matched.
func deleteByID(tx *gorm.DB, m interface{}, id uint) error {
	res := tx.Delete(m, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
