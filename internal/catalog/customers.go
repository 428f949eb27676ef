package catalog

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

type CustomerInput struct {
	Name           string               `json:"name" validate:"required,max=160"`
	Email          string               `json:"email" validate:"omitempty,email"`
	Phone          string               `json:"phone" validate:"max=32"`
	Address        string               `json:"address"`
	City           string               `json:"city" validate:"max=64"`
	Notes          string               `json:"notes"`
	ContactChannel model.ContactChannel `json:"contact_channel"`
}

func (in CustomerInput) check() error {
	if in.ContactChannel != "" && !in.ContactChannel.Valid() {
		return model.Invalid("unknown contact channel %q", in.ContactChannel)
	}
	return nil
}

// SearchCustomers matches the term against name, email and phone. An empty
// term lists everybody.
func (r *Registry) SearchCustomers(ctx context.Context, term string) ([]model.Customer, error) {
	q := r.db.WithContext(ctx)
	if t := strings.TrimSpace(term); t != "" {
		like := "%" + strings.ToLower(t) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", like, like, "%"+t+"%")
	}
	var customers []model.Customer
	err := q.Order("name").Order("id").Find(&customers).Error
	return customers, model.Wrap(err, "search customers")
}

func (r *Registry) GetCustomer(ctx context.Context, id uint) (*model.Customer, error) {
	var c model.Customer
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, model.Wrap(err, "load customer")
	}
	return &c, nil
}

func (r *Registry) CreateCustomer(ctx context.Context, in CustomerInput) (*model.Customer, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	c := model.Customer{
		Name:           strings.TrimSpace(in.Name),
		Email:          model.NormalizeEmail(in.Email),
		Phone:          strings.TrimSpace(in.Phone),
		Address:        in.Address,
		City:           in.City,
		Notes:          in.Notes,
		ContactChannel: in.ContactChannel,
	}
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, model.Wrap(err, "create customer")
	}
	return &c, nil
}

// UpdateCustomer edits contact details. Order aggregates are owned by sales.
func (r *Registry) UpdateCustomer(ctx context.Context, id uint, in CustomerInput) (*model.Customer, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).Model(&model.Customer{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":            strings.TrimSpace(in.Name),
		"email":           model.NormalizeEmail(in.Email),
		"phone":           strings.TrimSpace(in.Phone),
		"address":         in.Address,
		"city":            in.City,
		"notes":           in.Notes,
		"contact_channel": in.ContactChannel,
	})
	if res.Error != nil {
		return nil, model.Wrap(res.Error, "update customer")
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("customer %d: %w", id, model.ErrNotFound)
	}
	return r.GetCustomer(ctx, id)
}

func (r *Registry) DeleteCustomer(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnreferenced(tx, "customer has subscriptions", &model.Subscription{}, "customer_id = ?", id); err != nil {
			return err
		}
		if err := ensureUnreferenced(tx, "customer has sales", &model.Sale{}, "customer_id = ?", id); err != nil {
			return err
		}
		return deleteByID(tx, &model.Customer{}, id)
	})
	return model.Wrap(err, "delete customer")
}
