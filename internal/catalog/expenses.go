package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dinidesk_backend/internal/model"
)

type ExpenseInput struct {
	Description string          `json:"description" validate:"required,max=255"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category" validate:"required,max=64"`
	Date        time.Time       `json:"date" validate:"required"`
}

func (in ExpenseInput) check() error {
	if !in.Amount.IsPositive() {
		return model.Invalid("amount must be greater than zero")
	}
	return nil
}

type ExpenseFilter struct {
	Category string
	From     *time.Time
	To       *time.Time
}

func (r *Registry) ListExpenses(ctx context.Context, f ExpenseFilter) ([]model.Expense, error) {
	q := r.db.WithContext(ctx)
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.From != nil {
		q = q.Where("date >= ?", model.DateOnly(*f.From))
	}
	if f.To != nil {
		q = q.Where("date < ?", model.DateOnly(*f.To).AddDate(0, 0, 1))
	}
	var expenses []model.Expense
	err := q.Order("date DESC").Order("id DESC").Find(&expenses).Error
	return expenses, model.Wrap(err, "list expenses")
}

func (r *Registry) GetExpense(ctx context.Context, id uint) (*model.Expense, error) {
	var e model.Expense
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, model.Wrap(err, "load expense")
	}
	return &e, nil
}

func (r *Registry) CreateExpense(ctx context.Context, in ExpenseInput) (*model.Expense, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	e := model.Expense{
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		Category:    strings.TrimSpace(in.Category),
		Date:        model.DateOnly(in.Date),
	}
	if err := r.db.WithContext(ctx).Create(&e).Error; err != nil {
		return nil, model.Wrap(err, "create expense")
	}
	return &e, nil
}

func (r *Registry) UpdateExpense(ctx context.Context, id uint, in ExpenseInput) (*model.Expense, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).Model(&model.Expense{}).Where("id = ?", id).Updates(map[string]interface{}{
		"description": strings.TrimSpace(in.Description),
		"amount":      in.Amount,
		"category":    strings.TrimSpace(in.Category),
		"date":        model.DateOnly(in.Date),
	})
	if res.Error != nil {
		return nil, model.Wrap(res.Error, "update expense")
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("expense %d: %w", id, model.ErrNotFound)
	}
	return r.GetExpense(ctx, id)
}

func (r *Registry) DeleteExpense(ctx context.Context, id uint) error {
	return model.Wrap(deleteByID(r.db.WithContext(ctx), &model.Expense{}, id), "delete expense")
}
