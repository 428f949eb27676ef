package reporting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

type Dashboard struct {
	ActiveSubscriptions int64           `json:"active_subscriptions"`
	TotalCustomers      int64           `json:"total_customers"`
	AvailableProfiles   int64           `json:"available_profiles"`
	ExpiringAccounts    int             `json:"expiring_accounts"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	TotalExpenses       decimal.Decimal `json:"total_expenses"`
	ProductsSold        int64           `json:"products_sold"`
	ServicesDelivered   int64           `json:"services_delivered"`
}

// Dashboard computes the all-time counters of the home screen.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	d := &Dashboard{}

	if err := db.Model(&model.Subscription{}).Where("status = ?", model.SubscriptionActive).
		Count(&d.ActiveSubscriptions).Error; err != nil {
		return nil, model.Wrap(err, "count subscriptions")
	}
	if err := db.Model(&model.Customer{}).Count(&d.TotalCustomers).Error; err != nil {
		return nil, model.Wrap(err, "count customers")
	}
	if err := db.Model(&model.Profile{}).Where("is_available = ?", true).
		Count(&d.AvailableProfiles).Error; err != nil {
		return nil, model.Wrap(err, "count profiles")
	}
	expiring, err := s.ExpiringAccounts(ctx, ExpiringThresholdDays)
	if err != nil {
		return nil, err
	}
	d.ExpiringAccounts = len(expiring)

	sales, err := sumOf(db.Model(&model.Sale{}).Where("status = ?", model.SaleCompleted), "total_amount")
	if err != nil {
		return nil, model.Wrap(err, "sum sales")
	}
	plans, err := sumOf(db.Model(&model.Subscription{}).
		Joins("JOIN subscription_plans ON subscription_plans.id = subscriptions.plan_id").
		Where("subscriptions.status IN ?", revenueStatuses), "subscription_plans.price")
	if err != nil {
		return nil, model.Wrap(err, "sum subscriptions")
	}
	expenses, err := sumOf(db.Model(&model.Expense{}), "amount")
	if err != nil {
		return nil, model.Wrap(err, "sum expenses")
	}
	d.TotalRevenue = sales.Add(plans)
	d.TotalExpenses = expenses

	sold := db.Model(&model.SaleItem{}).
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Where("sales.status = ?", model.SaleCompleted)
	if err := sold.Session(&gorm.Session{}).Where("sale_items.product_id IS NOT NULL").
		Select("COALESCE(SUM(sale_items.quantity), 0)").Scan(&d.ProductsSold).Error; err != nil {
		return nil, model.Wrap(err, "count products sold")
	}
	if err := sold.Session(&gorm.Session{}).Where("sale_items.service_id IS NOT NULL").
		Count(&d.ServicesDelivered).Error; err != nil {
		return nil, model.Wrap(err, "count services delivered")
	}
	return d, nil
}

func sumOf(q *gorm.DB, column string) (decimal.Decimal, error) {
	var row struct{ Total decimal.Decimal }
	err := q.Select("COALESCE(SUM(" + column + "), 0) AS total").Scan(&row).Error
	return row.Total, err
}

type Summary struct {
	Sales         decimal.Decimal `json:"sales"`
	Subscriptions decimal.Decimal `json:"subscriptions"`
	Revenue       decimal.Decimal `json:"revenue"`
	Expenses      decimal.Decimal `json:"expenses"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	// ProfitMargin is a percentage of revenue, zero when there is none.
	ProfitMargin decimal.Decimal `json:"profit_margin"`
}

type Report struct {
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"`
	Granularity Granularity     `json:"granularity"`
	Revenue     []PeriodRevenue `json:"revenue"`
	Expenses    []CategoryTotal `json:"expenses"`
	Customers   CustomerStats   `json:"customers"`
	Summary     Summary         `json:"summary"`
}

// Build assembles the full report of the reports screen.
func (s *Service) Build(ctx context.Context, start, end time.Time, g Granularity) (*Report, error) {
	revenue, err := s.RevenueByPeriod(ctx, start, end, g)
	if err != nil {
		return nil, err
	}
	expenses, err := s.ExpensesByCategory(ctx, start, end)
	if err != nil {
		return nil, err
	}
	customers, err := s.Customers(ctx, start)
	if err != nil {
		return nil, err
	}

	sum := Summary{Sales: decimal.Zero, Subscriptions: decimal.Zero, Expenses: decimal.Zero}
	for _, r := range revenue {
		sum.Sales = sum.Sales.Add(r.Sales)
		sum.Subscriptions = sum.Subscriptions.Add(r.Subscriptions)
	}
	for _, e := range expenses {
		sum.Expenses = sum.Expenses.Add(e.Total)
	}
	sum.Revenue = sum.Sales.Add(sum.Subscriptions)
	sum.NetProfit = sum.Revenue.Sub(sum.Expenses)
	if sum.Revenue.IsPositive() {
		sum.ProfitMargin = sum.NetProfit.Div(sum.Revenue).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return &Report{
		Start:       model.DateOnly(start),
		End:         model.DateOnly(end),
		Granularity: g,
		Revenue:     revenue,
		Expenses:    expenses,
		Customers:   customers,
		Summary:     sum,
	}, nil
}
