// Package reporting aggregates sales, subscriptions and expenses for the
// dashboard and the periodic reports.
package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

// ExpiringThresholdDays is the look-ahead of the dashboard expiry counter.
const ExpiringThresholdDays = 7

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithClock replaces the clock used for "today".
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

type SalesBucket struct {
	Period       string          `json:"period"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	SalesCount   int64           `json:"sales_count"`
}

// SalesReport groups completed sales between start and end (days, both
// included) in the database. Only periods with sales are returned.
func (s *Service) SalesReport(ctx context.Context, start, end time.Time, g Granularity) ([]SalesBucket, error) {
	from, to, err := span(start, end)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	bucket := g.sqlBucket(db.Dialector.Name(), "date")

	var rows []SalesBucket
	err = db.Model(&model.Sale{}).
		Select(bucket+" AS period, COALESCE(SUM(total_amount), 0) AS total_revenue, COUNT(*) AS sales_count").
		Where("status = ? AND date >= ? AND date < ?", model.SaleCompleted, from, to).
		Group("period").Order("period").
		Scan(&rows).Error
	return rows, model.Wrap(err, "sales report")
}

type PeriodRevenue struct {
	Period        string          `json:"period"`
	Sales         decimal.Decimal `json:"sales"`
	Subscriptions decimal.Decimal `json:"subscriptions"`
	Total         decimal.Decimal `json:"total"`
}

// revenueStatuses are the subscription states that count as earned money.
// Cancelled subscriptions are left out; expired ones were paid in full.
var revenueStatuses = []model.SubscriptionStatus{model.SubscriptionActive, model.SubscriptionExpired}

// RevenueByPeriod merges completed sales with the plan price of every
// subscription created in each period. Every period between start and end
// is present, with zeros where nothing happened.
func (s *Service) RevenueByPeriod(ctx context.Context, start, end time.Time, g Granularity) ([]PeriodRevenue, error) {
	sales, err := s.SalesReport(ctx, start, end, g)
	if err != nil {
		return nil, err
	}
	from, to, _ := span(start, end)

	var subs []model.Subscription
	err = s.db.WithContext(ctx).Preload("Plan").
		Where("status IN ? AND created_at >= ? AND created_at < ?", revenueStatuses, from, to).
		Find(&subs).Error
	if err != nil {
		return nil, model.Wrap(err, "load subscriptions")
	}

	periods := g.Periods(start, end)
	index := make(map[string]*PeriodRevenue, len(periods))
	out := make([]PeriodRevenue, len(periods))
	for i, p := range periods {
		out[i] = PeriodRevenue{Period: p, Sales: decimal.Zero, Subscriptions: decimal.Zero}
		index[p] = &out[i]
	}
	for _, b := range sales {
		if r, ok := index[b.Period]; ok {
			r.Sales = r.Sales.Add(b.TotalRevenue)
		}
	}
	for _, sub := range subs {
		if sub.Plan == nil {
			continue
		}
		if r, ok := index[g.Key(sub.CreatedAt)]; ok {
			r.Subscriptions = r.Subscriptions.Add(sub.Plan.Price)
		}
	}
	for i := range out {
		out[i].Total = out[i].Sales.Add(out[i].Subscriptions)
	}
	return out, nil
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// ExpensesByCategory sums expenses dated between start and end, largest
// category first.
func (s *Service) ExpensesByCategory(ctx context.Context, start, end time.Time) ([]CategoryTotal, error) {
	from, to, err := span(start, end)
	if err != nil {
		return nil, err
	}
	var rows []CategoryTotal
	err = s.db.WithContext(ctx).Model(&model.Expense{}).
		Select("category, COALESCE(SUM(amount), 0) AS total").
		Where("date >= ? AND date < ?", from, to).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, model.Wrap(err, "expenses by category")
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].Category < rows[j].Category
	})
	return rows, nil
}

type ExpiringAccount struct {
	model.Account
	DaysLeft int `json:"days_left"`
}

// ExpiringAccounts lists active accounts whose expiration date falls between
// today and today+days, soonest first.
func (s *Service) ExpiringAccounts(ctx context.Context, days int) ([]ExpiringAccount, error) {
	if days < 0 {
		return nil, model.Invalid("days threshold cannot be negative")
	}
	today := model.DateOnly(s.now())
	var accounts []model.Account
	err := s.db.WithContext(ctx).Preload("Platform").
		Where("is_active = ? AND expiration_date IS NOT NULL", true).
		Where("expiration_date >= ? AND expiration_date <= ?", today, today.AddDate(0, 0, days)).
		Order("expiration_date").Order("id").
		Find(&accounts).Error
	if err != nil {
		return nil, model.Wrap(err, "expiring accounts")
	}
	out := make([]ExpiringAccount, len(accounts))
	for i, a := range accounts {
		left := int(model.DateOnly(*a.ExpirationDate).Sub(today).Hours() / 24)
		out[i] = ExpiringAccount{Account: a, DaysLeft: left}
	}
	return out, nil
}

type CustomerStats struct {
	Total  int64 `json:"total"`
	New    int64 `json:"new"`
	Active int64 `json:"active"`
}

// Customers counts all customers, those created since start and those
// holding an active subscription.
func (s *Service) Customers(ctx context.Context, start time.Time) (CustomerStats, error) {
	db := s.db.WithContext(ctx)
	var st CustomerStats
	if err := db.Model(&model.Customer{}).Count(&st.Total).Error; err != nil {
		return st, model.Wrap(err, "count customers")
	}
	if err := db.Model(&model.Customer{}).Where("created_at >= ?", model.DateOnly(start)).
		Count(&st.New).Error; err != nil {
		return st, model.Wrap(err, "count new customers")
	}
	if err := db.Model(&model.Subscription{}).Where("status = ?", model.SubscriptionActive).
		Distinct("customer_id").Count(&st.Active).Error; err != nil {
		return st, model.Wrap(err, "count active customers")
	}
	return st, nil
}
