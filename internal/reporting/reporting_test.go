package reporting

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/testutil"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

type seed struct {
	db       *gorm.DB
	customer model.Customer
	plan     model.SubscriptionPlan
	account  model.Account
}

func newSeed(t *testing.T) *seed {
	t.Helper()
	db := testutil.NewDB(t)
	s := &seed{db: db}
	platform := model.Platform{Name: "Netflix", MaxProfiles: 5}
	require.NoError(t, db.Create(&platform).Error)
	s.plan = model.SubscriptionPlan{PlatformID: platform.ID, Name: "Solo", ProfilesCount: 1, Price: decimal.NewFromInt(10000), DurationMonths: 1}
	require.NoError(t, db.Omit("Platform").Create(&s.plan).Error)
	s.account = model.Account{PlatformID: platform.ID, Name: "NF-01", IsActive: true, MaxProfiles: 5}
	require.NoError(t, db.Omit("Platform", "Profiles").Create(&s.account).Error)
	profiles := s.account.NewProfiles()
	require.NoError(t, db.Create(&profiles).Error)
	s.customer = model.Customer{Name: "Hery"}
	require.NoError(t, db.Create(&s.customer).Error)
	return s
}

func (s *seed) sale(t *testing.T, at time.Time, amount int64, status model.SaleStatus) {
	t.Helper()
	sale := model.Sale{
		CustomerID: s.customer.ID, Date: at, Status: status,
		TotalAmount: decimal.NewFromInt(amount), Channel: model.SaleChannelCounter,
		PaymentMethod: model.PaymentCash, InvoiceNumber: model.NewInvoiceNumber("T"),
	}
	require.NoError(t, s.db.Omit("Customer", "Items").Create(&sale).Error)
}

func (s *seed) subscription(t *testing.T, created time.Time, status model.SubscriptionStatus) {
	t.Helper()
	sub := model.Subscription{
		Base:       model.Base{CreatedAt: created},
		CustomerID: s.customer.ID, PlanID: s.plan.ID, AccountID: s.account.ID,
		StartDate: model.DateOnly(created), EndDate: model.EndDateFor(created),
		Status: status, InvoiceNumber: model.NewInvoiceNumber("T"),
	}
	require.NoError(t, s.db.Omit("Customer", "Plan", "Account", "Profiles").Create(&sub).Error)
}

func (s *seed) expense(t *testing.T, at time.Time, category string, amount int64) {
	t.Helper()
	e := model.Expense{Description: category, Category: category, Amount: decimal.NewFromInt(amount), Date: at}
	require.NoError(t, s.db.Create(&e).Error)
}

func TestGranularityPeriods(t *testing.T) {
	tests := []struct {
		g     Granularity
		start time.Time
		end   time.Time
		want  []string
	}{
		{Daily, day(1), day(3), []string{"2024-03-01", "2024-03-02", "2024-03-03"}},
		// 2024-03-01 is a Friday
		{Weekly, day(1), day(12), []string{"2024-02-26", "2024-03-04", "2024-03-11"}},
		{Monthly, day(15), time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), []string{"2024-03-01", "2024-04-01", "2024-05-01"}},
		{Daily, day(5), day(5), []string{"2024-03-05"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.g), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.g.Periods(tt.start, tt.end))
		})
	}

	_, err := ParseGranularity("hourly")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	g, err := ParseGranularity("")
	require.NoError(t, err)
	assert.Equal(t, Daily, g)
}

func TestSalesReportBucketsInDatabase(t *testing.T) {
	ctx := context.Background()
	s := newSeed(t)
	s.sale(t, day(4).Add(9*time.Hour), 1000, model.SaleCompleted)
	s.sale(t, day(4).Add(18*time.Hour), 2500, model.SaleCompleted)
	s.sale(t, day(6).Add(23*time.Hour), 700, model.SaleCompleted)
	s.sale(t, day(6), 9999, model.SaleCancelled)
	s.sale(t, day(11), 400, model.SaleCompleted)
	svc := NewService(s.db)

	daily, err := svc.SalesReport(ctx, day(1), day(10), Daily)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "2024-03-04", daily[0].Period)
	assert.Equal(t, "3500", daily[0].TotalRevenue.String())
	assert.Equal(t, int64(2), daily[0].SalesCount)
	assert.Equal(t, "2024-03-06", daily[1].Period)

	weekly, err := svc.SalesReport(ctx, day(1), day(31), Weekly)
	require.NoError(t, err)
	require.Len(t, weekly, 2)
	assert.Equal(t, "2024-03-04", weekly[0].Period)
	assert.Equal(t, "4200", weekly[0].TotalRevenue.String())
	assert.Equal(t, "2024-03-11", weekly[1].Period)

	monthly, err := svc.SalesReport(ctx, day(1), day(31), Monthly)
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, "2024-03-01", monthly[0].Period)
	assert.Equal(t, "4600", monthly[0].TotalRevenue.String())

	_, err = svc.SalesReport(ctx, day(10), day(1), Daily)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestRevenueByPeriodZeroFills(t *testing.T) {
	ctx := context.Background()
	s := newSeed(t)
	s.sale(t, day(2).Add(10*time.Hour), 3000, model.SaleCompleted)
	s.subscription(t, day(3).Add(8*time.Hour), model.SubscriptionActive)
	s.subscription(t, day(3).Add(9*time.Hour), model.SubscriptionExpired)
	s.subscription(t, day(4), model.SubscriptionCancelled)
	s.subscription(t, day(9), model.SubscriptionActive)

	got, err := NewService(s.db).RevenueByPeriod(ctx, day(1), day(5), Daily)
	require.NoError(t, err)
	require.Len(t, got, 5)

	want := []struct {
		period      string
		sales, subs string
	}{
		{"2024-03-01", "0", "0"},
		{"2024-03-02", "3000", "0"},
		{"2024-03-03", "0", "20000"},
		{"2024-03-04", "0", "0"},
		{"2024-03-05", "0", "0"},
	}
	for i, w := range want {
		assert.Equal(t, w.period, got[i].Period)
		assert.Equal(t, w.sales, got[i].Sales.String(), w.period)
		assert.Equal(t, w.subs, got[i].Subscriptions.String(), w.period)
		assert.True(t, got[i].Total.Equal(got[i].Sales.Add(got[i].Subscriptions)))
	}
}

func TestExpensesByCategorySorted(t *testing.T) {
	ctx := context.Background()
	s := newSeed(t)
	s.expense(t, day(2), "office", 100)
	s.expense(t, day(3), "marketing", 500)
	s.expense(t, day(4), "office", 300)
	s.expense(t, day(20), "travel", 9000)

	got, err := NewService(s.db).ExpensesByCategory(ctx, day(1), day(10))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "marketing", got[0].Category)
	assert.Equal(t, "500", got[0].Total.String())
	assert.Equal(t, "office", got[1].Category)
	assert.Equal(t, "400", got[1].Total.String())
}

func TestExpiringAccountsAndDashboard(t *testing.T) {
	ctx := context.Background()
	s := newSeed(t)
	now := day(10).Add(15 * time.Hour)
	svc := NewService(s.db).WithClock(func() time.Time { return now })

	in3 := day(13)
	in8 := day(18)
	past := day(9)
	for name, exp := range map[string]*time.Time{"soon": &in3, "later": &in8, "gone": &past} {
		a := model.Account{PlatformID: s.plan.PlatformID, Name: name, IsActive: true, MaxProfiles: 1, ExpirationDate: exp}
		require.NoError(t, s.db.Omit("Platform", "Profiles").Create(&a).Error)
	}
	// expiring today still counts
	require.NoError(t, s.db.Model(&model.Account{}).Where("id = ?", s.account.ID).Update("expiration_date", day(10)).Error)

	expiring, err := svc.ExpiringAccounts(ctx, ExpiringThresholdDays)
	require.NoError(t, err)
	require.Len(t, expiring, 2)
	assert.Equal(t, "NF-01", expiring[0].Name)
	assert.Equal(t, 0, expiring[0].DaysLeft)
	assert.Equal(t, "soon", expiring[1].Name)
	assert.Equal(t, 3, expiring[1].DaysLeft)

	s.sale(t, day(2), 5000, model.SaleCompleted)
	s.sale(t, day(2), 7000, model.SaleCancelled)
	s.subscription(t, day(3), model.SubscriptionActive)
	s.subscription(t, day(3), model.SubscriptionCancelled)
	s.expense(t, day(4), "office", 1500)

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.ActiveSubscriptions)
	assert.Equal(t, int64(1), d.TotalCustomers)
	assert.Equal(t, int64(5), d.AvailableProfiles)
	assert.Equal(t, 2, d.ExpiringAccounts)
	assert.Equal(t, "15000", d.TotalRevenue.String())
	assert.Equal(t, "1500", d.TotalExpenses.String())
}

func TestDashboardCountsItems(t *testing.T) {
	ctx := context.Background()
	s := newSeed(t)
	product := model.Product{Name: "Cable", Price: decimal.NewFromInt(10), Stock: 10}
	service := model.Service{Name: "Setup", Price: decimal.NewFromInt(10)}
	require.NoError(t, s.db.Create(&product).Error)
	require.NoError(t, s.db.Create(&service).Error)

	for _, status := range []model.SaleStatus{model.SaleCompleted, model.SaleCancelled} {
		sale := model.Sale{
			CustomerID: s.customer.ID, Date: day(1), Status: status, TotalAmount: decimal.NewFromInt(40),
			Channel: model.SaleChannelCounter, PaymentMethod: model.PaymentCash, InvoiceNumber: model.NewInvoiceNumber("T"),
		}
		require.NoError(t, s.db.Omit(clause.Associations).Create(&sale).Error)
		items := []model.SaleItem{
			{SaleID: sale.ID, ProductID: &product.ID, Quantity: 3, UnitPrice: product.Price, TotalPrice: decimal.NewFromInt(30)},
			{SaleID: sale.ID, ServiceID: &service.ID, Quantity: 1, UnitPrice: service.Price, TotalPrice: decimal.NewFromInt(10)},
		}
		require.NoError(t, s.db.Omit(clause.Associations).Create(&items).Error)
	}

	d, err := NewService(s.db).Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.ProductsSold)
	assert.Equal(t, int64(1), d.ServicesDelivered)
}

func TestExportXLSX(t *testing.T) {
	ctx := context.Background()
	s := newSeed(t)
	s.sale(t, day(2), 3000, model.SaleCompleted)
	s.subscription(t, day(2), model.SubscriptionActive)
	s.expense(t, day(3), "office", 1000)

	var buf bytes.Buffer
	require.NoError(t, NewService(s.db).ExportXLSX(ctx, &buf, day(1), day(3), Daily))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{sheetSummary, sheetRevenue, sheetExpenses}, f.GetSheetList())

	rows, err := f.GetRows(sheetRevenue)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Period", "Sales", "Subscriptions", "Total"}, rows[0])
	assert.Equal(t, []string{"2024-03-02", "3000", "10000", "13000"}, rows[2])

	summary, err := f.GetRows(sheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Net profit", "12000"}, summary[7])

	expenses, err := f.GetRows(sheetExpenses)
	require.NoError(t, err)
	assert.Equal(t, []string{"office", "1000"}, expenses[1])
}
