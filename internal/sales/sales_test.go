package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/notification"
	"dinidesk_backend/internal/settings"
	"dinidesk_backend/internal/testutil"
	"dinidesk_backend/pkg/payment"
)

var saleDay = time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	settings *settings.Service
	customer model.Customer
	cable    model.Product
	mouse    model.Product
	repair   model.Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{db: db, settings: settings.NewService(db)}
	opts = append([]Option{WithClock(func() time.Time { return saleDay })}, opts...)
	f.svc = NewService(db, f.settings, opts...)

	f.customer = model.Customer{Name: "Hery"}
	require.NoError(t, db.Create(&f.customer).Error)
	f.cable = model.Product{Name: "HDMI cable", Price: decimal.NewFromInt(5000), Stock: 3}
	f.mouse = model.Product{Name: "Mouse", Price: decimal.RequireFromString("12500.50"), Stock: 10}
	require.NoError(t, db.Create(&f.cable).Error)
	require.NoError(t, db.Create(&f.mouse).Error)
	f.repair = model.Service{Name: "Screen repair", Price: decimal.NewFromInt(40000)}
	require.NoError(t, db.Create(&f.repair).Error)
	return f
}

func (f *fixture) stock(t *testing.T, id uint) int {
	t.Helper()
	var p model.Product
	require.NoError(t, f.db.First(&p, id).Error)
	return p.Stock
}

func (f *fixture) reloadCustomer(t *testing.T) model.Customer {
	t.Helper()
	var c model.Customer
	require.NoError(t, f.db.First(&c, f.customer.ID).Error)
	return c
}

func ptr(id uint) *uint { return &id }

func TestRecordSaleComputesTotalsAndStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sale, err := f.svc.RecordSale(ctx, RecordInput{
		CustomerID: f.customer.ID,
		Items: []ItemInput{
			{ProductID: ptr(f.cable.ID), Quantity: 2},
			{ProductID: ptr(f.mouse.ID), Quantity: 3},
			{ServiceID: ptr(f.repair.ID), Quantity: 1},
		},
		ShippingFee: decimal.NewFromInt(2000),
	})
	require.NoError(t, err)

	// 2*5000 + 3*12500.50 + 40000
	assert.Equal(t, "87501.5", sale.TotalAmount.String())
	assert.Equal(t, "89501.5", sale.GrandTotal().String())
	assert.Equal(t, model.SaleCompleted, sale.Status)
	assert.Equal(t, model.SaleChannelCounter, sale.Channel)
	assert.Equal(t, model.PaymentCash, sale.PaymentMethod)
	assert.Equal(t, saleDay, sale.Date.UTC())
	require.Len(t, sale.Items, 3)
	assert.Equal(t, "37501.5", sale.Items[1].TotalPrice.String())
	assert.Equal(t, "Screen repair", sale.Items[2].Description)

	assert.Equal(t, 1, f.stock(t, f.cable.ID))
	assert.Equal(t, 7, f.stock(t, f.mouse.ID))

	c := f.reloadCustomer(t)
	assert.Equal(t, 1, c.TotalOrders)
	assert.True(t, decimal.RequireFromString("89501.5").Equal(c.TotalSpent), c.TotalSpent.String())
	require.NotNil(t, c.LastOrderDate)
	assert.Equal(t, saleDay, c.LastOrderDate.UTC())
}

func TestRecordSaleRejectsOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RecordSale(ctx, RecordInput{
		CustomerID: f.customer.ID,
		Items: []ItemInput{
			{ProductID: ptr(f.mouse.ID), Quantity: 1},
			{ProductID: ptr(f.cable.ID), Quantity: 5},
		},
	})
	require.ErrorIs(t, err, model.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "HDMI cable")

	var sales, items int64
	f.db.Model(&model.Sale{}).Count(&sales)
	f.db.Model(&model.SaleItem{}).Count(&items)
	assert.Zero(t, sales)
	assert.Zero(t, items)
	assert.Equal(t, 3, f.stock(t, f.cable.ID))
	assert.Equal(t, 10, f.stock(t, f.mouse.ID))
	assert.Zero(t, f.reloadCustomer(t).TotalOrders)
}

func TestRecordSaleValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		in   RecordInput
		err  error
	}{
		{"no items", RecordInput{CustomerID: f.customer.ID}, model.ErrInvalidInput},
		{"both refs", RecordInput{CustomerID: f.customer.ID, Items: []ItemInput{{ProductID: ptr(f.cable.ID), ServiceID: ptr(f.repair.ID), Quantity: 1}}}, model.ErrInvalidInput},
		{"no ref", RecordInput{CustomerID: f.customer.ID, Items: []ItemInput{{Quantity: 1}}}, model.ErrInvalidInput},
		{"zero quantity", RecordInput{CustomerID: f.customer.ID, Items: []ItemInput{{ProductID: ptr(f.cable.ID)}}}, model.ErrInvalidInput},
		{"cancelled status", RecordInput{CustomerID: f.customer.ID, Status: model.SaleCancelled, Items: []ItemInput{{ProductID: ptr(f.cable.ID), Quantity: 1}}}, model.ErrInvalidInput},
		{"disabled method", RecordInput{CustomerID: f.customer.ID, PaymentMethod: model.PaymentCard, Items: []ItemInput{{ProductID: ptr(f.cable.ID), Quantity: 1}}}, model.ErrInvalidInput},
		{"unknown product", RecordInput{CustomerID: f.customer.ID, Items: []ItemInput{{ProductID: ptr(999), Quantity: 1}}}, model.ErrNotFound},
		{"unknown customer", RecordInput{CustomerID: 999, Items: []ItemInput{{ProductID: ptr(f.cable.ID), Quantity: 1}}}, model.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordSale(ctx, tt.in)
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.Equal(t, 3, f.stock(t, f.cable.ID))
}

func TestCancelSaleRestoresStockAndTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.RecordSale(ctx, RecordInput{
		CustomerID: f.customer.ID, Date: saleDay.AddDate(0, 0, -3),
		Items: []ItemInput{{ProductID: ptr(f.mouse.ID), Quantity: 1}},
	})
	require.NoError(t, err)
	second, err := f.svc.RecordSale(ctx, RecordInput{
		CustomerID: f.customer.ID,
		Items:      []ItemInput{{ProductID: ptr(f.cable.ID), Quantity: 2}},
	})
	require.NoError(t, err)

	cancelled, err := f.svc.CancelSale(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SaleCancelled, cancelled.Status)
	assert.Equal(t, 3, f.stock(t, f.cable.ID))

	c := f.reloadCustomer(t)
	assert.Equal(t, 1, c.TotalOrders)
	assert.True(t, first.GrandTotal().Equal(c.TotalSpent), c.TotalSpent.String())
	require.NotNil(t, c.LastOrderDate)
	assert.Equal(t, first.Date.UTC(), c.LastOrderDate.UTC())

	_, err = f.svc.CancelSale(ctx, second.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.Equal(t, 3, f.stock(t, f.cable.ID))
}

func TestPendingSaleCompletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sale, err := f.svc.RecordSale(ctx, RecordInput{
		CustomerID: f.customer.ID, Status: model.SalePending, PaymentMethod: model.PaymentMobileMoney,
		Items: []ItemInput{{ProductID: ptr(f.cable.ID), Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(t, f.cable.ID))
	assert.Zero(t, f.reloadCustomer(t).TotalOrders)

	done, err := f.svc.CompleteSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SaleCompleted, done.Status)
	assert.Equal(t, 1, f.reloadCustomer(t).TotalOrders)

	_, err = f.svc.CompleteSale(ctx, sale.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

type fakeGateway struct {
	requests []payment.CheckoutRequest
	fail     bool
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	g.requests = append(g.requests, req)
	if g.fail {
		return payment.CheckoutSession{}, errors.New("stripe down")
	}
	return payment.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

type countingNotifier struct{ kinds []model.NotificationKind }

func (n *countingNotifier) NotifyStaff(_ context.Context, notice notification.Notice, _ time.Duration) (int, error) {
	n.kinds = append(n.kinds, notice.Kind)
	return 1, nil
}

func openStore(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	app := settings.DefaultApp()
	app.PaymentMethods.Card = true
	_, err := f.settings.UpdateApp(ctx, app)
	require.NoError(t, err)
	store := settings.DefaultStore()
	store.StoreEnabled = true
	store.AllowGuestCheckout = true
	_, err = f.settings.UpdateStore(ctx, store)
	require.NoError(t, err)
}

func TestCheckoutWithCard(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	notifier := &countingNotifier{}
	f := newFixture(t, WithGateway(gw), WithNotifier(notifier))
	openStore(t, f)

	res, err := f.svc.Checkout(ctx, CheckoutInput{
		Name: "Voahangy", Email: "Voahangy@Mail.mg", ShippingZone: "Antananarivo",
		PaymentMethod: model.PaymentCard,
		Items:         []CheckoutItem{{ProductID: f.cable.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", res.CheckoutURL)
	assert.Equal(t, model.SalePending, res.Sale.Status)
	assert.Equal(t, model.SaleChannelStorefront, res.Sale.Channel)
	assert.Equal(t, "10000", res.Sale.TotalAmount.String())
	assert.Equal(t, "5000", res.Sale.ShippingFee.String())
	assert.Equal(t, "cs_test_1", res.Sale.PaymentReference)
	require.NotNil(t, res.Sale.Customer)
	assert.Equal(t, "voahangy@mail.mg", res.Sale.Customer.Email)
	assert.Equal(t, model.ChannelStorefront, res.Sale.Customer.ContactChannel)
	assert.Equal(t, 1, f.stock(t, f.cable.ID))
	assert.Equal(t, []model.NotificationKind{model.NotifyOrder}, notifier.kinds)

	require.Len(t, gw.requests, 1)
	req := gw.requests[0]
	assert.Equal(t, res.Sale.InvoiceNumber, req.Reference)
	assert.Equal(t, "MGA", req.Currency)
	require.Len(t, req.Lines, 2)
	assert.Equal(t, "Shipping (Antananarivo)", req.Lines[1].Name)

	confirmed, err := f.svc.ConfirmPayment(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, model.SaleCompleted, confirmed.Status)
	again, err := f.svc.ConfirmPayment(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, confirmed.ID, again.ID)

	var c model.Customer
	require.NoError(t, f.db.First(&c, confirmed.CustomerID).Error)
	assert.Equal(t, 1, c.TotalOrders)
	assert.True(t, decimal.NewFromInt(15000).Equal(c.TotalSpent), c.TotalSpent.String())

	_, err = f.svc.ConfirmPayment(ctx, "cs_unknown")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCheckoutGatewayFailureRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithGateway(&fakeGateway{fail: true}))
	openStore(t, f)

	_, err := f.svc.Checkout(ctx, CheckoutInput{
		Name: "V", Email: "v@mail.mg", ShippingZone: "Provinces", PaymentMethod: model.PaymentCard,
		Items: []CheckoutItem{{ProductID: f.mouse.ID, Quantity: 4}},
	})
	require.Error(t, err)
	assert.Equal(t, 10, f.stock(t, f.mouse.ID))

	var sale model.Sale
	require.NoError(t, f.db.First(&sale).Error)
	assert.Equal(t, model.SaleCancelled, sale.Status)
}

func TestCheckoutCancelsSaleWhenReferenceCannotBeStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithGateway(&fakeGateway{}))
	openStore(t, f)

	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("fail_payment_reference", func(tx *gorm.DB) {
		if cols, ok := tx.Statement.Dest.(map[string]interface{}); ok {
			if _, ok := cols["payment_reference"]; ok {
				_ = tx.AddError(errors.New("disk full"))
			}
		}
	}))

	_, err := f.svc.Checkout(ctx, CheckoutInput{
		Name: "V", Email: "v@mail.mg", ShippingZone: "Provinces", PaymentMethod: model.PaymentCard,
		Items: []CheckoutItem{{ProductID: f.mouse.ID, Quantity: 4}},
	})
	require.Error(t, err)
	assert.Equal(t, 10, f.stock(t, f.mouse.ID))

	var sale model.Sale
	require.NoError(t, f.db.First(&sale).Error)
	assert.Equal(t, model.SaleCancelled, sale.Status)
}

func TestCheckoutRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item := []CheckoutItem{{ProductID: f.cable.ID, Quantity: 1}}
	_, err := f.svc.Checkout(ctx, CheckoutInput{Name: "V", Email: "v@mail.mg", ShippingZone: "Antananarivo", PaymentMethod: model.PaymentCash, Items: item})
	assert.ErrorIs(t, err, model.ErrAuthentication, "guest checkout is off by default")

	openStore(t, f)
	_, err = f.svc.Checkout(ctx, CheckoutInput{Name: "V", Email: "v@mail.mg", ShippingZone: "Mars", PaymentMethod: model.PaymentCash, Items: item})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.svc.Checkout(ctx, CheckoutInput{Name: "V", Email: "v@mail.mg", ShippingZone: "Antananarivo", PaymentMethod: model.PaymentCard, Items: item})
	assert.ErrorIs(t, err, model.ErrInvalidInput, "no gateway configured")

	_, err = f.svc.Checkout(ctx, CheckoutInput{Name: "V", Email: "v@mail.mg", ShippingZone: "Antananarivo", PaymentMethod: model.PaymentCash,
		Items: []CheckoutItem{{ProductID: f.cable.ID, Quantity: 4}}})
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	userID := uint(7)
	res, err := f.svc.Checkout(ctx, CheckoutInput{UserID: &userID, Name: "Hery", Email: "hery@mail.mg", ShippingZone: "Antananarivo", PaymentMethod: model.PaymentCash, Items: item})
	require.NoError(t, err)
	assert.Empty(t, res.CheckoutURL)
	require.NotNil(t, res.Sale.Customer.UserID)
	assert.Equal(t, userID, *res.Sale.Customer.UserID)

	res2, err := f.svc.Checkout(ctx, CheckoutInput{Name: "Hery R.", Email: "HERY@mail.mg", ShippingZone: "Antananarivo", PaymentMethod: model.PaymentCash, Items: item})
	require.NoError(t, err)
	assert.Equal(t, res.Sale.CustomerID, res2.Sale.CustomerID)
}
