// Package sales records counter and storefront sales against product stock.
package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/notification"
	"dinidesk_backend/pkg/metrics"
	"dinidesk_backend/pkg/payment"
)

// Settings is the slice of the settings service sales depend on.
type Settings interface {
	App(ctx context.Context) (model.AppSettings, error)
	Store(ctx context.Context) (model.StoreSettings, error)
}

type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error)
}

type Notifier interface {
	NotifyStaff(ctx context.Context, n notification.Notice, dedupe time.Duration) (int, error)
}

type Service struct {
	db       *gorm.DB
	settings Settings
	gateway  PaymentGateway
	notifier Notifier
	now      func() time.Time
}

type Option func(*Service)

func WithGateway(g PaymentGateway) Option { return func(s *Service) { s.gateway = g } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(db *gorm.DB, settings Settings, opts ...Option) *Service {
	s := &Service{db: db, settings: settings, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ItemInput names exactly one catalog entry. Prices always come from the
// catalog.
type ItemInput struct {
	ProductID *uint `json:"product_id"`
	ServiceID *uint `json:"service_id"`
	Quantity  int   `json:"quantity" validate:"required,min=1"`
}

type RecordInput struct {
	CustomerID    uint                `json:"customer_id" validate:"required"`
	Date          time.Time           `json:"date"`
	Items         []ItemInput         `json:"items" validate:"required,min=1,dive"`
	Status        model.SaleStatus    `json:"status"`
	Channel       model.SaleChannel   `json:"channel"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	ShippingFee   decimal.Decimal     `json:"shipping_fee"`
	ShippingZone  string              `json:"shipping_zone"`
}

func (in *RecordInput) normalize(now time.Time) error {
	if len(in.Items) == 0 {
		return model.Invalid("a sale needs at least one item")
	}
	for i, it := range in.Items {
		if (it.ProductID == nil) == (it.ServiceID == nil) {
			return model.Invalid("item %d must reference exactly one product or service", i+1)
		}
		if it.Quantity < 1 {
			return model.Invalid("item %d: quantity must be at least 1", i+1)
		}
	}
	switch in.Status {
	case "":
		in.Status = model.SaleCompleted
	case model.SaleCompleted, model.SalePending:
	default:
		return model.Invalid("a sale is recorded as completed or pending, not %q", in.Status)
	}
	switch in.Channel {
	case "":
		in.Channel = model.SaleChannelCounter
	case model.SaleChannelCounter, model.SaleChannelStorefront:
	default:
		return model.Invalid("unknown channel %q", in.Channel)
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = model.PaymentCash
	}
	if !in.PaymentMethod.Valid() {
		return model.Invalid("unknown payment method %q", in.PaymentMethod)
	}
	if in.ShippingFee.IsNegative() {
		return model.Invalid("shipping fee cannot be negative")
	}
	if in.Date.IsZero() {
		in.Date = now
	}
	in.Date = in.Date.UTC()
	return nil
}

// RecordSale prices every line from the catalog, decrements product stock
// and stores the sale. A line asking for more than the stock left fails the
// whole sale with ErrInsufficientStock and changes nothing.
func (s *Service) RecordSale(ctx context.Context, in RecordInput) (*model.Sale, error) {
	if err := in.normalize(s.now()); err != nil {
		return nil, err
	}
	app, err := s.settings.App(ctx)
	if err != nil {
		return nil, err
	}
	if !app.PaymentMethods.Enabled(in.PaymentMethod) {
		return nil, model.Invalid("payment method %s is disabled", in.PaymentMethod)
	}

	var sale *model.Sale
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		sale, txErr = record(tx, in, app.InvoicePrefix)
		return txErr
	})
	s.observe(in.Channel, err)
	if err != nil {
		return nil, model.Wrap(err, "record sale")
	}
	log.Info().Uint("sale_id", sale.ID).Str("invoice", sale.InvoiceNumber).
		Str("total", sale.TotalAmount.String()).Msg("sale recorded")
	return s.GetSale(ctx, sale.ID)
}

func (s *Service) observe(channel model.SaleChannel, err error) {
	status := "success"
	switch {
	case errors.Is(err, model.ErrInsufficientStock):
		status = "insufficient_stock"
		metrics.StockConflictsTotal.Inc()
	case err != nil:
		status = "error"
	}
	metrics.SalesTotal.WithLabelValues(string(channel), status).Inc()
}

// record runs inside the caller's transaction.
func record(tx *gorm.DB, in RecordInput, prefix string) (*model.Sale, error) {
	var customer model.Customer
	if err := tx.First(&customer, in.CustomerID).Error; err != nil {
		return nil, fmt.Errorf("customer %d: %w", in.CustomerID, model.Wrap(err, "load customer"))
	}

	items := make([]model.SaleItem, 0, len(in.Items))
	total := decimal.Zero
	for _, it := range in.Items {
		line, err := priceLine(tx, it)
		if err != nil {
			return nil, err
		}
		total = total.Add(line.TotalPrice)
		items = append(items, line)
	}

	sale := model.Sale{
		CustomerID:    customer.ID,
		Date:          in.Date,
		Status:        in.Status,
		TotalAmount:   total,
		ShippingFee:   in.ShippingFee,
		ShippingZone:  in.ShippingZone,
		Channel:       in.Channel,
		PaymentMethod: in.PaymentMethod,
		InvoiceNumber: model.NewInvoiceNumber(prefix),
	}
	if err := tx.Omit(clause.Associations).Create(&sale).Error; err != nil {
		return nil, err
	}
	for i := range items {
		items[i].SaleID = sale.ID
	}
	if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
		return nil, err
	}
	sale.Items = items

	if sale.Status == model.SaleCompleted {
		if err := applyToCustomer(tx, &sale); err != nil {
			return nil, err
		}
	}
	return &sale, nil
}

// priceLine loads the catalog entry of it and, for products, takes the
// quantity out of stock.
func priceLine(tx *gorm.DB, it ItemInput) (model.SaleItem, error) {
	line := model.SaleItem{Quantity: it.Quantity}
	q := decimal.NewFromInt(int64(it.Quantity))

	if it.ServiceID != nil {
		var svc model.Service
		if err := tx.First(&svc, *it.ServiceID).Error; err != nil {
			return line, fmt.Errorf("service %d: %w", *it.ServiceID, model.Wrap(err, "load service"))
		}
		line.ServiceID = &svc.ID
		line.Description = svc.Name
		line.UnitPrice = svc.Price
		line.TotalPrice = svc.Price.Mul(q)
		return line, nil
	}

	var product model.Product
	if err := tx.First(&product, *it.ProductID).Error; err != nil {
		return line, fmt.Errorf("product %d: %w", *it.ProductID, model.Wrap(err, "load product"))
	}
	res := tx.Model(&model.Product{}).
		Where("id = ? AND stock >= ?", product.ID, it.Quantity).
		Update("stock", gorm.Expr("stock - ?", it.Quantity))
	if res.Error != nil {
		return line, res.Error
	}
	if res.RowsAffected == 0 {
		var left int
		if err := tx.Model(&model.Product{}).Select("stock").Where("id = ?", product.ID).Scan(&left).Error; err != nil {
			return line, err
		}
		return line, fmt.Errorf("%s: requested %d, %d left: %w", product.Name, it.Quantity, left, model.ErrInsufficientStock)
	}
	line.ProductID = &product.ID
	line.Description = product.Name
	line.UnitPrice = product.Price
	line.TotalPrice = product.Price.Mul(q)
	return line, nil
}

func applyToCustomer(tx *gorm.DB, sale *model.Sale) error {
	return tx.Model(&model.Customer{}).Where("id = ?", sale.CustomerID).Updates(map[string]interface{}{
		"total_orders": gorm.Expr("total_orders + 1"),
		"total_spent":  gorm.Expr("total_spent + ?", sale.GrandTotal()),
		"last_order_date": gorm.Expr(
			"CASE WHEN last_order_date IS NULL OR last_order_date < ? THEN ? ELSE last_order_date END",
			sale.Date, sale.Date),
	}).Error
}

// revertFromCustomer undoes applyToCustomer and recomputes the last order
// date from the remaining completed sales.
func revertFromCustomer(tx *gorm.DB, sale *model.Sale) error {
	err := tx.Model(&model.Customer{}).Where("id = ?", sale.CustomerID).Updates(map[string]interface{}{
		"total_orders": gorm.Expr("CASE WHEN total_orders > 0 THEN total_orders - 1 ELSE 0 END"),
		"total_spent":  gorm.Expr("total_spent - ?", sale.GrandTotal()),
	}).Error
	if err != nil {
		return err
	}
	var latest []model.Sale
	if err := tx.Select("id", "date").
		Where("customer_id = ? AND status = ? AND id <> ?", sale.CustomerID, model.SaleCompleted, sale.ID).
		Order("date DESC").Limit(1).Find(&latest).Error; err != nil {
		return err
	}
	var last *time.Time
	if len(latest) == 1 {
		last = &latest[0].Date
	}
	return tx.Model(&model.Customer{}).Where("id = ?", sale.CustomerID).Update("last_order_date", last).Error
}

// CompleteSale moves a pending sale to completed and credits the customer.
func (s *Service) CompleteSale(ctx context.Context, id uint) (*model.Sale, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := transition(tx, id, model.SaleCompleted, model.SalePending)
		if err != nil {
			return err
		}
		return applyToCustomer(tx, sale)
	})
	if err != nil {
		return nil, model.Wrap(err, "complete sale")
	}
	log.Info().Uint("sale_id", id).Msg("sale completed")
	return s.GetSale(ctx, id)
}

// CancelSale cancels a completed or pending sale, puts product quantities
// back in stock and reverses the customer totals of a completed sale.
func (s *Service) CancelSale(ctx context.Context, id uint) (*model.Sale, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := transition(tx, id, model.SaleCancelled, model.SaleCompleted, model.SalePending)
		if err != nil {
			return err
		}
		if err := restock(tx, id); err != nil {
			return err
		}
		if sale.Status == model.SaleCompleted {
			return revertFromCustomer(tx, sale)
		}
		return nil
	})
	if err != nil {
		return nil, model.Wrap(err, "cancel sale")
	}
	log.Info().Uint("sale_id", id).Msg("sale cancelled")
	return s.GetSale(ctx, id)
}

// transition flips the status when it is one of from and returns the sale
// as it was before the update.
func transition(tx *gorm.DB, id uint, to model.SaleStatus, from ...model.SaleStatus) (*model.Sale, error) {
	var sale model.Sale
	if err := tx.First(&sale, id).Error; err != nil {
		return nil, err
	}
	res := tx.Model(&model.Sale{}).Where("id = ? AND status IN ?", id, from).Update("status", to)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("sale %d is %s: %w", id, sale.Status, model.ErrInvalidTransition)
	}
	return &sale, nil
}

func restock(tx *gorm.DB, saleID uint) error {
	var items []model.SaleItem
	if err := tx.Where("sale_id = ? AND product_id IS NOT NULL", saleID).Find(&items).Error; err != nil {
		return err
	}
	for _, it := range items {
		if err := tx.Model(&model.Product{}).Where("id = ?", *it.ProductID).
			Update("stock", gorm.Expr("stock + ?", it.Quantity)).Error; err != nil {
			return err
		}
	}
	return nil
}

type Filter struct {
	Status     model.SaleStatus
	Channel    model.SaleChannel
	CustomerID uint
	From       *time.Time
	To         *time.Time
	Limit      int
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Customer").Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("sale_items.id")
	})
}

func (s *Service) ListSales(ctx context.Context, f Filter) ([]model.Sale, error) {
	q := withDetails(s.db.WithContext(ctx))
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Channel != "" {
		q = q.Where("channel = ?", f.Channel)
	}
	if f.CustomerID != 0 {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.From != nil {
		q = q.Where("date >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("date < ?", f.To.UTC())
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var sales []model.Sale
	err := q.Order("date DESC").Order("id DESC").Find(&sales).Error
	return sales, model.Wrap(err, "list sales")
}

func (s *Service) GetSale(ctx context.Context, id uint) (*model.Sale, error) {
	var sale model.Sale
	if err := withDetails(s.db.WithContext(ctx)).First(&sale, id).Error; err != nil {
		return nil, model.Wrap(err, "load sale")
	}
	return &sale, nil
}
