package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/notification"
	"dinidesk_backend/pkg/payment"
)

type CheckoutItem struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,min=1"`
}

type CheckoutInput struct {
	UserID        *uint               `json:"-"`
	Name          string              `json:"name" validate:"required,max=160"`
	Email         string              `json:"email" validate:"required,email"`
	Phone         string              `json:"phone" validate:"max=32"`
	Address       string              `json:"address" validate:"max=255"`
	City          string              `json:"city" validate:"max=64"`
	ShippingZone  string              `json:"shipping_zone"`
	PaymentMethod model.PaymentMethod `json:"payment_method" validate:"required"`
	Items         []CheckoutItem      `json:"items" validate:"required,min=1,dive"`
}

type CheckoutResult struct {
	Sale        *model.Sale `json:"sale"`
	CheckoutURL string      `json:"checkout_url,omitempty"`
}

// Checkout turns a storefront cart into a pending sale. Card payments get a
// hosted checkout session; the sale completes when the payment webhook
// arrives.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	app, err := s.settings.App(ctx)
	if err != nil {
		return nil, err
	}
	store, err := s.settings.Store(ctx)
	if err != nil {
		return nil, err
	}
	if in.UserID == nil && !store.AllowGuestCheckout {
		return nil, fmt.Errorf("guest checkout is disabled: %w", model.ErrAuthentication)
	}
	if !in.PaymentMethod.Valid() || !app.PaymentMethods.Enabled(in.PaymentMethod) {
		return nil, model.Invalid("payment method %q is not accepted", in.PaymentMethod)
	}
	if in.PaymentMethod == model.PaymentCard && s.gateway == nil {
		return nil, model.Invalid("card payments are not available")
	}
	email := model.NormalizeEmail(in.Email)
	if email == "" {
		return nil, model.Invalid("email is required")
	}

	fee := decimal.Zero
	if len(store.ShippingZones) > 0 {
		zone, ok := store.Zone(in.ShippingZone)
		if !ok {
			return nil, model.Invalid("unknown shipping zone %q", in.ShippingZone)
		}
		fee = zone.Fee
	}

	cart := RecordInput{
		Date:          s.now(),
		Status:        model.SalePending,
		Channel:       model.SaleChannelStorefront,
		PaymentMethod: in.PaymentMethod,
		ShippingFee:   fee,
		ShippingZone:  in.ShippingZone,
	}
	for _, it := range in.Items {
		id := it.ProductID
		cart.Items = append(cart.Items, ItemInput{ProductID: &id, Quantity: it.Quantity})
	}
	if err := cart.normalize(s.now()); err != nil {
		return nil, err
	}

	var sale *model.Sale
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := findOrCreateCustomer(tx, in, email)
		if err != nil {
			return err
		}
		cart.CustomerID = customer.ID
		sale, err = record(tx, cart, app.InvoicePrefix)
		return err
	})
	s.observe(model.SaleChannelStorefront, err)
	if err != nil {
		return nil, model.Wrap(err, "checkout")
	}

	result := &CheckoutResult{}
	if in.PaymentMethod == model.PaymentCard {
		sess, err := s.gateway.CreateCheckout(ctx, checkoutRequest(sale, email, app.Currency))
		if err != nil {
			if _, cerr := s.CancelSale(ctx, sale.ID); cerr != nil {
				log.Error().Err(cerr).Uint("sale_id", sale.ID).Msg("could not cancel sale after payment failure")
			}
			return nil, fmt.Errorf("start card payment: %w", err)
		}
		if err := s.db.WithContext(ctx).Model(&model.Sale{}).Where("id = ?", sale.ID).
			Update("payment_reference", sess.ID).Error; err != nil {
			if _, cerr := s.CancelSale(ctx, sale.ID); cerr != nil {
				log.Error().Err(cerr).Uint("sale_id", sale.ID).Msg("could not cancel sale without payment reference")
			}
			return nil, model.Wrap(err, "store payment reference")
		}
		result.CheckoutURL = sess.URL
	}

	s.notifyOrder(ctx, sale)
	if result.Sale, err = s.GetSale(ctx, sale.ID); err != nil {
		return nil, err
	}
	return result, nil
}

func findOrCreateCustomer(tx *gorm.DB, in CheckoutInput, email string) (*model.Customer, error) {
	var customer model.Customer
	err := tx.Where("email = ?", email).Order("id").First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	customer = model.Customer{
		UserID:         in.UserID,
		Name:           strings.TrimSpace(in.Name),
		Email:          email,
		Phone:          strings.TrimSpace(in.Phone),
		Address:        in.Address,
		City:           in.City,
		ContactChannel: model.ChannelStorefront,
	}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func checkoutRequest(sale *model.Sale, email, currency string) payment.CheckoutRequest {
	req := payment.CheckoutRequest{
		Reference:     sale.InvoiceNumber,
		CustomerEmail: email,
		Currency:      currency,
	}
	for _, it := range sale.Items {
		req.Lines = append(req.Lines, payment.LineItem{Name: it.Description, UnitAmount: it.UnitPrice, Quantity: it.Quantity})
	}
	if sale.ShippingFee.IsPositive() {
		name := "Shipping"
		if sale.ShippingZone != "" {
			name += " (" + sale.ShippingZone + ")"
		}
		req.Lines = append(req.Lines, payment.LineItem{Name: name, UnitAmount: sale.ShippingFee, Quantity: 1})
	}
	return req
}

func (s *Service) notifyOrder(ctx context.Context, sale *model.Sale) {
	if s.notifier == nil {
		return
	}
	n := notification.Notice{
		Kind:    model.NotifyOrder,
		Title:   "New storefront order " + sale.InvoiceNumber,
		Message: fmt.Sprintf("%s via %s", sale.GrandTotal().StringFixed(2), sale.PaymentMethod),
		Link:    fmt.Sprintf("/sales/%d", sale.ID),
	}
	if _, err := s.notifier.NotifyStaff(ctx, n, 0); err != nil {
		log.Warn().Err(err).Uint("sale_id", sale.ID).Msg("could not notify new order")
	}
}

// ConfirmPayment completes the pending sale paid through the given checkout
// session. Repeated deliveries of the same event are harmless.
func (s *Service) ConfirmPayment(ctx context.Context, sessionID string) (*model.Sale, error) {
	if sessionID == "" {
		return nil, model.Invalid("missing checkout session id")
	}
	var sale model.Sale
	if err := s.db.WithContext(ctx).Where("payment_reference = ?", sessionID).First(&sale).Error; err != nil {
		return nil, fmt.Errorf("checkout session %s: %w", sessionID, model.Wrap(err, "load sale"))
	}
	if sale.Status == model.SaleCompleted {
		return s.GetSale(ctx, sale.ID)
	}
	return s.CompleteSale(ctx, sale.ID)
}
