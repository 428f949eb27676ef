// Package payment creates hosted card checkouts and verifies their webhooks.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"dinidesk_backend/pkg/config"
)

var (
	ErrDisabled         = errors.New("card payments are not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

const EventCheckoutCompleted = "checkout.session.completed"

type LineItem struct {
	Name       string
	UnitAmount decimal.Decimal
	Quantity   int
}

type CheckoutRequest struct {
	// Reference ties the session back to the sale, usually its invoice number.
	Reference     string
	CustomerEmail string
	Currency      string
	Lines         []LineItem
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Event is the part of a webhook event the back office acts on.
type Event struct {
	Type      string
	SessionID string
	Reference string
	Paid      bool
}

type Stripe struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewStripe builds a gateway; without a secret key every checkout fails with
// ErrDisabled.
func NewStripe(cfg config.StripeConfig, publicURL string) *Stripe {
	s := &Stripe{
		webhookSecret: cfg.WebhookSecret,
		successURL:    strings.TrimRight(publicURL, "/") + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:     strings.TrimRight(publicURL, "/") + "/checkout/cancelled",
	}
	if cfg.SecretKey != "" {
		s.api = client.New(cfg.SecretKey, nil)
	}
	return s
}

func (s *Stripe) Enabled() bool {
	return s.api != nil
}

func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if s.api == nil {
		return CheckoutSession{}, ErrDisabled
	}
	currency := strings.ToLower(req.Currency)

	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, l := range req.Lines {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
				UnitAmount: stripe.Int64(MinorUnits(l.UnitAmount, currency)),
			},
			Quantity: stripe.Int64(int64(l.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems:         items,
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("reference", req.Reference)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("could not create checkout session: %w", err)
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the
// checkout session of the event, if any.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Event{Type: string(event.Type)}
	if out.Type != EventCheckoutCompleted {
		return out, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return Event{}, fmt.Errorf("could not decode checkout session: %w", err)
	}
	out.SessionID = sess.ID
	out.Reference = sess.ClientReferenceID
	out.Paid = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	return out, nil
}

var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// MinorUnits converts an amount to the smallest unit Stripe expects for the
// currency.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimal[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
