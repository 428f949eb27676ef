package payment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"dinidesk_backend/pkg/config"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     int64
	}{
		{"15000", "MGA", 15000},
		{"15000.4", "mga", 15000},
		{"12.34", "EUR", 1234},
		{"0.005", "usd", 1},
	}
	for _, tt := range tests {
		t.Run(tt.amount+tt.currency, func(t *testing.T) {
			assert.Equal(t, tt.want, MinorUnits(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func TestCheckoutDisabledWithoutKey(t *testing.T) {
	s := NewStripe(config.StripeConfig{}, "https://shop.example")
	assert.False(t, s.Enabled())
	_, err := s.CreateCheckout(context.Background(), CheckoutRequest{Reference: "INV-1"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestParseWebhook(t *testing.T) {
	const secret = "whsec_test"
	s := NewStripe(config.StripeConfig{WebhookSecret: secret}, "")

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_1", "object": "checkout.session", "client_reference_id": "INV-ABCD1234", "payment_status": "paid"}}
	}`, stripe.APIVersion))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	ev, err := s.ParseWebhook(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "cs_test_1", ev.SessionID)
	assert.Equal(t, "INV-ABCD1234", ev.Reference)
	assert.True(t, ev.Paid)

	_, err = s.ParseWebhook(payload, "t=1,v1=bogus")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
