package controller

import (
	"context"

	"dinidesk_backend/internal/invoice"
	"dinidesk_backend/internal/model"
	"dinidesk_backend/pkg/email"
)

func emailWelcome(name string, role model.Role) email.WelcomeData {
	if name == "" {
		name = "client"
	}
	return email.WelcomeData{Name: name, Role: string(role)}
}

// mailSubscription tells the customer about a started or cancelled
// subscription. Customers without an email address are skipped.
func (h *Handler) mailSubscription(ctx context.Context, sub *model.Subscription, started bool) {
	if h.Mailer == nil || sub == nil || sub.Customer == nil || sub.Customer.Email == "" {
		return
	}
	symbol := ""
	if app, err := h.Settings.App(ctx); err == nil {
		symbol = app.CurrencySymbol
	}

	data := email.SubscriptionData{
		CustomerName:  sub.Customer.Name,
		StartDate:     sub.StartDate,
		EndDate:       sub.EndDate,
		InvoiceNumber: sub.InvoiceNumber,
	}
	if sub.Plan != nil {
		data.PlanName = sub.Plan.Name
		data.Price = invoice.Money(sub.Plan.Price, symbol)
		if sub.Plan.Platform != nil {
			data.Platform = sub.Plan.Platform.Name
		}
	}
	for _, p := range sub.Profiles {
		data.Profiles = append(data.Profiles, p.Name)
	}

	to := sub.Customer.Email
	if started {
		h.mail("subscription-started", func(ctx context.Context) error {
			return h.Mailer.SendSubscriptionStarted(ctx, to, data)
		})
		return
	}
	h.mail("subscription-cancelled", func(ctx context.Context) error {
		return h.Mailer.SendSubscriptionCancelled(ctx, to, data)
	})
}
