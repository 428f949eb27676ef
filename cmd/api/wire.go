package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"dinidesk_backend/internal/allocation"
	"dinidesk_backend/internal/catalog"
	"dinidesk_backend/internal/controller"
	"dinidesk_backend/internal/identity"
	"dinidesk_backend/internal/invoice"
	"dinidesk_backend/internal/notification"
	"dinidesk_backend/internal/reporting"
	"dinidesk_backend/internal/sales"
	"dinidesk_backend/internal/settings"
	"dinidesk_backend/internal/task"
	"dinidesk_backend/pkg/config"
	"dinidesk_backend/pkg/cron"
	"dinidesk_backend/pkg/database"
	"dinidesk_backend/pkg/email"
	"dinidesk_backend/pkg/payment"
	jwtutil "dinidesk_backend/pkg/utils/jwt"
	"dinidesk_backend/pkg/utils/storage"
)

// app is the fully wired service graph shared by the commands.
type app struct {
	cfg  *config.Config
	db   *gorm.DB
	deps controller.Deps
	jobs *cron.Jobs
}

func wire(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	st := settings.NewService(db)
	notes := notification.NewService(db)
	provider := identity.NewLocalProvider(db, jwtutil.NewManager(cfg.JWT.Secret, cfg.JWT.TTL))
	reports := reporting.NewService(db)
	engine := allocation.NewEngine(db,
		allocation.WithInvoicePrefix(st),
		allocation.WithNotifier(notes),
	)

	salesOpts := []sales.Option{sales.WithNotifier(notes)}
	stripe := payment.NewStripe(cfg.Stripe, cfg.Server.PublicURL)
	if stripe.Enabled() {
		salesOpts = append(salesOpts, sales.WithGateway(stripe))
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, card payments disabled")
	}

	invoiceOpts := []invoice.Option{}
	deps := controller.Deps{
		Identity:      provider,
		Catalog:       catalog.NewRegistry(db),
		Allocation:    engine,
		Reports:       reports,
		Settings:      st,
		Notifications: notes,
		Tasks:         task.NewService(db),
		Payments:      stripe,
		SecureCookies: cfg.IsProduction(),
	}
	if cfg.Storage.Enabled() {
		store, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("object storage: %w", err)
		}
		deps.Images = store
		invoiceOpts = append(invoiceOpts, invoice.WithArchive(store))
	} else {
		log.Warn().Msg("Object storage not configured, uploads and invoice archiving disabled")
	}
	deps.Sales = sales.NewService(db, st, salesOpts...)
	deps.Invoices = invoice.NewService(db, st, invoiceOpts...)

	var sender email.Sender = email.LogSender{}
	if cfg.Email.ResendAPIKey != "" {
		resend, err := email.NewResendSender(cfg.Email.ResendAPIKey)
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		sender = resend
	} else {
		log.Warn().Msg("RESEND_API_KEY not set, emails are only logged")
	}
	mailer, err := email.NewService(sender, cfg.Email.From)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	deps.Mailer = mailer

	jobs := &cron.Jobs{
		Subscriptions: engine,
		Reports:       reports,
		Notifier:      notes,
		Mailer:        mailer,
		Users:         provider,
		Settings:      st,
		WarningDays:   cfg.Jobs.ExpiryWarningDays,
	}

	return &app{cfg: cfg, db: db, deps: deps, jobs: jobs}, nil
}

func (a *app) Close() {
	if err := database.Close(a.db); err != nil {
		log.Error().Err(err).Msg("Could not close database")
	}
}

// scheduler registers every job on a fresh scheduler without starting it.
func (a *app) scheduler() (*cron.Scheduler, error) {
	s := cron.NewScheduler()
	if err := a.jobs.Register(s); err != nil {
		return nil, err
	}
	return s, nil
}
