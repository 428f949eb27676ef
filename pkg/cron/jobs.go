package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dinidesk_backend/internal/invoice"
	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/notification"
	"dinidesk_backend/internal/reporting"
	"dinidesk_backend/pkg/email"
)

const (
	warningDedupe = 20 * time.Hour
	digestGap     = 6 * 24 * time.Hour
)

type Subscriptions interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	ExpiringWithin(ctx context.Context, now time.Time, days int) ([]model.Subscription, error)
}

type Reports interface {
	ExpiringAccounts(ctx context.Context, days int) ([]reporting.ExpiringAccount, error)
	Build(ctx context.Context, start, end time.Time, g reporting.Granularity) (*reporting.Report, error)
}

type Notifier interface {
	NotifyStaff(ctx context.Context, n notification.Notice, dedupe time.Duration) (int, error)
}

type Mailer interface {
	SendSubscriptionExpiryWarning(ctx context.Context, to string, data email.SubscriptionData) error
	SendAccountExpiry(ctx context.Context, to string, data email.AccountExpiryData) error
	SendRevenueDigest(ctx context.Context, to string, data email.RevenueDigestData) error
}

type Users interface {
	UsersWithRoles(ctx context.Context, roles ...model.Role) ([]model.User, error)
	PurgeRevoked(ctx context.Context, now time.Time) (int64, error)
}

type Settings interface {
	App(ctx context.Context) (model.AppSettings, error)
}

// Jobs holds the periodic maintenance tasks. Mailer may be nil.
type Jobs struct {
	Subscriptions Subscriptions
	Reports       Reports
	Notifier      Notifier
	Mailer        Mailer
	Users         Users
	Settings      Settings
	WarningDays   []int
	Now           func() time.Time

	mu         sync.Mutex
	lastDigest time.Time
}

func (j *Jobs) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// Definitions lists the jobs with their schedules (UTC).
func (j *Jobs) Definitions() []Job {
	return []Job{
		{Name: "expire-subscriptions", Spec: "@every 1h", Run: j.ExpireSubscriptions},
		{Name: "subscription-warnings", Spec: "0 9 * * *", Run: j.WarnExpiringSubscriptions},
		{Name: "account-warnings", Spec: "0 8 * * *", Run: j.WarnExpiringAccounts},
		{Name: "revenue-digest", Spec: "0 20 * * 0", Run: j.SendRevenueDigest},
		{Name: "purge-revoked-tokens", Spec: "30 3 * * *", Run: j.PurgeRevokedTokens},
	}
}

// Register adds every job to s.
func (j *Jobs) Register(s *Scheduler) error {
	for _, job := range j.Definitions() {
		if err := s.Add(job); err != nil {
			return err
		}
	}
	return nil
}

// ExpireSubscriptions moves past-due subscriptions to expired and frees
// their profiles.
func (j *Jobs) ExpireSubscriptions(ctx context.Context) error {
	n, err := j.Subscriptions.ExpireDue(ctx, j.now())
	if n > 0 {
		log.Info().Int("count", n).Msg("subscriptions expired")
		_, nerr := j.Notifier.NotifyStaff(ctx, notification.Notice{
			Kind:    model.NotifySubscriptionExpired,
			Title:   "Abonnements expirés",
			Message: fmt.Sprintf("%d abonnement(s) ont expiré, leurs profils sont à nouveau disponibles.", n),
			Link:    "/subscriptions?status=expired",
		}, 0)
		err = errors.Join(err, nerr)
	}
	return err
}

// WarnExpiringSubscriptions warns staff and customers about subscriptions
// ending in exactly one of WarningDays days.
func (j *Jobs) WarnExpiringSubscriptions(ctx context.Context) error {
	if len(j.WarningDays) == 0 {
		return nil
	}
	now := j.now()
	horizon := 0
	warn := make(map[int]bool, len(j.WarningDays))
	for _, d := range j.WarningDays {
		warn[d] = true
		horizon = max(horizon, d)
	}

	subs, err := j.Subscriptions.ExpiringWithin(ctx, now, horizon)
	if err != nil {
		return err
	}
	symbol := j.currencySymbol(ctx)

	var errs []error
	for i := range subs {
		sub := &subs[i]
		days := sub.DaysLeft(now)
		if !warn[days] {
			continue
		}
		data := subscriptionData(sub, symbol, days)
		_, err := j.Notifier.NotifyStaff(ctx, notification.Notice{
			Kind:    model.NotifySubscriptionExpiring,
			Title:   "Abonnement bientôt expiré",
			Message: fmt.Sprintf("%s (%s %s) expire dans %d jour(s).", data.CustomerName, data.Platform, data.PlanName, days),
			Link:    fmt.Sprintf("/subscriptions/%d", sub.ID),
		}, warningDedupe)
		errs = append(errs, err)

		if j.Mailer != nil && sub.Customer != nil && sub.Customer.Email != "" {
			if err := j.Mailer.SendSubscriptionExpiryWarning(ctx, sub.Customer.Email, data); err != nil {
				log.Warn().Err(err).Uint("subscription", sub.ID).Msg("expiry warning email failed")
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func subscriptionData(sub *model.Subscription, symbol string, days int) email.SubscriptionData {
	data := email.SubscriptionData{
		StartDate:     sub.StartDate,
		EndDate:       sub.EndDate,
		InvoiceNumber: sub.InvoiceNumber,
		DaysLeft:      days,
	}
	if sub.Customer != nil {
		data.CustomerName = sub.Customer.Name
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
	return data
}

// WarnExpiringAccounts notifies staff of platform accounts expiring within
// the dashboard threshold and mails the list to admins.
func (j *Jobs) WarnExpiringAccounts(ctx context.Context) error {
	accounts, err := j.Reports.ExpiringAccounts(ctx, reporting.ExpiringThresholdDays)
	if err != nil || len(accounts) == 0 {
		return err
	}

	var errs []error
	lines := make([]email.AccountLine, 0, len(accounts))
	for _, a := range accounts {
		platform := ""
		if a.Platform != nil {
			platform = a.Platform.Name
		}
		lines = append(lines, email.AccountLine{
			Name: a.Name, Platform: platform, ExpirationDate: *a.ExpirationDate, DaysLeft: a.DaysLeft,
		})
		_, err := j.Notifier.NotifyStaff(ctx, notification.Notice{
			Kind:    model.NotifyAccountExpiring,
			Title:   "Compte bientôt expiré",
			Message: fmt.Sprintf("Le compte %s %s expire dans %d jour(s).", platform, a.Name, a.DaysLeft),
			Link:    fmt.Sprintf("/accounts/%d", a.ID),
		}, warningDedupe)
		errs = append(errs, err)
	}

	errs = append(errs, j.mailAdmins(ctx, func(to string) error {
		return j.Mailer.SendAccountExpiry(ctx, to, email.AccountExpiryData{Accounts: lines})
	}))
	return errors.Join(errs...)
}

// SendRevenueDigest mails admins the figures of the last seven days. A run
// within six days of the previous one is skipped.
func (j *Jobs) SendRevenueDigest(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	if !j.lastDigest.IsZero() && now.Sub(j.lastDigest) < digestGap {
		log.Info().Time("last", j.lastDigest).Msg("revenue digest already sent, skipping")
		return nil
	}

	end := model.DateOnly(now).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -6)
	report, err := j.Reports.Build(ctx, start, end, reporting.Daily)
	if err != nil {
		return err
	}
	symbol := j.currencySymbol(ctx)
	data := email.RevenueDigestData{
		Start:         start,
		End:           end,
		Sales:         invoice.Money(report.Summary.Sales, symbol),
		Subscriptions: invoice.Money(report.Summary.Subscriptions, symbol),
		Expenses:      invoice.Money(report.Summary.Expenses, symbol),
		NetProfit:     invoice.Money(report.Summary.NetProfit, symbol),
		NewCustomers:  report.Customers.New,
	}
	if err := j.mailAdmins(ctx, func(to string) error { return j.Mailer.SendRevenueDigest(ctx, to, data) }); err != nil {
		return err
	}
	j.lastDigest = now
	return nil
}

func (j *Jobs) PurgeRevokedTokens(ctx context.Context) error {
	n, err := j.Users.PurgeRevoked(ctx, j.now())
	if err == nil && n > 0 {
		log.Info().Int64("count", n).Msg("revoked tokens purged")
	}
	return err
}

func (j *Jobs) mailAdmins(ctx context.Context, send func(to string) error) error {
	if j.Mailer == nil {
		return nil
	}
	admins, err := j.Users.UsersWithRoles(ctx, model.RoleAdmin)
	if err != nil {
		return err
	}
	var errs []error
	for _, u := range admins {
		if err := send(u.Email); err != nil {
			log.Warn().Err(err).Str("to", u.Email).Msg("admin email failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (j *Jobs) currencySymbol(ctx context.Context) string {
	if j.Settings == nil {
		return ""
	}
	app, err := j.Settings.App(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not load app settings")
		return ""
	}
	return app.CurrencySymbol
}
