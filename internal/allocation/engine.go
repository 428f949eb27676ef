// Package allocation reserves account profiles for subscriptions and
// releases them again on cancellation or expiry.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/notification"
	"dinidesk_backend/pkg/metrics"
)

// PrefixSource yields the invoice number prefix for new subscriptions.
type PrefixSource interface {
	InvoicePrefix(ctx context.Context) string
}

// Notifier receives capacity conflicts so staff can react.
type Notifier interface {
	NotifyStaff(ctx context.Context, n notification.Notice, dedupe time.Duration) (int, error)
}

type Engine struct {
	db       *gorm.DB
	prefix   PrefixSource
	notifier Notifier
	now      func() time.Time
}

type Option func(*Engine)

func WithInvoicePrefix(p PrefixSource) Option { return func(e *Engine) { e.prefix = p } }

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(db *gorm.DB, opts ...Option) *Engine {
	e := &Engine{db: db, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EligibleAccount is an account that can host one more subscription of the
// requested plan.
type EligibleAccount struct {
	model.Account
	AvailableProfiles int `json:"available_profiles"`
}

// ListEligibleAccounts returns the accounts of the plan's platform that are
// active, unexpired on day on and have at least plan.profiles_count
// available profiles, ordered by id.
func (e *Engine) ListEligibleAccounts(ctx context.Context, planID uint, on time.Time) ([]EligibleAccount, error) {
	db := e.db.WithContext(ctx)

	var plan model.SubscriptionPlan
	if err := db.First(&plan, planID).Error; err != nil {
		return nil, model.Wrap(err, "load plan")
	}

	var accounts []model.Account
	err := db.Preload("Platform").
		Where("platform_id = ? AND is_active = ?", plan.PlatformID, true).
		Where("expiration_date IS NULL OR expiration_date >= ?", model.DateOnly(on)).
		Order("id").Find(&accounts).Error
	if err != nil {
		return nil, model.Wrap(err, "list accounts")
	}
	if len(accounts) == 0 {
		return []EligibleAccount{}, nil
	}

	ids := make([]uint, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	free, err := availableCounts(db, ids)
	if err != nil {
		return nil, model.Wrap(err, "count available profiles")
	}

	eligible := make([]EligibleAccount, 0, len(accounts))
	for _, a := range accounts {
		if n := free[a.ID]; n >= plan.ProfilesCount {
			eligible = append(eligible, EligibleAccount{Account: a, AvailableProfiles: n})
		}
	}
	return eligible, nil
}

func availableCounts(db *gorm.DB, accountIDs []uint) (map[uint]int, error) {
	var rows []struct {
		AccountID uint
		Available int
	}
	err := db.Model(&model.Profile{}).
		Select("account_id, COUNT(*) AS available").
		Where("account_id IN ? AND is_available = ?", accountIDs, true).
		Group("account_id").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int, len(rows))
	for _, r := range rows {
		out[r.AccountID] = r.Available
	}
	return out, nil
}

type CreateInput struct {
	CustomerID uint      `json:"customer_id" validate:"required"`
	AccountID  uint      `json:"account_id" validate:"required"`
	PlanID     uint      `json:"plan_id" validate:"required"`
	StartDate  time.Time `json:"start_date" validate:"required"`
}

// CreateSubscription reserves plan.profiles_count profiles of the chosen
// account, lowest ids first, and records the subscription. Either every
// profile flips to unavailable together with the insert or nothing changes.
// It never moves to another account.
func (e *Engine) CreateSubscription(ctx context.Context, in CreateInput) (*model.Subscription, error) {
	started := time.Now()
	prefix := "INV"
	if e.prefix != nil {
		prefix = e.prefix.InvoicePrefix(ctx)
	}

	var sub model.Subscription
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer model.Customer
		if err := tx.First(&customer, in.CustomerID).Error; err != nil {
			return fmt.Errorf("customer %d: %w", in.CustomerID, model.Wrap(err, "load customer"))
		}
		var plan model.SubscriptionPlan
		if err := tx.First(&plan, in.PlanID).Error; err != nil {
			return fmt.Errorf("plan %d: %w", in.PlanID, model.Wrap(err, "load plan"))
		}
		var account model.Account
		if err := tx.First(&account, in.AccountID).Error; err != nil {
			return fmt.Errorf("account %d: %w", in.AccountID, model.Wrap(err, "load account"))
		}
		if account.PlatformID != plan.PlatformID {
			return model.Invalid("account %s is not on the plan's platform", account.Name)
		}
		if !account.EligibleOn(in.StartDate) {
			return fmt.Errorf("account %s is inactive or expired: %w", account.Name, model.ErrInsufficientCapacity)
		}

		var picked []uint
		if err := tx.Model(&model.Profile{}).
			Where("account_id = ? AND is_available = ?", account.ID, true).
			Order("id").Limit(plan.ProfilesCount).Pluck("id", &picked).Error; err != nil {
			return err
		}
		if len(picked) < plan.ProfilesCount {
			return fmt.Errorf("account %s has %d of %d profiles free: %w",
				account.Name, len(picked), plan.ProfilesCount, model.ErrInsufficientCapacity)
		}

		res := tx.Model(&model.Profile{}).
			Where("id IN ? AND is_available = ?", picked, true).
			Update("is_available", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(picked)) {
			return fmt.Errorf("account %s lost profiles to a concurrent booking: %w", account.Name, model.ErrInsufficientCapacity)
		}

		sub = model.Subscription{
			CustomerID:    customer.ID,
			PlanID:        plan.ID,
			AccountID:     account.ID,
			StartDate:     model.DateOnly(in.StartDate),
			EndDate:       model.EndDateFor(in.StartDate),
			Status:        model.SubscriptionActive,
			InvoiceNumber: model.NewInvoiceNumber(prefix),
		}
		if err := tx.Omit(clause.Associations).Create(&sub).Error; err != nil {
			return err
		}

		links := make([]model.SubscriptionProfile, len(picked))
		for i, id := range picked {
			links[i] = model.SubscriptionProfile{SubscriptionID: sub.ID, ProfileID: id}
		}
		return tx.Create(&links).Error
	})

	metrics.AllocationDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInsufficientCapacity):
			metrics.AllocationsTotal.WithLabelValues("insufficient_capacity").Inc()
			e.reportConflict(ctx, in, err)
		default:
			metrics.AllocationsTotal.WithLabelValues("error").Inc()
		}
		return nil, model.Wrap(err, "create subscription")
	}
	metrics.AllocationsTotal.WithLabelValues("success").Inc()

	log.Info().
		Uint("subscription_id", sub.ID).
		Uint("account_id", sub.AccountID).
		Str("invoice", sub.InvoiceNumber).
		Msg("subscription allocated")
	return e.GetSubscription(ctx, sub.ID)
}

func (e *Engine) reportConflict(ctx context.Context, in CreateInput, cause error) {
	if e.notifier == nil {
		return
	}
	n := notification.Notice{
		Kind:    model.NotifyCapacityConflict,
		Title:   "Allocation refused",
		Message: cause.Error(),
		Link:    fmt.Sprintf("/accounts/%d", in.AccountID),
	}
	if _, err := e.notifier.NotifyStaff(ctx, n, time.Hour); err != nil {
		log.Warn().Err(err).Msg("could not notify capacity conflict")
	}
}

// CancelSubscription moves an active subscription to cancelled and frees its
// profiles in the same transaction.
func (e *Engine) CancelSubscription(ctx context.Context, id uint) (*model.Subscription, error) {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transition(tx, id, model.SubscriptionCancelled, e.now()); err != nil {
			return err
		}
		return release(tx, id)
	})
	if err != nil {
		return nil, model.Wrap(err, "cancel subscription")
	}
	metrics.SubscriptionTransitionsTotal.WithLabelValues(string(model.SubscriptionCancelled)).Inc()
	log.Info().Uint("subscription_id", id).Msg("subscription cancelled")
	return e.GetSubscription(ctx, id)
}

// DeleteSubscription frees the profiles of an active subscription and removes
// the subscription with its profile links.
func (e *Engine) DeleteSubscription(ctx context.Context, id uint) error {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub model.Subscription
		if err := tx.First(&sub, id).Error; err != nil {
			return err
		}
		if sub.Status == model.SubscriptionActive {
			if err := release(tx, id); err != nil {
				return err
			}
		}
		if err := tx.Where("subscription_id = ?", id).Delete(&model.SubscriptionProfile{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Subscription{}, id).Error
	})
	if err != nil {
		return model.Wrap(err, "delete subscription")
	}
	log.Info().Uint("subscription_id", id).Msg("subscription deleted")
	return nil
}

// ExpireDue expires every active subscription whose end date is not after
// now. Each subscription is handled in its own transaction; failures are
// collected and the rest carry on.
func (e *Engine) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	var ids []uint
	err := e.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("status = ? AND end_date <= ?", model.SubscriptionActive, now.UTC()).
		Order("id").Pluck("id", &ids).Error
	if err != nil {
		return 0, model.Wrap(err, "list due subscriptions")
	}

	expired := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := transition(tx, id, model.SubscriptionExpired, now); err != nil {
				return err
			}
			return release(tx, id)
		})
		if errors.Is(err, model.ErrInvalidTransition) {
			// cancelled between the listing and the update
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("subscription %d: %w", id, err))
			continue
		}
		expired++
		metrics.SubscriptionTransitionsTotal.WithLabelValues(string(model.SubscriptionExpired)).Inc()
	}
	if expired > 0 {
		log.Info().Int("count", expired).Msg("subscriptions expired")
	}
	return expired, model.Wrap(errors.Join(errs...), "expire subscriptions")
}

// transition moves an active subscription to next. Anything that is not
// active anymore yields ErrInvalidTransition.
func transition(tx *gorm.DB, id uint, next model.SubscriptionStatus, at time.Time) error {
	if !model.SubscriptionActive.CanTransitionTo(next) {
		return fmt.Errorf("active -> %s: %w", next, model.ErrInvalidTransition)
	}
	updates := map[string]interface{}{"status": next}
	if next == model.SubscriptionCancelled {
		updates["cancelled_at"] = at.UTC()
	}
	res := tx.Model(&model.Subscription{}).
		Where("id = ? AND status = ?", id, model.SubscriptionActive).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var current model.Subscription
	if err := tx.Select("id", "status").First(&current, id).Error; err != nil {
		return err
	}
	return fmt.Errorf("subscription %d is %s: %w", id, current.Status, model.ErrInvalidTransition)
}

// release flips every profile linked to the subscription back to available.
// A profile that is already available means the bookkeeping is broken, and
// the caller's transaction is rolled back.
func release(tx *gorm.DB, subscriptionID uint) error {
	var ids []uint
	if err := tx.Model(&model.SubscriptionProfile{}).
		Where("subscription_id = ?", subscriptionID).
		Pluck("profile_id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	res := tx.Model(&model.Profile{}).
		Where("id IN ? AND is_available = ?", ids, false).
		Update("is_available", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(ids)) {
		return fmt.Errorf("subscription %d: released %d of %d profiles", subscriptionID, res.RowsAffected, len(ids))
	}
	return nil
}
