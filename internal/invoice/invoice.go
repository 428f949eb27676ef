// Package invoice lists and renders subscription and sale invoices.
package invoice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

type Kind string

const (
	KindSubscription Kind = "subscription"
	KindSale         Kind = "sale"
)

func (k Kind) Valid() bool {
	return k == KindSubscription || k == KindSale
}

type Settings interface {
	App(ctx context.Context) (model.AppSettings, error)
}

// Archiver stores rendered documents and returns their URL.
type Archiver interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

type Service struct {
	db       *gorm.DB
	settings Settings
	renderer *Renderer
	archive  Archiver
}

type Option func(*Service)

func WithRenderer(r *Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithArchive enables Archive. Without it Archive fails.
func WithArchive(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

func NewService(db *gorm.DB, settings Settings, opts ...Option) *Service {
	s := &Service{db: db, settings: settings, renderer: NewRenderer()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entry is one row of the invoice list.
type Entry struct {
	Kind          Kind            `json:"kind"`
	ID            uint            `json:"id"`
	Number        string          `json:"number"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
}

// List merges every subscription with the completed sales, newest first.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	db := s.db.WithContext(ctx)

	var subs []model.Subscription
	if err := db.Preload("Customer").Preload("Plan").Find(&subs).Error; err != nil {
		return nil, model.Wrap(err, "list subscriptions")
	}
	var sales []model.Sale
	if err := db.Preload("Customer").Where("status = ?", model.SaleCompleted).
		Find(&sales).Error; err != nil {
		return nil, model.Wrap(err, "list sales")
	}

	out := make([]Entry, 0, len(subs)+len(sales))
	for _, sub := range subs {
		e := Entry{Kind: KindSubscription, ID: sub.ID, Number: sub.InvoiceNumber, Date: sub.CreatedAt}
		if sub.Plan != nil {
			e.Amount = sub.Plan.Price
		}
		if sub.Customer != nil {
			e.CustomerName, e.CustomerEmail = sub.Customer.Name, sub.Customer.Email
		}
		out = append(out, e)
	}
	for _, sale := range sales {
		e := Entry{Kind: KindSale, ID: sale.ID, Number: sale.InvoiceNumber, Amount: sale.GrandTotal(), Date: sale.CreatedAt}
		if sale.Customer != nil {
			e.CustomerName, e.CustomerEmail = sale.Customer.Name, sale.Customer.Email
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// Render writes the PDF of the invoice and returns its number.
func (s *Service) Render(ctx context.Context, kind Kind, id uint, w io.Writer) (string, error) {
	app, err := s.settings.App(ctx)
	if err != nil {
		return "", err
	}
	issuer := IssuerFrom(app)
	db := s.db.WithContext(ctx)

	switch kind {
	case KindSubscription:
		var sub model.Subscription
		err := db.Preload("Customer").Preload("Plan.Platform").
			Preload("Profiles", func(db *gorm.DB) *gorm.DB { return db.Order("profiles.id") }).
			First(&sub, id).Error
		if err != nil {
			return "", model.Wrap(err, "load subscription")
		}
		return sub.InvoiceNumber, s.renderer.RenderSubscription(w, issuer, &sub)
	case KindSale:
		var sale model.Sale
		err := db.Preload("Customer").Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sale_items.id") }).
			Preload("Items.Product").Preload("Items.Service").
			First(&sale, id).Error
		if err != nil {
			return "", model.Wrap(err, "load sale")
		}
		return sale.InvoiceNumber, s.renderer.RenderSale(w, issuer, &sale)
	}
	return "", model.Invalid("unknown invoice kind %q", kind)
}

// Archive renders the invoice and uploads it under invoices/<kind>/.
func (s *Service) Archive(ctx context.Context, kind Kind, id uint) (string, error) {
	if s.archive == nil {
		return "", fmt.Errorf("invoice archive: %w", model.ErrUnavailable)
	}
	var buf bytes.Buffer
	number, err := s.Render(ctx, kind, id, &buf)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("invoices/%s/%s.pdf", kind, slug.Make(number))
	url, err := s.archive.Put(ctx, key, &buf, "application/pdf")
	if err != nil {
		return "", fmt.Errorf("archive invoice %s: %w", number, err)
	}
	return url, nil
}
