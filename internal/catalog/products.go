package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
)

// ImageStore persists product images and returns their public URL.
type ImageStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// ImageEncoder normalizes an uploaded image before storage.
type ImageEncoder func(r io.Reader) (io.Reader, string, error)

type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=160"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Category    string          `json:"category" validate:"max=64"`
}

type ProductFilter struct {
	Category string
	Search   string
	InStock  bool
}

func (r *Registry) ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	q := r.db.WithContext(ctx)
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if f.InStock {
		q = q.Where("stock > 0")
	}
	var products []model.Product
	err := q.Order("name").Find(&products).Error
	return products, model.Wrap(err, "list products")
}

func (r *Registry) GetProduct(ctx context.Context, id uint) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, model.Wrap(err, "load product")
	}
	return &p, nil
}

func (r *Registry) GetProductBySlug(ctx context.Context, s string) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).Where("slug = ?", s).First(&p).Error; err != nil {
		return nil, model.Wrap(err, "load product")
	}
	return &p, nil
}

// LowStock lists products at or below threshold, emptiest first.
func (r *Registry) LowStock(ctx context.Context, threshold int) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Where("stock <= ?", threshold).
		Order("stock").Order("name").Find(&products).Error
	return products, model.Wrap(err, "list low stock")
}

func (r *Registry) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	if err := checkPrice(in.Price); err != nil {
		return nil, err
	}
	if in.Stock < 0 {
		return nil, model.Invalid("stock cannot be negative")
	}
	p := model.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    strings.TrimSpace(in.Category),
	}
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, model.Wrap(err, "create product")
	}
	return &p, nil
}

// UpdateProduct keeps the slug stable so storefront links survive renames.
func (r *Registry) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*model.Product, error) {
	if err := checkPrice(in.Price); err != nil {
		return nil, err
	}
	if in.Stock < 0 {
		return nil, model.Invalid("stock cannot be negative")
	}
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":        strings.TrimSpace(in.Name),
		"description": in.Description,
		"price":       in.Price,
		"stock":       in.Stock,
		"category":    strings.TrimSpace(in.Category),
	})
	if res.Error != nil {
		return nil, model.Wrap(res.Error, "update product")
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	return r.GetProduct(ctx, id)
}

func (r *Registry) DeleteProduct(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnreferenced(tx, "product has sale items", &model.SaleItem{}, "product_id = ?", id); err != nil {
			return err
		}
		return deleteByID(tx, &model.Product{}, id)
	})
	return model.Wrap(err, "delete product")
}

// SetProductImage re-encodes the upload, stores it and points the product at
// the new URL. The previous image is removed best effort.
func (r *Registry) SetProductImage(ctx context.Context, id uint, store ImageStore, encode ImageEncoder, upload io.Reader) (*model.Product, error) {
	p, err := r.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	body, contentType, err := encode(upload)
	if err != nil {
		return nil, model.Invalid("%v", err)
	}
	key := fmt.Sprintf("products/%s/%s.webp", p.Slug, uuid.NewString())
	url, err := store.Put(ctx, key, body, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload product image: %w", err)
	}

	previous := p.ImageURL
	if err := r.db.WithContext(ctx).Model(p).Update("image_url", url).Error; err != nil {
		if derr := store.Delete(ctx, url); derr != nil {
			log.Warn().Err(derr).Str("url", url).Msg("orphaned product image")
		}
		return nil, model.Wrap(err, "update product image")
	}
	if previous != "" {
		if err := store.Delete(ctx, previous); err != nil {
			log.Warn().Err(err).Str("url", previous).Msg("could not delete previous product image")
		}
	}
	return r.GetProduct(ctx, id)
}

type ServiceInput struct {
	Name            string          `json:"name" validate:"required,max=160"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"duration_minutes" validate:"gte=0"`
	Category        string          `json:"category" validate:"max=64"`
}

func (r *Registry) ListServices(ctx context.Context, category string) ([]model.Service, error) {
	q := r.db.WithContext(ctx)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var services []model.Service
	err := q.Order("name").Find(&services).Error
	return services, model.Wrap(err, "list services")
}

func (r *Registry) GetService(ctx context.Context, id uint) (*model.Service, error) {
	var s model.Service
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, model.Wrap(err, "load service")
	}
	return &s, nil
}

func (r *Registry) CreateService(ctx context.Context, in ServiceInput) (*model.Service, error) {
	if err := checkPrice(in.Price); err != nil {
		return nil, err
	}
	s := model.Service{
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		Price:           in.Price,
		DurationMinutes: in.DurationMinutes,
		Category:        strings.TrimSpace(in.Category),
	}
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return nil, model.Wrap(err, "create service")
	}
	return &s, nil
}

func (r *Registry) UpdateService(ctx context.Context, id uint, in ServiceInput) (*model.Service, error) {
	if err := checkPrice(in.Price); err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).Model(&model.Service{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":             strings.TrimSpace(in.Name),
		"description":      in.Description,
		"price":            in.Price,
		"duration_minutes": in.DurationMinutes,
		"category":         strings.TrimSpace(in.Category),
	})
	if res.Error != nil {
		return nil, model.Wrap(res.Error, "update service")
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("service %d: %w", id, model.ErrNotFound)
	}
	return r.GetService(ctx, id)
}

func (r *Registry) DeleteService(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnreferenced(tx, "service has sale items", &model.SaleItem{}, "service_id = ?", id); err != nil {
			return err
		}
		return deleteByID(tx, &model.Service{}, id)
	})
	return model.Wrap(err, "delete service")
}

func checkPrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return model.Invalid("price cannot be negative")
	}
	return nil
}
