// Package seed loads demo data into an empty database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"dinidesk_backend/internal/catalog"
	"dinidesk_backend/internal/identity"
	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/sales"
	"dinidesk_backend/internal/settings"
	"dinidesk_backend/pkg/config"
)

// Admin creates the configured admin user unless that email already exists.
func Admin(ctx context.Context, users *identity.LocalProvider, cfg config.AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		log.Warn().Msg("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin user")
		return nil
	}
	_, err := users.CreateUser(ctx, identity.NewUser{
		Email:     cfg.Email,
		Password:  cfg.Password,
		Role:      model.RoleAdmin,
		FirstName: "Admin",
	})
	if errors.Is(err, model.ErrEmailTaken) {
		log.Info().Str("email", cfg.Email).Msg("admin user already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	log.Info().Str("email", cfg.Email).Msg("admin user created")
	return nil
}

// Demo fills an empty catalog with sample platforms, accounts, plans,
// products, services, customers, expenses and one sale. It does nothing
// when a platform already exists.
func Demo(ctx context.Context, db *gorm.DB, now time.Time) error {
	var n int64
	if err := db.WithContext(ctx).Model(&model.Platform{}).Count(&n).Error; err != nil {
		return fmt.Errorf("count platforms: %w", err)
	}
	if n > 0 {
		log.Info().Msg("catalog not empty, skipping demo data")
		return nil
	}

	st := settings.NewService(db)
	if err := st.EnsureDefaults(ctx); err != nil {
		return err
	}
	reg := catalog.NewRegistry(db)

	platforms := map[string]*model.Platform{}
	for _, in := range []catalog.PlatformInput{
		{Name: "Netflix", MaxProfiles: 5},
		{Name: "Prime Video", MaxProfiles: 4},
		{Name: "Disney+", MaxProfiles: 4},
	} {
		p, err := reg.CreatePlatform(ctx, in)
		if err != nil {
			return fmt.Errorf("seed platform %s: %w", in.Name, err)
		}
		platforms[p.Name] = p
	}

	expires := model.DateOnly(now).AddDate(0, 6, 0)
	for _, in := range []catalog.AccountInput{
		{PlatformID: platforms["Netflix"].ID, Name: "Netflix Account 1", AccountEmail: "netflix1@example.com", Password: "password123", ExpirationDate: &expires, IsActive: true},
		{PlatformID: platforms["Prime Video"].ID, Name: "Prime Account 1", AccountEmail: "prime1@example.com", Password: "password123", ExpirationDate: &expires, IsActive: true},
		{PlatformID: platforms["Disney+"].ID, Name: "Disney Account 1", AccountEmail: "disney1@example.com", Password: "password123", ExpirationDate: &expires, IsActive: true},
	} {
		if _, err := reg.CreateAccount(ctx, in); err != nil {
			return fmt.Errorf("seed account %s: %w", in.Name, err)
		}
	}

	for _, in := range []catalog.PlanInput{
		{PlatformID: platforms["Netflix"].ID, Name: "Netflix Basic", ProfilesCount: 1, Price: decimal.NewFromInt(15000), DurationMonths: 1},
		{PlatformID: platforms["Netflix"].ID, Name: "Netflix Standard", ProfilesCount: 2, Price: decimal.NewFromInt(25000), DurationMonths: 1},
		{PlatformID: platforms["Prime Video"].ID, Name: "Prime Basic", ProfilesCount: 1, Price: decimal.NewFromInt(12000), DurationMonths: 1},
		{PlatformID: platforms["Disney+"].ID, Name: "Disney Basic", ProfilesCount: 1, Price: decimal.NewFromInt(12000), DurationMonths: 1},
	} {
		if _, err := reg.CreatePlan(ctx, in); err != nil {
			return fmt.Errorf("seed plan %s: %w", in.Name, err)
		}
	}

	var products []*model.Product
	for _, in := range []catalog.ProductInput{
		{Name: "Clé USB 32GB", Description: "Clé USB haute vitesse 32GB", Price: decimal.NewFromInt(45000), Stock: 20, Category: "Stockage"},
		{Name: "Câble HDMI 2m", Description: "Câble HDMI haute qualité 2 mètres", Price: decimal.NewFromInt(25000), Stock: 15, Category: "Câbles"},
		{Name: "Souris sans fil", Description: "Souris optique sans fil", Price: decimal.NewFromInt(35000), Stock: 10, Category: "Périphériques"},
		{Name: "Chargeur universel", Description: "Chargeur compatible multi-appareils", Price: decimal.NewFromInt(30000), Stock: 25, Category: "Énergie"},
	} {
		p, err := reg.CreateProduct(ctx, in)
		if err != nil {
			return fmt.Errorf("seed product %s: %w", in.Name, err)
		}
		products = append(products, p)
	}

	var services []*model.Service
	for _, in := range []catalog.ServiceInput{
		{Name: "Configuration Netflix", Description: "Configuration complète de compte Netflix", Price: decimal.NewFromInt(10000), DurationMinutes: 30},
		{Name: "Installation Disney+", Description: "Installation et configuration Disney+", Price: decimal.NewFromInt(10000), DurationMinutes: 30},
		{Name: "Support technique", Description: "Assistance technique générale", Price: decimal.NewFromInt(20000), DurationMinutes: 60},
		{Name: "Formation streaming", Description: "Formation sur l'utilisation des services de streaming", Price: decimal.NewFromInt(25000), DurationMinutes: 45},
	} {
		s, err := reg.CreateService(ctx, in)
		if err != nil {
			return fmt.Errorf("seed service %s: %w", in.Name, err)
		}
		services = append(services, s)
	}

	var customers []*model.Customer
	for _, in := range []catalog.CustomerInput{
		{Name: "John Doe", Email: "john@example.com", Phone: "+261 34 12 345 67", ContactChannel: model.ChannelFacebookSB},
		{Name: "Jane Smith", Email: "jane@example.com", Phone: "+261 33 12 345 67", ContactChannel: model.ChannelWhatsAppYas},
	} {
		c, err := reg.CreateCustomer(ctx, in)
		if err != nil {
			return fmt.Errorf("seed customer %s: %w", in.Name, err)
		}
		customers = append(customers, c)
	}

	today := model.DateOnly(now)
	for _, in := range []catalog.ExpenseInput{
		{Description: "Achat fournitures bureau", Amount: decimal.NewFromInt(150000), Category: "Équipement", Date: today},
		{Description: "Facture Internet", Amount: decimal.NewFromInt(200000), Category: "Internet", Date: today},
		{Description: "Location bureau", Amount: decimal.NewFromInt(500000), Category: "Loyer", Date: today},
	} {
		if _, err := reg.CreateExpense(ctx, in); err != nil {
			return fmt.Errorf("seed expense %s: %w", in.Description, err)
		}
	}

	_, err := sales.NewService(db, st).RecordSale(ctx, sales.RecordInput{
		CustomerID: customers[0].ID,
		Date:       now,
		Items: []sales.ItemInput{
			{ProductID: &products[0].ID, Quantity: 1},
			{ServiceID: &services[0].ID, Quantity: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("seed sale: %w", err)
	}

	log.Info().Msg("demo data seeded")
	return nil
}
