// Package settings stores the versioned app and store configuration rows.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/pkg/utils/validation"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func DefaultApp() model.AppSettings {
	return model.AppSettings{
		SchemaVersion:  model.SettingsSchemaVersion,
		SiteName:       "DiniDesk",
		Currency:       "MGA",
		CurrencySymbol: "Ar",
		InvoicePrefix:  "INV",
		PaymentMethods: model.PaymentMethods{Cash: true, MobileMoney: true},
	}
}

func DefaultStore() model.StoreSettings {
	return model.StoreSettings{
		SchemaVersion:     model.SettingsSchemaVersion,
		StoreName:         "DiniDesk Store",
		ShowOutOfStock:    true,
		LowStockThreshold: 5,
		ShippingZones: []model.ShippingZone{
			{Name: "Antananarivo", Fee: decimal.NewFromInt(5000), EstimatedDays: 1},
			{Name: "Provinces", Fee: decimal.NewFromInt(15000), EstimatedDays: 4},
		},
	}
}

// App returns the stored app settings, or the defaults when none were saved.
func (s *Service) App(ctx context.Context) (model.AppSettings, error) {
	var row model.AppSetting
	err := s.db.WithContext(ctx).Order("id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultApp(), nil
	}
	if err != nil {
		return model.AppSettings{}, model.Wrap(err, "load app settings")
	}
	return row.Data.Data(), nil
}

func (s *Service) Store(ctx context.Context) (model.StoreSettings, error) {
	var row model.StoreSetting
	err := s.db.WithContext(ctx).Order("id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultStore(), nil
	}
	if err != nil {
		return model.StoreSettings{}, model.Wrap(err, "load store settings")
	}
	return row.Data.Data(), nil
}

// Get returns the settings of kind as an AppSettings or StoreSettings value.
func (s *Service) Get(ctx context.Context, kind model.SettingsKind) (interface{}, error) {
	switch kind {
	case model.SettingsApp:
		return s.App(ctx)
	case model.SettingsStore:
		return s.Store(ctx)
	}
	return nil, model.Invalid("unknown settings kind %q", kind)
}

// Update decodes payload strictly into the struct of kind, validates it and
// replaces the stored row.
func (s *Service) Update(ctx context.Context, kind model.SettingsKind, payload []byte) (interface{}, error) {
	switch kind {
	case model.SettingsApp:
		var in model.AppSettings
		if err := decode(payload, &in); err != nil {
			return nil, err
		}
		return s.UpdateApp(ctx, in)
	case model.SettingsStore:
		var in model.StoreSettings
		if err := decode(payload, &in); err != nil {
			return nil, err
		}
		return s.UpdateStore(ctx, in)
	}
	return nil, model.Invalid("unknown settings kind %q", kind)
}

func decode(payload []byte, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return model.Invalid("%s", validation.FormatError(err))
	}
	return nil
}

func checkVersion(v int) error {
	if v != model.SettingsSchemaVersion {
		return model.Invalid("unsupported schema_version %d, expected %d", v, model.SettingsSchemaVersion)
	}
	return nil
}

func (s *Service) UpdateApp(ctx context.Context, in model.AppSettings) (model.AppSettings, error) {
	if err := checkVersion(in.SchemaVersion); err != nil {
		return model.AppSettings{}, err
	}
	if err := validation.Struct(in); err != nil {
		return model.AppSettings{}, model.Invalid("%v", err)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.AppSetting
		if err := tx.Order("id").Limit(1).Find(&row).Error; err != nil {
			return err
		}
		row.Data = datatypes.NewJSONType(in)
		return tx.Save(&row).Error
	})
	if err != nil {
		return model.AppSettings{}, model.Wrap(err, "save app settings")
	}
	return s.App(ctx)
}

func (s *Service) UpdateStore(ctx context.Context, in model.StoreSettings) (model.StoreSettings, error) {
	if err := checkVersion(in.SchemaVersion); err != nil {
		return model.StoreSettings{}, err
	}
	if err := validation.Struct(in); err != nil {
		return model.StoreSettings{}, model.Invalid("%v", err)
	}
	seen := make(map[string]bool, len(in.ShippingZones))
	for _, z := range in.ShippingZones {
		if z.Fee.IsNegative() {
			return model.StoreSettings{}, model.Invalid("shipping zone %q has a negative fee", z.Name)
		}
		if seen[z.Name] {
			return model.StoreSettings{}, model.Invalid("shipping zone %q is listed twice", z.Name)
		}
		seen[z.Name] = true
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.StoreSetting
		if err := tx.Order("id").Limit(1).Find(&row).Error; err != nil {
			return err
		}
		row.Data = datatypes.NewJSONType(in)
		return tx.Save(&row).Error
	})
	if err != nil {
		return model.StoreSettings{}, model.Wrap(err, "save store settings")
	}
	return s.Store(ctx)
}

// StoreOpen reports whether the storefront accepts visitors.
func (s *Service) StoreOpen(ctx context.Context) (bool, error) {
	app, err := s.App(ctx)
	if err != nil {
		return false, err
	}
	if app.MaintenanceMode {
		return false, nil
	}
	store, err := s.Store(ctx)
	if err != nil {
		return false, err
	}
	return store.StoreEnabled, nil
}

// InvoicePrefix falls back to the default prefix when settings cannot be read.
func (s *Service) InvoicePrefix(ctx context.Context) string {
	app, err := s.App(ctx)
	if err != nil || app.InvoicePrefix == "" {
		return DefaultApp().InvoicePrefix
	}
	return app.InvoicePrefix
}

// EnsureDefaults writes the default rows when none exist yet.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.AppSetting{}).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			if err := tx.Create(&model.AppSetting{Data: datatypes.NewJSONType(DefaultApp())}).Error; err != nil {
				return fmt.Errorf("seed app settings: %w", err)
			}
		}
		if err := tx.Model(&model.StoreSetting{}).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			if err := tx.Create(&model.StoreSetting{Data: datatypes.NewJSONType(DefaultStore())}).Error; err != nil {
				return fmt.Errorf("seed store settings: %w", err)
			}
		}
		return nil
	})
}
