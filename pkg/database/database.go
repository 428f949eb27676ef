package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/pkg/config"
)

const sqlitePrefix = "sqlite:"

// Open connects to the database named by cfg.URL. URLs starting with
// "sqlite:" open an embedded SQLite file (or ":memory:"), anything else is
// handed to the PostgreSQL driver.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Error),
		PrepareStmt: false,
		// surfaces FK and unique violations as gorm.ErrForeignKeyViolated / ErrDuplicatedKey
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(cfg.URL, sqlitePrefix) {
		dialector = sqlite.Open(strings.TrimPrefix(cfg.URL, sqlitePrefix))
	} else {
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true,
		})
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.SetupJoinTable(&model.Subscription{}, "Profiles", &model.SubscriptionProfile{}); err != nil {
		return nil, fmt.Errorf("setup subscription_profiles: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	if db.Dialector.Name() == "sqlite" {
		// one long-lived connection: serialises writers and keeps ":memory:" alive
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	log.Info().Str("dialect", db.Dialector.Name()).Msg("Database connected")
	return db, nil
}

// Migrate creates or updates the tables of every model.
func Migrate(db *gorm.DB, models ...interface{}) error {
	if len(models) == 0 {
		models = model.All()
	}
	for _, m := range models {
		if !db.Migrator().HasTable(m) {
			if err := db.Migrator().CreateTable(m); err != nil {
				return fmt.Errorf("create table for %T: %w", m, err)
			}
			log.Debug().Msgf("Created table for %T", m)
			continue
		}
		if err := db.Migrator().AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
		log.Debug().Msgf("Updated table for %T", m)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
