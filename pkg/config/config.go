package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "dinidesk-dev-secret"

type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Storage  StorageConfig
	Stripe   StripeConfig
	Email    EmailConfig
	Log      LogConfig
	Jobs     JobsConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins string
	PublicURL   string
}

type DatabaseConfig struct {
	URL          string
	MaxIdleConns int
	MaxOpenConns int
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// StorageConfig targets AWS S3, or Cloudflare R2 when AccountID is set.
type StorageConfig struct {
	AccountID     string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
}

func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type EmailConfig struct {
	ResendAPIKey string
	From         string
}

type LogConfig struct {
	Level  string
	Format string
}

type JobsConfig struct {
	Enabled           bool
	ExpiryWarningDays []int
}

type AdminConfig struct {
	Email    string
	Password string
}

// env names kept compatible with existing .env files
var envBindings = map[string][]string{
	"env":                   {"APP_ENV"},
	"server.port":           {"PORT"},
	"server.cors_origins":   {"CORS_ORIGINS"},
	"server.public_url":     {"PUBLIC_URL"},
	"database.url":          {"DATABASE_URL"},
	"database.max_idle":     {"DB_MAX_IDLE_CONNS"},
	"database.max_open":     {"DB_MAX_OPEN_CONNS"},
	"jwt.secret":            {"JWT_SECRET"},
	"jwt.ttl":               {"JWT_TTL"},
	"storage.account_id":    {"R2_ACCOUNT_ID"},
	"storage.access_key":    {"R2_ACCESS_KEY", "AWS_ACCESS_KEY_ID"},
	"storage.secret_key":    {"R2_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"},
	"storage.bucket":        {"R2_BUCKET_NAME", "S3_BUCKET"},
	"storage.region":        {"S3_REGION"},
	"storage.public_url":    {"CDN_BASE_URL"},
	"stripe.secret_key":     {"STRIPE_SECRET_KEY"},
	"stripe.webhook_secret": {"STRIPE_WEBHOOK_SECRET"},
	"email.resend_api_key":  {"RESEND_API_KEY"},
	"email.from":            {"EMAIL_FROM"},
	"log.level":             {"LOG_LEVEL"},
	"log.format":            {"LOG_FORMAT"},
	"jobs.enabled":          {"JOBS_ENABLED"},
	"admin.email":           {"ADMIN_EMAIL"},
	"admin.password":        {"ADMIN_PASSWORD"},
}

// Load reads .env, an optional config file and the environment, in that
// order of increasing precedence. configFile may be empty.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	_ = godotenv.Load()

	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return &Config{
		Env: v.GetString("env"),
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			CORSOrigins: v.GetString("server.cors_origins"),
			PublicURL:   strings.TrimRight(v.GetString("server.public_url"), "/"),
		},
		Database: DatabaseConfig{
			URL:          v.GetString("database.url"),
			MaxIdleConns: v.GetInt("database.max_idle"),
			MaxOpenConns: v.GetInt("database.max_open"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			TTL:    v.GetDuration("jwt.ttl"),
		},
		Storage: StorageConfig{
			AccountID:     v.GetString("storage.account_id"),
			AccessKey:     v.GetString("storage.access_key"),
			SecretKey:     v.GetString("storage.secret_key"),
			Bucket:        v.GetString("storage.bucket"),
			Region:        v.GetString("storage.region"),
			PublicBaseURL: strings.TrimRight(v.GetString("storage.public_url"), "/"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("stripe.secret_key"),
			WebhookSecret: v.GetString("stripe.webhook_secret"),
		},
		Email: EmailConfig{
			ResendAPIKey: v.GetString("email.resend_api_key"),
			From:         v.GetString("email.from"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Jobs: JobsConfig{
			Enabled:           v.GetBool("jobs.enabled"),
			ExpiryWarningDays: v.GetIntSlice("jobs.expiry_warning_days"),
		},
		Admin: AdminConfig{
			Email:    v.GetString("admin.email"),
			Password: v.GetString("admin.password"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("server.public_url", "http://localhost:3000")
	v.SetDefault("database.url", "sqlite:dinidesk.db")
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_open", 100)
	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("storage.region", "auto")
	v.SetDefault("email.from", "DiniDesk <noreply@dinidesk.mg>")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.expiry_warning_days", []int{7, 3})
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects settings that are only acceptable in development.
func (c *Config) Validate() error {
	if c.JWT.TTL <= 0 {
		return errors.New("jwt ttl must be positive")
	}
	if !c.IsProduction() {
		return nil
	}
	if c.Database.URL == "" || strings.HasPrefix(c.Database.URL, "sqlite:") {
		return errors.New("DATABASE_URL must point to PostgreSQL in production")
	}
	if c.JWT.Secret == "" || c.JWT.Secret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}
