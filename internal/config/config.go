package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Environment  string `mapstructure:"ENVIRONMENT"`
	ServerPort   string `mapstructure:"SERVER_PORT"`
	ClientOrigin string `mapstructure:"CLIENT_ORIGIN"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`

	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	MigrateOnStart bool   `mapstructure:"MIGRATE_ON_START"`

	JWTSecret   string        `mapstructure:"JWT_SECRET"`
	JWTTokenTTL time.Duration `mapstructure:"JWT_TOKEN_TTL"`

	// Timezone of the business hours used for pickup slots.
	Timezone string `mapstructure:"TIMEZONE"`

	SESEnabled     bool   `mapstructure:"SES_ENABLED"`
	AWSRegion      string `mapstructure:"AWS_REGION"`
	EmailFrom      string `mapstructure:"EMAIL_FROM"`
	EmailTemplates string `mapstructure:"EMAIL_TEMPLATES_DIR"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`

	GeocodingAPIKey  string  `mapstructure:"GEOCODING_API_KEY"`
	GeocodingBaseURL string  `mapstructure:"GEOCODING_BASE_URL"`
	GeocodingRPS     float64 `mapstructure:"GEOCODING_RPS"`
	GeocodingRegion  string  `mapstructure:"GEOCODING_REGION"`

	MercadoPagoAccessToken string `mapstructure:"MERCADOPAGO_ACCESS_TOKEN"`
	PaymentGatewayMock     bool   `mapstructure:"PAYMENT_GATEWAY_MOCK"`
	PaymentCurrency        string `mapstructure:"PAYMENT_CURRENCY"`
	PaymentNotificationURL string `mapstructure:"PAYMENT_NOTIFICATION_URL"`
	PaymentReturnURL       string `mapstructure:"PAYMENT_RETURN_URL"`
}

var defaults = map[string]any{
	"ENVIRONMENT":          "development",
	"SERVER_PORT":          "8080",
	"CLIENT_ORIGIN":        "http://localhost:5173",
	"LOG_LEVEL":            "info",
	"MIGRATE_ON_START":     true,
	"JWT_TOKEN_TTL":        24 * time.Hour,
	"TIMEZONE":             "Europe/Berlin",
	"SES_ENABLED":          false,
	"AWS_REGION":           "eu-central-1",
	"EMAIL_FROM":           "no-reply@example.com",
	"EMAIL_TEMPLATES_DIR":  "",
	"GEOCODING_BASE_URL":   "https://maps.googleapis.com/maps/api",
	"GEOCODING_RPS":        5.0,
	"GEOCODING_REGION":     "de",
	"PAYMENT_GATEWAY_MOCK": false,
	"PAYMENT_CURRENCY":     "EUR",
}

// LoadConfig reads configuration from app.env in path, then lets environment
// variables override it. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// Keys without a default must be bound explicitly for AutomaticEnv to see them.
	for _, key := range []string{
		"DATABASE_URL", "JWT_SECRET",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URL",
		"GEOCODING_API_KEY",
		"MERCADOPAGO_ACCESS_TOKEN", "PAYMENT_NOTIFICATION_URL", "PAYMENT_RETURN_URL",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config.LoadConfig: bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config.LoadConfig: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config.LoadConfig: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	if !c.PaymentGatewayMock && c.MercadoPagoAccessToken == "" {
		errs = append(errs, errors.New("MERCADOPAGO_ACCESS_TOKEN is required unless PAYMENT_GATEWAY_MOCK is set"))
	}
	if c.PaymentGatewayMock && c.IsProduction() {
		errs = append(errs, errors.New("PAYMENT_GATEWAY_MOCK must not be set in production"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Location returns the business time zone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
