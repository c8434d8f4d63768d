package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nurpe/supply-settlement/internal/model"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type InvoiceConfig struct {
	DefaultLayout  model.Layout
	PasswordLength int
	FontPath       string
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Invoice     InvoiceConfig
	Issuer      model.Issuer
	RabbitMQ    RabbitMQConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Invoice: InvoiceConfig{
			PasswordLength: v.GetInt("INVOICE_PASSWORD_LENGTH"),
			FontPath:       v.GetString("INVOICE_FONT_PATH"),
		},
		Issuer: model.Issuer{
			Name:               v.GetString("ISSUER_NAME"),
			Address:            v.GetString("ISSUER_ADDRESS"),
			Phone:              v.GetString("ISSUER_PHONE"),
			RegistrationNumber: v.GetString("ISSUER_REGISTRATION_NUMBER"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("RABBITMQ_URL"),
			Exchange: v.GetString("RABBITMQ_EXCHANGE"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.Invoice.PasswordLength == 0 {
		cfg.Invoice.PasswordLength = 12
	}
	if cfg.RabbitMQ.Exchange == "" {
		cfg.RabbitMQ.Exchange = "invoice.events"
	}

	cfg.Invoice.DefaultLayout = model.LayoutStandard
	if raw := v.GetString("INVOICE_DEFAULT_LAYOUT"); raw != "" {
		layout, err := model.ParseLayout(raw)
		if err != nil {
			return nil, fmt.Errorf("INVOICE_DEFAULT_LAYOUT: %w", err)
		}
		cfg.Invoice.DefaultLayout = layout
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Invoice.PasswordLength < 8 {
		return fmt.Errorf("INVOICE_PASSWORD_LENGTH must be at least 8")
	}
	if cfg.Issuer.Name == "" {
		return fmt.Errorf("ISSUER_NAME is required")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
