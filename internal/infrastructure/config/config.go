package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	ServiceName string
	Env         string
	Version     string
	LogLevel    string
	LogFile     string

	HTTPAddr        string
	ShutdownTimeout time.Duration

	StoreDriver string // memory, sqlite or postgres
	DatabaseURL string

	DeliveryFee    decimal.Decimal
	PriceTolerance decimal.Decimal

	PaymentProvider    string // sandbox or paystack
	PaymentCurrency    string
	PaymentCallbackURL string
	PaystackSecretKey  string
	PaystackBaseURL    string
	SandboxSuccessRate float64

	RedisAddr     string
	OrderCacheTTL time.Duration
	RateLimit     int
	RateWindow    time.Duration

	KafkaBrokers     []string
	KafkaTopicPrefix string

	OTelEndpoint   string
	OTelURLPath    string
	OTelAuthHeader string
	OTelInsecure   bool
}

// Load reads the process configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		ServiceName:        getenvDefault("SERVICE_NAME", "kitchenledger"),
		Env:                getenvDefault("ENV", "dev"),
		Version:            getenvDefault("SERVICE_VERSION", "0.1.0"),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
		LogFile:            os.Getenv("LOG_FILE"),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		StoreDriver:        strings.ToLower(getenvDefault("STORE_DRIVER", "memory")),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		PaymentProvider:    strings.ToLower(getenvDefault("PAYMENT_PROVIDER", "sandbox")),
		PaymentCurrency:    getenvDefault("PAYMENT_CURRENCY", "NGN"),
		PaymentCallbackURL: os.Getenv("PAYMENT_CALLBACK_URL"),
		PaystackSecretKey:  os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:    getenvDefault("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicPrefix:   getenvDefault("KAFKA_TOPIC_PREFIX", "kitchenledger"),
		OTelEndpoint:       os.Getenv("OTEL_ENDPOINT"),
		OTelURLPath:        os.Getenv("OTEL_URL_PATH"),
		OTelAuthHeader:     os.Getenv("OTEL_AUTH_HEADER"),
	}

	var err error
	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.DeliveryFee, err = decimalEnv("DELIVERY_FEE", decimal.NewFromInt(1500)); err != nil {
		return Config{}, err
	}
	if cfg.PriceTolerance, err = decimalEnv("PRICE_TOLERANCE", decimal.RequireFromString("0.01")); err != nil {
		return Config{}, err
	}
	if cfg.SandboxSuccessRate, err = floatEnv("SANDBOX_SUCCESS_RATE", 0.7); err != nil {
		return Config{}, err
	}
	if cfg.OrderCacheTTL, err = durationEnv("ORDER_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit, err = intEnv("RATE_LIMIT", 0); err != nil {
		return Config{}, err
	}
	if cfg.RateWindow, err = durationEnv("RATE_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.OTelInsecure, err = boolEnv("OTEL_INSECURE", false); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case "memory":
	case "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required for the sqlite store")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required for the postgres store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER environment variable is invalid: %q", c.StoreDriver)
	}

	switch c.PaymentProvider {
	case "sandbox":
		if c.SandboxSuccessRate < 0 || c.SandboxSuccessRate > 1 {
			return fmt.Errorf("SANDBOX_SUCCESS_RATE environment variable is invalid: must be within [0, 1]")
		}
	case "paystack":
		if c.PaystackSecretKey == "" {
			return fmt.Errorf("PAYSTACK_SECRET_KEY environment variable is required for the paystack provider")
		}
	default:
		return fmt.Errorf("PAYMENT_PROVIDER environment variable is invalid: %q", c.PaymentProvider)
	}

	if c.DeliveryFee.IsNegative() {
		return fmt.Errorf("DELIVERY_FEE environment variable is invalid: must not be negative")
	}
	if c.PriceTolerance.IsNegative() {
		return fmt.Errorf("PRICE_TOLERANCE environment variable is invalid: must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT environment variable is invalid: must not be negative")
	}
	return nil
}

// OTelHeaders turns OTEL_AUTH_HEADER into exporter headers.
func (c Config) OTelHeaders() map[string]string {
	if c.OTelAuthHeader == "" {
		return nil
	}
	return map[string]string{"Authorization": c.OTelAuthHeader}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s environment variable is invalid: %q", key, raw)
	}
	return d, nil
}

func decimalEnv(key string, def decimal.Decimal) (decimal.Decimal, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s environment variable is invalid: %w", key, err)
	}
	return d, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s environment variable is invalid: %w", key, err)
	}
	return f, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s environment variable is invalid: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s environment variable is invalid: %w", key, err)
	}
	return b, nil
}
