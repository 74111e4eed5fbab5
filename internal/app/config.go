package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Leonardofps/gomarketplace/internal/domain"
	"github.com/Leonardofps/gomarketplace/internal/money"
)

// EnvPrefix — общий префикс переменных окружения сервиса.
const EnvPrefix = "CART_"

// StorageDriver определяет backend key-value хранилища снимка.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverRedis    StorageDriver = "redis"
	StorageDriverPostgres StorageDriver = "postgres"
	StorageDriverSQLite   StorageDriver = "sqlite"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR"`
	GRPCAddr    string `env:"GRPC_ADDR"`
	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL"`

	StorageDriver       StorageDriver `env:"STORAGE_DRIVER"`
	StorageKey          string        `env:"STORAGE_KEY"`
	RedisAddr           string        `env:"REDIS_ADDR"`
	PostgresDSN         string        `env:"POSTGRES_DSN"`
	PostgresAutoMigrate bool          `env:"POSTGRES_AUTO_MIGRATE"`
	SQLitePath          string        `env:"SQLITE_PATH"`

	WriteMaxAttempts    int           `env:"WRITE_MAX_ATTEMPTS"`
	WriteRetryBaseDelay time.Duration `env:"WRITE_RETRY_BASE_DELAY"`
	WriteErrorBuffer    int           `env:"WRITE_ERROR_BUFFER"`
	LoadRetryInterval   time.Duration `env:"LOAD_RETRY_INTERVAL"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"`

	CurrencySymbol string `env:"CURRENCY_SYMBOL"`
	CurrencyLocale string `env:"CURRENCY_LOCALE"`

	OTELEndpoint string `env:"OTEL_ENDPOINT"`
	OTELDisabled bool   `env:"OTEL_DISABLED"`
}

// DefaultConfig возвращает настройки для локального запуска: in-memory хранилище, без Kafka и трассировки.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		LogLevel:            "info",
		StorageDriver:       StorageDriverMemory,
		StorageKey:          domain.CartStorageKey,
		PostgresAutoMigrate: true,
		SQLitePath:          "data/cart.db",
		WriteMaxAttempts:    3,
		WriteRetryBaseDelay: 50 * time.Millisecond,
		WriteErrorBuffer:    16,
		LoadRetryInterval:   2 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		CurrencySymbol:      money.DefaultSymbol,
		CurrencyLocale:      money.DefaultLocale,
	}
}

// LoadConfig накладывает переменные окружения CART_* на DefaultConfig и проверяет результат.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = normalizeBrokers(cfg.KafkaBrokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory, StorageDriverRedis, StorageDriverPostgres, StorageDriverSQLite:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if strings.TrimSpace(c.StorageKey) == "" {
		return fmt.Errorf("storage key must not be empty")
	}
	if c.HTTPAddr == "" || c.GRPCAddr == "" || c.MetricsAddr == "" {
		return fmt.Errorf("http, grpc and metrics addresses must be set")
	}
	if c.WriteMaxAttempts <= 0 {
		return fmt.Errorf("write max attempts must be positive, got %d", c.WriteMaxAttempts)
	}
	if c.WriteRetryBaseDelay < 0 {
		return fmt.Errorf("write retry base delay must be >= 0, got %s", c.WriteRetryBaseDelay)
	}
	return nil
}

func normalizeBrokers(brokers []string) []string {
	result := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
