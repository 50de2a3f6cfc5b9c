// Package config загружает конфигурацию сервиса из окружения.
//
// Сначала читается необязательный .env (godotenv), затем переменные
// окружения. Невалидное значение — ошибка запуска.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/shaiso/tableflow/internal/telemetry"
)

// Бэкенды хранилища источников.
const (
	StoreCSV      = "csv"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config — конфигурация tableflow-api.
type Config struct {
	APIPort string

	// Логирование
	LogLevel  string
	LogFormat string

	// Хранилище источников
	StoreBackend string
	DataDir      string
	DBURL        string
	DBMaxConns   int

	// RabbitMQ (пусто — события и consumer отключены)
	RabbitMQURL string

	// Сервис обогащения
	EnrichAPIURL       string
	EnrichAPIKey       string
	EnrichPollInterval time.Duration
	EnrichMaxWait      time.Duration

	// Dispatcher
	DispatchConcurrency  int
	DispatchMaxAttempts  int
	DispatchInitialDelay time.Duration
	DispatchMaxDelay     time.Duration
	RemoteCallTimeout    time.Duration

	// Реестр run
	RunTTL        time.Duration
	EvictSchedule string
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	return Config{
		APIPort:              "8080",
		LogLevel:             "INFO",
		LogFormat:            telemetry.FormatJSON,
		StoreBackend:         StoreCSV,
		DataDir:              "./data",
		DBMaxConns:           10,
		EnrichPollInterval:   5 * time.Second,
		EnrichMaxWait:        10 * time.Minute,
		DispatchConcurrency:  10,
		DispatchMaxAttempts:  3,
		DispatchInitialDelay: time.Second,
		DispatchMaxDelay:     30 * time.Second,
		RemoteCallTimeout:    15 * time.Minute,
		RunTTL:               time.Hour,
		EvictSchedule:        "@every 1m",
	}
}

// Load читает .env (если есть) и переменные окружения.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup собирает Config через функцию поиска переменных.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := &parser{lookup: lookup}

	p.str("API_PORT", &cfg.APIPort)
	p.str("LOG_LEVEL", &cfg.LogLevel)
	p.str("LOG_FORMAT", &cfg.LogFormat)
	p.str("STORE_BACKEND", &cfg.StoreBackend)
	p.str("DATA_DIR", &cfg.DataDir)
	p.str("DB_URL", &cfg.DBURL)
	p.positiveInt("DB_MAX_CONNS", &cfg.DBMaxConns)
	p.str("RABBITMQ_URL", &cfg.RabbitMQURL)

	p.str("ENRICH_API_URL", &cfg.EnrichAPIURL)
	p.str("ENRICH_API_KEY", &cfg.EnrichAPIKey)
	p.duration("ENRICH_POLL_INTERVAL", &cfg.EnrichPollInterval)
	p.duration("ENRICH_MAX_WAIT", &cfg.EnrichMaxWait)

	p.positiveInt("DISPATCH_CONCURRENCY", &cfg.DispatchConcurrency)
	p.positiveInt("DISPATCH_MAX_ATTEMPTS", &cfg.DispatchMaxAttempts)
	p.duration("DISPATCH_INITIAL_DELAY", &cfg.DispatchInitialDelay)
	p.duration("DISPATCH_MAX_DELAY", &cfg.DispatchMaxDelay)
	p.duration("REMOTE_CALL_TIMEOUT", &cfg.RemoteCallTimeout)

	p.duration("RUN_TTL", &cfg.RunTTL)
	p.str("EVICT_SCHEDULE", &cfg.EvictSchedule)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate проверяет согласованность значений.
func (c Config) Validate() error {
	if _, err := telemetry.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case telemetry.FormatJSON, telemetry.FormatText:
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text: got %q", c.LogFormat)
	}

	switch c.StoreBackend {
	case StoreCSV:
		if c.DataDir == "" {
			return errors.New("DATA_DIR is required for csv store")
		}
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of csv, postgres, memory: got %q", c.StoreBackend)
	}

	if c.DispatchInitialDelay > c.DispatchMaxDelay {
		return fmt.Errorf("DISPATCH_INITIAL_DELAY (%s) exceeds DISPATCH_MAX_DELAY (%s)",
			c.DispatchInitialDelay, c.DispatchMaxDelay)
	}
	if _, err := strconv.Atoi(c.APIPort); err != nil {
		return fmt.Errorf("API_PORT must be a number: got %q", c.APIPort)
	}
	return nil
}

// Log возвращает параметры логгера для сервиса.
func (c Config) Log(service string) telemetry.LogConfig {
	return telemetry.LogConfig{
		Level:   c.LogLevel,
		Format:  c.LogFormat,
		Service: service,
	}
}

// Addr возвращает адрес HTTP сервера.
func (c Config) Addr() string {
	return ":" + c.APIPort
}

// parser накапливает ошибки разбора, чтобы сообщить обо всех сразу.
type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	return v, ok && v != ""
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) positiveInt(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s must be a positive integer: got %q", key, v))
		return
	}
	*dst = n
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s must be a positive duration: got %q", key, v))
		return
	}
	*dst = d
}
