package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-booking/internal/common/database"
)

// StoreKind は予約データの取得先を表します
type StoreKind string

const (
	// StorePostgres はPostgreSQLへ直接接続します
	StorePostgres StoreKind = "postgres"
	// StoreREST はホスティングされたREST API(PostgREST互換)を利用します
	StoreREST StoreKind = "rest"
	// StoreMemory はプロセス内のストアを利用します。ローカル検証用です
	StoreMemory StoreKind = "memory"
)

const defaultPageSize = 10

var (
	ErrUnknownStore    = errors.New("unknown store kind")
	ErrMissingRESTConf = errors.New("SUPABASE_URL and SUPABASE_KEY are required for the rest store")
	ErrInvalidPageSize = errors.New("PAGE_SIZE must be greater than zero")
)

// RESTConfig はREST APIストアの接続設定です
type RESTConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type Config struct {
	DB       database.Config
	Store    StoreKind
	REST     RESTConfig
	PageSize int
	SFN      struct {
		TaskToken string
	}
	EnableTracing bool
	// PushgatewayURL が設定されている場合、バッチはメトリクスを送信します
	PushgatewayURL string
	LogLevel       string
	Env            string
}

// IsLocal はローカル環境で実行されているかを返します
func (c *Config) IsLocal() bool {
	return c.Env == "LOCAL"
}

// LoadConfig は設定を読み込みます
// カレントディレクトリに.envがあれば先に読み込みます。既に設定済みの環境変数は上書きしません
func LoadConfig(taskToken string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		DB: database.Config{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvAsIntOrDefault("DB_PORT", 5432),
			UserName: getEnvOrDefault("DB_USERNAME", "sbcntrapp"),
			Password: getEnvOrDefault("DB_PASSWORD", "password"),
			DBName:   getEnvOrDefault("DB_NAME", "sbcntrapp"),
			SSLMode:  os.Getenv("DB_SSL_MODE"),
		},
		Store: StoreKind(strings.ToLower(getEnvOrDefault("STORE", string(StorePostgres)))),
		REST: RESTConfig{
			URL:     strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			APIKey:  os.Getenv("SUPABASE_KEY"),
			Timeout: getEnvAsDurationOrDefault("HTTP_TIMEOUT", 10*time.Second),
		},
		PageSize:       getEnvAsIntOrDefault("PAGE_SIZE", defaultPageSize),
		EnableTracing:  false,
		PushgatewayURL: os.Getenv("PROMETHEUS_PUSHGATEWAY_URL"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		Env:            os.Getenv("ENV"),
	}
	cfg.SFN.TaskToken = taskToken

	// 環境変数[SBCNTR_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("SBCNTR_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は設定値の組み合わせを検証します
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres, StoreMemory:
	case StoreREST:
		if c.REST.URL == "" || c.REST.APIKey == "" {
			return ErrMissingRESTConf
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store)
	}

	if c.PageSize <= 0 {
		return ErrInvalidPageSize
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Debug().Str("key", key).Msg("environment variable is not set, using default value")
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("environment variable is not an integer, using default value")
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("environment variable is not a duration, using default value")
	}
	return defaultValue
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
