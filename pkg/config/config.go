package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Reebelo      ReebeloConfig
	GreenGadgets GreenGadgetsConfig
	Mirror       MirrorConfig
	Sync         SyncConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	Name     string `validate:"required"`
	SSLMode  string
}

type RedisConfig struct {
	Enabled       bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
}

type ReebeloConfig struct {
	BaseURL        string `validate:"required,url"`
	APIKey         string `validate:"required"`
	Currency       string
	RequestTimeout time.Duration
	PageInterval   time.Duration
	RateLimitDelay time.Duration
	MaxRetries     int
	Concurrency    int
}

type GreenGadgetsConfig struct {
	BaseURL        string `validate:"required,url"`
	UserAgent      string
	RequestTimeout time.Duration
	FetchDelay     time.Duration
}

type MirrorConfig struct {
	ShopURL     string
	AccessToken string
	APIVersion  string
	PageSize    int
}

type SyncConfig struct {
	BatchSize       int
	IntervalHours   int
	ExtraConditions []string
	ExtraColors     []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("invalid redis database number")
		}
		redisDB = n
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "PriceRadar"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "priceradar"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:       getEnv("REDIS_ENABLED", "false") == "true",
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
			CacheTTL:      getDuration("REDIS_CACHE_TTL", 10*time.Minute),
		},
		Reebelo: ReebeloConfig{
			BaseURL:        getEnv("REEBELO_BASE_URL", "https://a.reebelo.com/sockets/offers"),
			APIKey:         getEnv("REEBELO_API_KEY", ""),
			Currency:       getEnv("REEBELO_CURRENCY", "AUD"),
			RequestTimeout: getDuration("REEBELO_REQUEST_TIMEOUT", 15*time.Second),
			PageInterval:   getDuration("REEBELO_PAGE_INTERVAL", 100*time.Millisecond),
			RateLimitDelay: getDuration("REEBELO_RATE_LIMIT_DELAY", 5*time.Second),
			MaxRetries:     getInt("REEBELO_MAX_RETRIES", 3),
			Concurrency:    getInt("REEBELO_CONCURRENCY", 4),
		},
		GreenGadgets: GreenGadgetsConfig{
			BaseURL:        getEnv("GREENGADGETS_BASE_URL", "https://shop.greengadgets.net.au"),
			UserAgent:      getEnv("GREENGADGETS_USER_AGENT", "Mozilla/5.0 (compatible; PriceRadar/1.0)"),
			RequestTimeout: getDuration("GREENGADGETS_REQUEST_TIMEOUT", 15*time.Second),
			FetchDelay:     getDuration("GREENGADGETS_FETCH_DELAY", 500*time.Millisecond),
		},
		Mirror: MirrorConfig{
			ShopURL:     getEnv("MIRROR_SHOP_URL", ""),
			AccessToken: getEnv("MIRROR_ACCESS_TOKEN", ""),
			APIVersion:  getEnv("MIRROR_API_VERSION", "2026-01"),
			PageSize:    getInt("MIRROR_PAGE_SIZE", 250),
		},
		Sync: SyncConfig{
			BatchSize:       getInt("SYNC_BATCH_SIZE", 500),
			IntervalHours:   getInt("SYNC_INTERVAL_HOURS", 4),
			ExtraConditions: getList("SYNC_EXTRA_CONDITIONS"),
			ExtraColors:     getList("SYNC_EXTRA_COLORS"),
		},
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	if cfg.Reebelo.APIKey == "" {
		return nil, errors.New("missing reebelo api key")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}

	return defaultVal
}

func getList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}

	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
