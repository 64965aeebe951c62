package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ストアのバックエンド種別
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"campus.db"`

	// Session
	SessionMaxAge int `env:"SESSION_MAX_AGE" envDefault:"2592000"`

	// Password reset
	ResetTokenSecret string        `env:"RESET_TOKEN_SECRET"`
	ResetTokenTTL    time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`

	// Gate
	SignInGrace       time.Duration `env:"GATE_SIGNIN_GRACE" envDefault:"1500ms"`
	SignupSettleDelay time.Duration `env:"SIGNUP_SETTLE_DELAY" envDefault:"100ms"`
	DeviceIdleTTL     time.Duration `env:"DEVICE_IDLE_TTL" envDefault:"30m"`
	DeviceInitTimeout time.Duration `env:"DEVICE_INIT_TIMEOUT" envDefault:"3s"`

	// Login
	LoginEmailDomains []string `env:"LOGIN_EMAIL_DOMAINS" envSeparator:"," envDefault:"gmail.com,hotmail.com"`

	// Events
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// News
	NewsFeedURL      string        `env:"NEWS_FEED_URL"`
	NewsFetchTimeout time.Duration `env:"NEWS_FETCH_TIMEOUT" envDefault:"10s"`
	NewsMaxSize      int64         `env:"NEWS_MAX_SIZE" envDefault:"2097152"`
	NewsCacheTTL     time.Duration `env:"NEWS_CACHE_TTL" envDefault:"15m"`

	// Profile
	ProfilePhotoMaxBytes int `env:"PROFILE_PHOTO_MAX_BYTES" envDefault:"1048576"`

	// Rate Limit
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitAuth    int `env:"RATE_LIMIT_AUTH" envDefault:"10"`
	RateLimitDevices int `env:"RATE_LIMIT_DEVICES" envDefault:"30"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// i18n
	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"es"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL"`
	// リバースプロキシ配下でX-Forwarded-For等からクライアントIPを取る
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	// CORS（カンマ区切りで複数指定可、"*" で全許可）
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:8081"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Required fields
	var missing []string

	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if cfg.ResetTokenSecret == "" {
		missing = append(missing, "RESET_TOKEN_SECRET")
	}
	if cfg.StoreDriver == StoreDriverPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverSQLite, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER: %q", cfg.StoreDriver)
	}

	cfg.LoginEmailDomains = normalizeDomains(cfg.LoginEmailDomains)
	if len(cfg.LoginEmailDomains) == 0 {
		return nil, fmt.Errorf("LOGIN_EMAIL_DOMAINS must contain at least one domain")
	}

	return cfg, nil
}

// normalizeDomains は空要素を除き、小文字化したドメイン一覧を返す。
func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(d), "@")))
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
