package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// セッションストアの種別。
const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `envconfig:"DATABASE_URL"`
	// DBConnectAttempts は起動時のDB接続の試行回数。
	DBConnectAttempts int `envconfig:"DB_CONNECT_ATTEMPTS" default:"6"`

	// OAuth
	GoogleClientID     string        `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string        `envconfig:"GOOGLE_CALLBACK_URL"`
	OAuthHTTPTimeout   time.Duration `envconfig:"OAUTH_HTTP_TIMEOUT" default:"10s"`

	// Session
	SessionSecret string `envconfig:"SESSION_SECRET"`
	SessionMaxAge int    `envconfig:"SESSION_MAX_AGE" default:"86400"`
	SessionStore  string `envconfig:"SESSION_STORE" default:"postgres"`
	RedisURL      string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	// Password
	BcryptCost int `envconfig:"BCRYPT_COST" default:"12"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitLogin int `envconfig:"RATE_LIMIT_LOGIN" default:"10"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Server
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	BaseURL    string `envconfig:"BASE_URL"`
	// TrustProxy はX-Forwarded-For等のヘッダーからクライアントIPを取得するかどうか。
	// リバースプロキシ配下で起動する場合のみtrueにする。
	TrustProxy bool `envconfig:"TRUST_PROXY" default:"false"`

	// Cookie
	CookieSecure bool   `ignored:"true"`
	CookieDomain string `envconfig:"COOKIE_DOMAIN" default:""`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定（空文字を含む）の場合は、未設定のものをすべて列挙したエラーを返す。
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	// 必須項目はenvconfigのrequiredタグを使わず、未設定のものをまとめて報告する
	var missing []string
	for _, f := range []struct {
		key   string
		value string
	}{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"GOOGLE_CLIENT_ID", cfg.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret},
		{"GOOGLE_CALLBACK_URL", cfg.GoogleCallbackURL},
		{"SESSION_SECRET", cfg.SessionSecret},
		{"BASE_URL", cfg.BaseURL},
	} {
		if f.value == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.SessionStore {
	case SessionStorePostgres, SessionStoreRedis:
	default:
		return nil, fmt.Errorf("unsupported SESSION_STORE: %q (allowed: %s, %s)",
			cfg.SessionStore, SessionStorePostgres, SessionStoreRedis)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return &cfg, nil
}
