// Package app はコマンドの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/teamspace/internal/account"
	"github.com/hitoshi/teamspace/internal/auth"
	"github.com/hitoshi/teamspace/internal/config"
	"github.com/hitoshi/teamspace/internal/database"
	"github.com/hitoshi/teamspace/internal/handler"
	"github.com/hitoshi/teamspace/internal/logger"
	"github.com/hitoshi/teamspace/internal/metrics"
	"github.com/hitoshi/teamspace/internal/middleware"
	"github.com/hitoshi/teamspace/internal/repository"
	"github.com/hitoshi/teamspace/internal/security"
	"github.com/hitoshi/teamspace/internal/worker/cleanup"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("session_store", cfg.SessionStore),
	)

	// SIGINTまたはSIGTERMでキャンセルされるコンテキスト
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// sessionStore は選択されたセッションストアと、その疎通確認・終了処理をまとめたもの。
type sessionStore struct {
	repo    repository.SessionRepository
	checker handler.HealthChecker // Postgresストアの場合はnil
	close   func() error
}

// openSessionStore はSESSION_STOREに応じてセッションストアを構築する。
func openSessionStore(ctx context.Context, cfg *config.Config, db *sql.DB) (*sessionStore, error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		client, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established")
		return &sessionStore{
			repo:    repository.NewRedisSessionRepo(client),
			checker: redisHealthChecker(client),
			close:   client.Close,
		}, nil
	default:
		return &sessionStore{
			repo:  repository.NewPostgresSessionRepo(db),
			close: func() error { return nil },
		}, nil
	}
}

func redisHealthChecker(client *redis.Client) handler.HealthChecker {
	return handler.HealthCheckerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.ConnectWithRetry(ctx, cfg.DatabaseURL, database.RetryConfig{Attempts: cfg.DBConnectAttempts})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. セッションストアとリポジトリの初期化
	store, err := openSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer store.close()

	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. セキュリティサービスの初期化
	urlGuard := security.NewURLGuard()
	sanitizer := security.NewNameSanitizer()

	// 5. ドメインサービスの初期化
	accountService := account.NewService(
		userRepo, identRepo, store.repo, urlGuard, sanitizer, collector,
		account.Config{BcryptCost: cfg.BcryptCost},
	)

	strategies := auth.NewStrategies(auth.StrategyDeps{
		Resolver:           accountService,
		Verifier:           accountService,
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GoogleCallbackURL:  cfg.GoogleCallbackURL,
		OAuthHTTPClient:    urlGuard.NewSafeClient(cfg.OAuthHTTPTimeout),
	})
	sessions := auth.NewSessionManager(strategies.Codec, store.repo, collector, auth.SessionConfig{
		SessionMaxAge: cfg.SessionMaxAge,
		Secret:        cfg.SessionSecret,
	})

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitLogin))
	defer rateLimiter.Stop()

	checkers := map[string]handler.HealthChecker{"postgres": db}
	if store.checker != nil {
		checkers["redis"] = store.checker
	}

	authConfig := handler.AuthHandlerConfig{
		BaseURL:       cfg.BaseURL,
		CookieDomain:  cfg.CookieDomain,
		CookieSecure:  cfg.CookieSecure,
		SessionMaxAge: cfg.SessionMaxAge,
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		PrincipalLoader:   sessions,
		CORSAllowedOrigin: corsOrigin(cfg.BaseURL),
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:       rateLimiter,
		TrustProxyHeaders: cfg.TrustProxy,

		HealthCheckers: checkers,
		MetricsHandler: metrics.Handler(registry),

		Auth: handler.AuthHandlerDeps{
			Google:    strategies.Google,
			Local:     strategies.Local,
			OAuth:     strategies.GoogleOAuth,
			Sessions:  sessions,
			Registrar: accountService,
			Metrics:   collector,
		},
		AuthConfig:  authConfig,
		UserService: accountService,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return serve(ctx, server)
}

// serve はctxがキャンセルされるまでserverを動かし、その後グレースフルシャットダウンする。
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// PostgreSQLセッションストアの期限切れセッションを定期的に削除する。
// ctxがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.SessionStore == config.SessionStoreRedis {
		slog.Info("redis session store expires sessions by itself; worker has nothing to do")
		return nil
	}

	db, err := database.ConnectWithRetry(ctx, cfg.DatabaseURL, database.RetryConfig{Attempts: cfg.DBConnectAttempts})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	job := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), slog.Default())

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", job.Interval),
	)

	// ctxがキャンセルされるまでブロックする
	job.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// corsOrigin はBASE_URLからCORSで許可するOrigin（scheme://host[:port]）を取り出す。
func corsOrigin(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return baseURL
	}
	return u.Scheme + "://" + u.Host
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できない場合は全体を伏せる。
func maskDatabaseURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
