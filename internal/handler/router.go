package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/teamspace/internal/metrics"
	"github.com/hitoshi/teamspace/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	PrincipalLoader   middleware.PrincipalLoader
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	// TrustProxyHeaders がtrueの場合、X-Forwarded-For等からクライアントIPを復元する。
	// リバースプロキシ配下でのみ有効にする。
	TrustProxyHeaders bool

	// 運用エンドポイント
	HealthCheckers map[string]HealthChecker
	MetricsHandler http.Handler // nilの場合/metricsを公開しない

	// 認証
	Auth       AuthHandlerDeps
	AuthConfig AuthHandlerConfig

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS → Session → CSRF
//
// ログイン・新規登録にはクライアントIP単位のレート制限を追加する。
// /health と /metrics はセッションとCSRFの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	if deps.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{
		HSTS: deps.AuthConfig.CookieSecure,
	}))

	// --- 運用エンドポイント ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthCheckers))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.Auth, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewSessionMiddleware(deps.PrincipalLoader))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// CSRFトークン取得（認証不要）
		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		r.Route("/auth", func(r chi.Router) {
			// Google OAuthフロー
			r.Get("/google/login", authHandler.GoogleLogin)
			r.Get("/google/callback", authHandler.GoogleCallback)

			// メールアドレス・パスワード（総当たり対策のレート制限付き）
			r.Group(func(r chi.Router) {
				if deps.RateLimiter != nil {
					r.Use(deps.RateLimiter.LoginMiddleware())
				}
				r.Post("/login", authHandler.Login)
				r.Post("/register", authHandler.Register)
			})

			// セッション管理
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Route("/api/users", func(r chi.Router) {
				r.Delete("/me", userHandler.Withdraw)
			})
		})
	})

	return r
}
