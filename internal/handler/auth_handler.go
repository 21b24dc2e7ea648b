// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/teamspace/internal/account"
	"github.com/hitoshi/teamspace/internal/auth"
	"github.com/hitoshi/teamspace/internal/metrics"
	"github.com/hitoshi/teamspace/internal/middleware"
	"github.com/hitoshi/teamspace/internal/model"
)

const (
	oauthStateCookie = "oauth_state"

	// googleAuthFailedPath はGoogleログイン失敗時のリダイレクト先（BASE_URLからの相対パス）。
	googleAuthFailedPath = "/login?error=google_auth_failed"
)

// GoogleAuthenticator はGoogleのプロフィールをアカウントに対応付ける。
type GoogleAuthenticator interface {
	Authenticate(ctx context.Context, r *http.Request, profile auth.ProviderProfile) auth.Result
}

// LocalAuthenticator はメールアドレスとパスワードを照合する。
type LocalAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) auth.Result
}

// SessionIssuer は認証済みユーザーのセッションを発行・破棄する。
type SessionIssuer interface {
	Login(ctx context.Context, principal auth.AccountSource) (*model.Session, error)
	// CookieValue はセッションIDをCookieに保存する値に変換する。
	CookieValue(sessionID string) string
	// Logout はCookieの値に対応するセッションを破棄する。
	Logout(ctx context.Context, cookieValue string) error
}

// Registrar はメールアドレスでの新規登録を行う。
type Registrar interface {
	Register(ctx context.Context, in account.RegisterInput) (*model.User, error)
}

// AuthHandlerDeps は認証ハンドラーの依存関係。
type AuthHandlerDeps struct {
	Google    GoogleAuthenticator
	Local     LocalAuthenticator
	OAuth     auth.OAuthProvider
	Sessions  SessionIssuer
	Registrar Registrar
	Metrics   metrics.MetricsCollector
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はログイン・ログアウト・新規登録のHTTPハンドラー。
type AuthHandler struct {
	deps   AuthHandlerDeps
	config AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(deps AuthHandlerDeps, config AuthHandlerConfig) *AuthHandler {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopCollector{}
	}
	return &AuthHandler{
		deps:   deps,
		config: config,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.deps.OAuth.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
// 認証に失敗した場合はログイン画面へエラー付きでリダイレクトする。
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("stateパラメータが一致しません。"))
		return
	}
	h.clearCookie(w, oauthStateCookie)

	// 同意画面でキャンセルされた場合などはerrorパラメータが返る
	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		slog.Warn("google returned an error", slog.String("error", providerErr))
		h.failGoogleLogin(w, r)
		return
	}

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("認可コードがありません。"))
		return
	}

	// 3. 認可コードをプロフィールに交換
	profile, err := h.deps.OAuth.ExchangeCode(r.Context(), code)
	if err != nil {
		slog.Error("oauth code exchange failed", slog.String("error", err.Error()))
		h.failGoogleLogin(w, r)
		return
	}

	// 4. アカウントの解決
	res := h.deps.Google.Authenticate(r.Context(), r, *profile)
	if !res.OK() {
		h.deps.Metrics.RecordLogin(auth.StrategyGoogle, metrics.ResultFailure)
		slog.Warn("google authentication failed", slog.String("error", resultError(res).Error()))
		h.failGoogleLogin(w, r)
		return
	}

	// 5. セッションの発行
	session, err := h.deps.Sessions.Login(r.Context(), res.Principal)
	if err != nil {
		h.deps.Metrics.RecordLogin(auth.StrategyGoogle, metrics.ResultFailure)
		slog.Error("failed to start session", slog.String("error", err.Error()))
		h.failGoogleLogin(w, r)
		return
	}

	h.deps.Metrics.RecordLogin(auth.StrategyGoogle, metrics.ResultSuccess)
	h.setSessionCookie(w, session.ID)
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Login はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("リクエストの形式が不正です。"))
		return
	}

	res := h.deps.Local.Authenticate(r.Context(), req.Email, req.Password)
	if !res.OK() {
		h.deps.Metrics.RecordLogin(auth.StrategyLocal, metrics.ResultFailure)
		h.writeLocalLoginFailure(w, res)
		return
	}

	session, err := h.deps.Sessions.Login(r.Context(), res.Principal)
	if err != nil {
		h.deps.Metrics.RecordLogin(auth.StrategyLocal, metrics.ResultFailure)
		slog.Error("failed to start session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.deps.Metrics.RecordLogin(auth.StrategyLocal, metrics.ResultSuccess)
	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusOK, toUserResponse(session.Data))
}

// Register はメールアドレスで新規登録し、そのままログインさせる。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("リクエストの形式が不正です。"))
		return
	}

	user, err := h.deps.Registrar.Register(r.Context(), account.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	session, err := h.deps.Sessions.Login(r.Context(), user)
	if err != nil {
		slog.Error("failed to start session after registration",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusCreated, toUserResponse(session.Data))
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.deps.Sessions.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	clearSessionCookie(w, h.config)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(principal))
}

// writeLocalLoginFailure はローカルログインの失敗を401で返す。
// 利用者向けの理由はResult.Messageを使う。内部エラーは詳細を隠して500にする。
func (h *AuthHandler) writeLocalLoginFailure(w http.ResponseWriter, res auth.Result) {
	err := resultError(res)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("local authentication failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	body := *apiErr
	if res.Message != "" {
		body.Message = res.Message
	}
	middleware.WriteErrorResponse(w, http.StatusUnauthorized, &body)
}

// failGoogleLogin はログイン画面へエラー付きでリダイレクトする。
func (h *AuthHandler) failGoogleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, strings.TrimRight(h.config.BaseURL, "/")+googleAuthFailedPath, http.StatusTemporaryRedirect)
}

// setSessionCookie はセッションCookieを設定する（HTTP Only）。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    h.deps.Sessions.CookieValue(sessionID),
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除するSet-Cookieを書き込む。
func clearSessionCookie(w http.ResponseWriter, config AuthHandlerConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// resultError は失敗したResultのエラーを返す。
// Errが無いままPrincipalも無い場合に備える。
func resultError(res auth.Result) error {
	if res.Err != nil {
		return res.Err
	}
	return errors.New("authentication returned no principal")
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
