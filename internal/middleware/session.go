// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/teamspace/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストにログイン中のユーザーを格納するためのキー。
var principalContextKey = contextKey("principal")

// PrincipalLoader はセッションIDから認証済みユーザーを復元するインターフェース。
// auth.SessionManagerが実装する。
type PrincipalLoader interface {
	Current(ctx context.Context, sessionID string) (*model.SessionUser, error)
}

// NewSessionMiddleware はHTTP Only CookieからセッションIDを読み取り、
// 認証済みユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// セッションが無い、または無効なリクエストもそのまま通す。拒否はRequireAuthが行う。
func NewSessionMiddleware(loader PrincipalLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := loader.Current(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if principal == nil {
				next.ServeHTTP(w, r)
				return
			}

			setLoggedUserID(r.Context(), principal.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAuth は認証済みユーザーがコンテキストに無いリクエストに401を返す。
// NewSessionMiddlewareの後に配置する。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFromContext はリクエストコンテキストからログイン中のユーザーを取得する。
func PrincipalFromContext(ctx context.Context) (*model.SessionUser, bool) {
	principal, ok := ctx.Value(principalContextKey).(*model.SessionUser)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

// ContextWithPrincipal はコンテキストにログイン中のユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, principal *model.SessionUser) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok || principal.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return principal.ID, nil
}
