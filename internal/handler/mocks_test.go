package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/teamspace/internal/account"
	"github.com/hitoshi/teamspace/internal/auth"
	"github.com/hitoshi/teamspace/internal/middleware"
	"github.com/hitoshi/teamspace/internal/model"
)

// --- モック定義 ---

type mockGoogleAuth struct {
	authenticateFn func(ctx context.Context, r *http.Request, profile auth.ProviderProfile) auth.Result
}

func (m *mockGoogleAuth) Authenticate(ctx context.Context, r *http.Request, profile auth.ProviderProfile) auth.Result {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, r, profile)
	}
	return auth.Result{}
}

type mockLocalAuth struct {
	authenticateFn func(ctx context.Context, email, password string) auth.Result
}

func (m *mockLocalAuth) Authenticate(ctx context.Context, email, password string) auth.Result {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, email, password)
	}
	return auth.Result{}
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*auth.ProviderProfile, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*auth.ProviderProfile, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return &auth.ProviderProfile{}, nil
}

type mockSessionIssuer struct {
	loginFn  func(ctx context.Context, principal auth.AccountSource) (*model.Session, error)
	logoutFn func(ctx context.Context, sessionID string) error
}

// CookieValue は署名せずにセッションIDをそのまま返す。
func (m *mockSessionIssuer) CookieValue(sessionID string) string {
	return sessionID
}

func (m *mockSessionIssuer) Login(ctx context.Context, principal auth.AccountSource) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, principal)
	}
	return nil, nil
}

func (m *mockSessionIssuer) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type mockRegistrar struct {
	registerFn func(ctx context.Context, in account.RegisterInput) (*model.User, error)
}

func (m *mockRegistrar) Register(ctx context.Context, in account.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// recordingMetrics はRecordLoginの呼び出しを記録する。
type recordingMetrics struct {
	logins []string // "strategy:result"
}

func (m *recordingMetrics) RecordLogin(strategy, result string) {
	m.logins = append(m.logins, strategy+":"+result)
}
func (m *recordingMetrics) RecordSerializeFailure()            {}
func (m *recordingMetrics) RecordAccountCreated(string)        {}
func (m *recordingMetrics) RecordHTTPStatus(int)               {}
func (m *recordingMetrics) RecordRequestLatency(time.Duration) {}

// --- テストヘルパー ---

var testUserID = uuid.MustParse("6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b")

func newTestUser() *model.User {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	hash := "$2a$10$abcdefghijklmnopqrstuv"
	return &model.User{
		ID:        testUserID,
		Name:      "Taro",
		Email:     "taro@example.com",
		IsActive:  true,
		CreatedAt: created,
		UpdatedAt: created,
		Password:  &hash,
	}
}

// sessionFor はuserの射影を持つセッションを返す。
func sessionFor(id string, user *model.User) *model.Session {
	data, err := auth.SessionCodec{}.Serialize(user)
	if err != nil {
		panic(err)
	}
	return &model.Session{
		ID:        id,
		UserID:    data.ID,
		Data:      data,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
}

// withPrincipal はリクエストのコンテキストにログインユーザーを注入する。
func withPrincipal(r *http.Request, userID string) *http.Request {
	principal := &model.SessionUser{ID: userID, Name: "Taro", Email: "taro@example.com", IsActive: true}
	return r.WithContext(middleware.ContextWithPrincipal(r.Context(), principal))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func containsStr(s, substr string) bool {
	return strings.Contains(s, substr)
}

var testAuthConfig = AuthHandlerConfig{
	BaseURL:       "http://localhost:3000",
	CookieDomain:  "",
	CookieSecure:  false,
	SessionMaxAge: 86400,
}
