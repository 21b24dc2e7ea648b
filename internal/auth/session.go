package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/teamspace/internal/metrics"
	"github.com/hitoshi/teamspace/internal/model"
	"github.com/hitoshi/teamspace/internal/repository"
)

// SessionConfig はセッション管理の設定。
type SessionConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	// Secret はセッションCookieの署名鍵。空の場合はセッションIDをそのままCookieに使う。
	Secret string
}

// SessionManager は認証済みユーザーのセッションを発行・取得・破棄する。
type SessionManager struct {
	codec       SessionCodec
	sessionRepo repository.SessionRepository
	metrics     metrics.MetricsCollector
	config      SessionConfig
	signer      cookieSigner
	now         func() time.Time
}

// NewSessionManager はSessionManagerを生成する。
func NewSessionManager(codec SessionCodec, sessionRepo repository.SessionRepository, collector metrics.MetricsCollector, config SessionConfig) *SessionManager {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &SessionManager{
		codec:       codec,
		sessionRepo: sessionRepo,
		metrics:     collector,
		config:      config,
		signer:      newCookieSigner(config.Secret),
		now:         time.Now,
	}
}

// Login は認証済みアカウントをシリアライズしてセッションを発行する。
// シリアライズに失敗した場合はセッションを作らない。
func (m *SessionManager) Login(ctx context.Context, principal AccountSource) (*model.Session, error) {
	data, err := m.codec.Serialize(principal)
	if err != nil {
		m.metrics.RecordSerializeFailure()
		return nil, fmt.Errorf("failed to serialize principal: %w", err)
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    data.ID,
		Data:      data,
		ExpiresAt: now.Add(time.Duration(m.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := m.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("session created", slog.String("user_id", data.ID))
	return session, nil
}

// CookieValue はセッションIDをCookieに保存する値（署名付き）に変換する。
func (m *SessionManager) CookieValue(sessionID string) string {
	return m.signer.sign(sessionID)
}

// Current はCookieの値に対応する認証済みユーザーを返す。
// 署名が不正な場合、セッションが存在しないか期限切れの場合はnilを返す。
func (m *SessionManager) Current(ctx context.Context, cookieValue string) (*model.SessionUser, error) {
	sessionID, ok := m.signer.unsign(cookieValue)
	if !ok {
		return nil, nil
	}

	session, err := m.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.Data == nil {
		return nil, nil
	}

	return m.codec.Deserialize(session.Data)
}

// Logout はCookieの値に対応するセッションを破棄する。
func (m *SessionManager) Logout(ctx context.Context, cookieValue string) error {
	if cookieValue == "" {
		return fmt.Errorf("session ID is required")
	}
	sessionID, ok := m.signer.unsign(cookieValue)
	if !ok {
		return fmt.Errorf("invalid session cookie signature")
	}

	if err := m.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
