package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const (
	// initialBackoff は接続リトライの初回待機時間。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff は接続リトライの最大待機時間。
	maxBackoff = 8 * time.Second
)

// RetryConfig は起動時のDB接続リトライの設定。
type RetryConfig struct {
	Attempts int // 試行回数（1以下の場合は1回だけ試行する）
}

// CalculateBackoff は失敗回数に基づいて指数バックオフの待機時間を計算する。
// 初回500ms、2倍ずつ増加、最大8秒。
func CalculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// connectFunc はテストで差し替えるための接続関数。
var connectFunc = Connect

// ConnectWithRetry は接続に成功するまで指数バックオフでConnectを繰り返す。
// ctxがキャンセルされた場合は待機を中断してエラーを返す。
func ConnectWithRetry(ctx context.Context, databaseURL string, config RetryConfig) (*sql.DB, error) {
	attempts := config.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		db, err := connectFunc(ctx, databaseURL)
		if err == nil {
			return db, nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}

		delay := CalculateBackoff(i)
		slog.Warn("database not ready, retrying",
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up connecting to database: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("gave up connecting to database after %d attempts: %w", attempts, lastErr)
}
