package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout は依存先1つあたりの疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker は依存先の疎通を確認する。
// *sql.DBはPingContextでこれを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthCheckerFunc は関数をHealthCheckerとして扱うためのアダプタ。
type HealthCheckerFunc func(ctx context.Context) error

// PingContext はf(ctx)を呼ぶ。
func (f HealthCheckerFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// NewHealthHandler は依存先すべてに疎通できれば200、いずれかが失敗すれば503を返すハンドラーを生成する。
// GET /health
func NewHealthHandler(checkers map[string]HealthChecker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checkers))

		for name, checker := range checkers {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := checker.PingContext(ctx)
			cancel()

			if err != nil {
				slog.Warn("health check failed",
					slog.String("dependency", name),
					slog.String("error", err.Error()),
				)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "unavailable"
		}
		writeJSON(w, status, map[string]any{
			"status":       overall,
			"dependencies": results,
		})
	})
}
