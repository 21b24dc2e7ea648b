package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type healthBody struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

func TestHealthHandler(t *testing.T) {
	ok := HealthCheckerFunc(func(ctx context.Context) error { return nil })
	down := HealthCheckerFunc(func(ctx context.Context) error { return errors.New("dial tcp: refused") })

	tests := []struct {
		name       string
		checkers   map[string]HealthChecker
		wantStatus int
		wantBody   healthBody
	}{
		{
			name:       "no dependencies",
			checkers:   nil,
			wantStatus: http.StatusOK,
			wantBody:   healthBody{Status: "ok", Dependencies: map[string]string{}},
		},
		{
			name:       "all healthy",
			checkers:   map[string]HealthChecker{"postgres": ok, "redis": ok},
			wantStatus: http.StatusOK,
			wantBody:   healthBody{Status: "ok", Dependencies: map[string]string{"postgres": "ok", "redis": "ok"}},
		},
		{
			name:       "one unavailable",
			checkers:   map[string]HealthChecker{"postgres": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   healthBody{Status: "unavailable", Dependencies: map[string]string{"postgres": "ok", "redis": "unavailable"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()

			NewHealthHandler(tt.checkers).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var got healthBody
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if got.Status != tt.wantBody.Status {
				t.Errorf("status field = %q, want %q", got.Status, tt.wantBody.Status)
			}
			if len(got.Dependencies) != len(tt.wantBody.Dependencies) {
				t.Fatalf("dependencies = %v, want %v", got.Dependencies, tt.wantBody.Dependencies)
			}
			for name, want := range tt.wantBody.Dependencies {
				if got.Dependencies[name] != want {
					t.Errorf("dependencies[%s] = %q, want %q", name, got.Dependencies[name], want)
				}
			}
		})
	}
}

func TestHealthHandler_AppliesTimeout(t *testing.T) {
	var hasDeadline bool
	checker := HealthCheckerFunc(func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	NewHealthHandler(map[string]HealthChecker{"postgres": checker}).ServeHTTP(w, req)

	if !hasDeadline {
		t.Error("expected health check context to have a deadline")
	}
}
