package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diintechteam9/cab-tracker/internal/handlers"
	"github.com/diintechteam9/cab-tracker/pkg/websocket"

	"github.com/gin-gonic/gin"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		redisErr   error
		wantStatus int
		wantState  string
	}{
		{"healthy", nil, http.StatusOK, "ok"},
		{"redis down", errors.New("connection refused"), http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		h := handlers.NewHealthHandler(websocket.NewHub(websocket.HubConfig{}), "1.0.0")
		h.AddCheck("mongo", pingFunc(func(context.Context) error { return nil }))
		redisErr := tt.redisErr
		h.AddCheck("redis", pingFunc(func(context.Context) error { return redisErr }))

		r := gin.New()
		r.GET("/health", h.Health)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		if w.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.name, w.Code, tt.wantStatus)
			continue
		}
		var body struct {
			Data struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			} `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Data.Status != tt.wantState {
			t.Errorf("%s: state = %q, want %q", tt.name, body.Data.Status, tt.wantState)
		}
		if body.Data.Checks["mongo"] != "ok" {
			t.Errorf("%s: mongo check = %q, want ok", tt.name, body.Data.Checks["mongo"])
		}
	}
}
