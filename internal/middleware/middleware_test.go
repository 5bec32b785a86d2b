package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if id := w.Header().Get("X-Request-ID"); id == "" || id != w.Body.String() {
		t.Errorf("generated id header %q body %q", id, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-1" {
		t.Errorf("X-Request-ID = %q, want req-1", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "https://x.example", "*"},
		{"listed", []string{"https://a.example"}, "https://a.example", "https://a.example"},
		{"unlisted", []string{"https://a.example"}, "https://b.example", ""},
	}

	for _, tt := range tests {
		r := gin.New()
		r.Use(CORSMiddleware(tt.allowed))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("%s: Allow-Origin = %q, want %q", tt.name, got, tt.want)
		}
	}

	r := gin.New()
	r.Use(CORSMiddleware(nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(RecoveryMiddleware(logger.NewNop()))
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestTrackingLink(t *testing.T) {
	t.Parallel()
	const secret = "link-secret"

	r := gin.New()
	r.Use(TrackingLink(secret))
	r.GET("/trips/:token", func(c *gin.Context) {
		if LinkGrants(c, c.Param("token"), models.RolePassenger) {
			c.String(http.StatusOK, "granted")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	link, err := utils.GenerateLinkToken("abc123", string(models.RolePassenger), secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"no link", "/trips/abc123", "", http.StatusOK, "anonymous"},
		{"query link", "/trips/abc123?access=" + link, "", http.StatusOK, "granted"},
		{"bearer link", "/trips/abc123", "Bearer " + link, http.StatusOK, "granted"},
		{"link for another trip", "/trips/other?access=" + link, "", http.StatusOK, "anonymous"},
		{"forged link", "/trips/abc123?access=not.a.jwt", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.name, w.Code, tt.wantStatus)
			continue
		}
		if tt.wantBody != "" && w.Body.String() != tt.wantBody {
			t.Errorf("%s: body = %q, want %q", tt.name, w.Body.String(), tt.wantBody)
		}
	}
}
