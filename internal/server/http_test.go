package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codesnap/codesnap/config"
	"github.com/codesnap/codesnap/internal/auth"
	"github.com/codesnap/codesnap/internal/metrics"
	"github.com/codesnap/codesnap/internal/services"
	"github.com/codesnap/codesnap/storage"
	"github.com/gin-gonic/gin"
)

const testPassword = "router-secret"

// Helper function to create a test logger that suppresses output
func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := createTestLogger()

	cfg := config.Default()
	cfg.StorageType = config.StorageSQLite
	cfg.AdminPassword = testPassword
	cfg.Version = "test"
	if mutate != nil {
		mutate(cfg)
	}

	store, err := storage.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Failed to close storage: %v", err)
		}
	})

	authenticator, err := auth.New(auth.Options{Password: cfg.AdminPassword})
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	m := metrics.New()
	service := services.NewPasteService(store, authenticator, cfg, logger, services.WithMetrics(m))

	return NewRouter(Deps{
		Config:  cfg,
		Pastes:  service,
		Auth:    authenticator,
		Store:   store,
		Metrics: m,
		Logger:  logger,
	})
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON error body, got %q: %v", w.Body.String(), err)
	}
	msg, _ := body["error"].(string)
	return msg
}

func TestRouter_CreateAndGet(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/pastes", strings.NewReader(`{"content":"print('hi')","language":"python"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Errorf("expected a generated request id header")
	}

	var created map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/pastes/"+created["pasteId"], nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"views":1`) {
		t.Errorf("expected views 1, got %s", w.Body.String())
	}
}

func TestRouter_RequestIDIsPropagated(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/languages", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := serve(r, req)
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("expected request id abc-123, got %q", got)
	}
}

func TestRouter_NoRoute(t *testing.T) {
	r := newTestRouter(t, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "Resource not found" {
		t.Errorf("unexpected error message %q", msg)
	}
}

func TestRouter_BodyLimit(t *testing.T) {
	r := newTestRouter(t, func(c *config.Config) { c.MaxContentBytes = 64 })

	body := `{"content":"` + strings.Repeat("x", 200) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/pastes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", w.Code, w.Body.String())
	}
	if msg := decodeError(t, w); msg != "File is too large. Please upload a smaller file." {
		t.Errorf("unexpected error message %q", msg)
	}
}

func TestRouter_AdminRateLimit(t *testing.T) {
	r := newTestRouter(t, func(c *config.Config) { c.AdminRatePerMinute = 2 })

	verify := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/verify", strings.NewReader(`{"password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.10:4000"
		return serve(r, req)
	}

	for i := 0; i < 2; i++ {
		if w := verify(); w.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := verify()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", w.Code, w.Body.String())
	}
	if decodeError(t, w) == "" {
		t.Errorf("expected an error message on 429")
	}

	// public reads are not limited
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/api/pastes", nil)); w.Code != http.StatusOK {
		t.Errorf("expected list to stay available, got %d", w.Code)
	}
}

func TestRouter_PanicRecovery(t *testing.T) {
	r := newTestRouter(t, nil)
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "Internal server error" {
		t.Errorf("unexpected error message %q", msg)
	}
}

func TestRouter_CanonicalErrors(t *testing.T) {
	r := newTestRouter(t, nil)
	r.GET("/teapot", func(c *gin.Context) { c.String(http.StatusTeapot, "short and stout\n") })
	r.GET("/message", func(c *gin.Context) { c.JSON(http.StatusConflict, gin.H{"message": "already there"}) })

	tests := []struct {
		path   string
		status int
		msg    string
	}{
		{"/teapot", http.StatusTeapot, "short and stout"},
		{"/message", http.StatusConflict, "already there"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := serve(r, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if !strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
				t.Errorf("expected JSON content type, got %q", w.Header().Get("Content-Type"))
			}
			if msg := decodeError(t, w); msg != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, msg)
			}
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/pastes", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(r, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t, nil)

	serve(r, httptest.NewRequest(http.MethodGet, "/api/languages", nil))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `codesnap_http_requests_total{method="GET",route="/api/languages",status="200"} 1`) {
		t.Errorf("expected request counter in metrics output")
	}
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"storage":"sqlite"`) {
		t.Errorf("expected storage in health body, got %s", w.Body.String())
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remote: "198.51.100.7:1234", want: "198.51.100.7"},
		{name: "forwarded ignored", remote: "198.51.100.7:1234", headers: map[string]string{"X-Forwarded-For": "203.0.113.1"}, want: "198.51.100.7"},
		{name: "forwarded trusted", remote: "198.51.100.7:1234", headers: map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, trustProxy: true, want: "203.0.113.1"},
		{name: "real ip trusted", remote: "198.51.100.7:1234", headers: map[string]string{"X-Real-IP": "203.0.113.9"}, trustProxy: true, want: "203.0.113.9"},
		{name: "no port", remote: "local", want: "local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	disabled := NewRateLimiter(0, time.Minute)
	if !disabled.Allow("anyone") {
		t.Errorf("disabled limiter must allow")
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") {
		t.Fatal("first request must pass")
	}
	if rl.Allow("a") {
		t.Fatal("second request within the minute must be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own bucket")
	}

	now = now.Add(2 * time.Minute)
	if !rl.Allow("a") {
		t.Fatal("bucket must refill after a minute")
	}
	if _, ok := rl.clients["b"]; ok {
		t.Errorf("idle client should have been evicted")
	}
}
