package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/pastes/:pasteId", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/api/pastes/aaa", "/api/pastes/bbb", "/nowhere"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}
	m.PasteCreated()
	m.PasteViewed()
	m.PastesSwept(4)
	m.AdminAttempt(false)
	m.StoreError("create")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()

	for _, want := range []string{
		`codesnap_http_requests_total{method="GET",route="/api/pastes/:pasteId",status="200"} 2`,
		`codesnap_http_requests_total{method="GET",route="unmatched",status="404"} 1`,
		`codesnap_pastes_created_total 1`,
		`codesnap_paste_views_total 1`,
		`codesnap_pastes_swept_total 4`,
		`codesnap_admin_auth_attempts_total{result="denied"} 1`,
		`codesnap_store_errors_total{op="create"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.PasteCreated()
	m.PasteViewed()
	m.PastesSwept(1)
	m.AdminAttempt(true)
	m.StoreError("get")
}
