package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/sales-analytics/internal/auth"
	"github.com/dvloznov/sales-analytics/internal/config"
	"github.com/dvloznov/sales-analytics/internal/logger"
	"github.com/dvloznov/sales-analytics/internal/metrics"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"user":       UserFromContext(r.Context()),
			"request_id": RequestIDFromContext(r.Context()),
		})
	})
}

func TestRequireToken(t *testing.T) {
	a := auth.New(config.AuthConfig{Username: "admin", Password: "admin123"})
	session, err := a.Login("admin", "admin123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + session.Token, http.StatusOK},
		{"lower-case scheme", "bearer " + session.Token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + session.Token, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/reports/export", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			RequireToken(a)(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && !strings.Contains(rec.Body.String(), `"user":"admin"`) {
				t.Errorf("Expected user in context, got %s", rec.Body.String())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequestID(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get(RequestIDHeader)
		if id == "" {
			t.Fatal("Expected a generated request id")
		}
		if !strings.Contains(rec.Body.String(), id) {
			t.Error("Expected request id in context")
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		RequestID(okHandler()).ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("request id = %q, want abc-123", got)
		}
	})
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	Recovery(logger.NewWithWriter(&buf))(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/inventory", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(buf.String(), "Panic recovered") {
		t.Errorf("Expected panic to be logged, got %s", buf.String())
	}
}

func TestCORS_Preflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/inventory", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS headers")
	}
}

func TestLogger_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "Job not found")
	})

	Logger(logger.NewWithWriter(&buf))(notFound).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/reports/x", nil))

	if !strings.Contains(buf.String(), `"status":404`) {
		t.Errorf("Expected status in log line, got %s", buf.String())
	}
}

func TestMetrics_ObservesRoute(t *testing.T) {
	m := metrics.New()
	Metrics(m)(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/reports/123", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `path="/api/reports/{id}"`) {
		t.Errorf("Expected collapsed route label, got:\n%s", rec.Body.String())
	}
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/api/dashboard-data":       "/api/dashboard-data",
		"/api/reports/export":       "/api/reports/export",
		"/api/reports/abc":          "/api/reports/{id}",
		"/api/reports/abc/download": "/api/reports/{id}/download",
		"/health":                   "/health",
		"/wp-admin.php":             "other",
	}
	for path, want := range tests {
		if got := RouteLabel(path); got != want {
			t.Errorf("RouteLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
