package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Yafet01/drug-prescription-app/config"
	"github.com/Yafet01/drug-prescription-app/data"
	"github.com/Yafet01/drug-prescription-app/encoder"
	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/handlers"
	"github.com/Yafet01/drug-prescription-app/interfaces"
	"github.com/Yafet01/drug-prescription-app/logging"
	"github.com/Yafet01/drug-prescription-app/records"
	"github.com/Yafet01/drug-prescription-app/storage"
	"github.com/Yafet01/drug-prescription-app/validation"
	"github.com/Yafet01/drug-prescription-app/vocabulary"
)

type constantModel float64

func (m constantModel) Predict(_ context.Context, rows []encoder.FeatureVector) ([]float64, error) {
	out := make([]float64, len(rows))
	for i := range out {
		out[i] = float64(m)
	}
	return out, nil
}

// MockHealthChecker implements interfaces.HealthChecker for testing
type MockHealthChecker struct {
	status     string
	details    map[string]any
	httpStatus int
}

func (m *MockHealthChecker) HealthCheck() (string, map[string]any, int) {
	return m.status, m.details, m.httpStatus
}

func (m *MockHealthChecker) CalculateNextReload() time.Time {
	return time.Now().Add(6 * time.Hour)
}

func testConfig(env config.Environment) *config.Config {
	return &config.Config{
		Port:           "8080",
		Address:        "localhost",
		Env:            env,
		LogLevel:       "info",
		MaxRequestBody: 1048576,
		MaxHeaderSize:  1048576,
	}
}

func newTestServer(t *testing.T, cfg *config.Config, withModel bool) (*Server, *data.DataContainer) {
	t.Helper()
	logging.InitLogger("")

	dc := data.NewDataContainer()
	if withModel {
		dc.StoreModel(constantModel(42), interfaces.ModelInfo{Name: "constant", Version: "test", FeatureCount: encoder.FeatureCount})
	}
	dc.UpdateRecords([]records.Record{{Medicine: "Aspirin", Quantity: 12}}, records.ParseStats{Lines: 1, Parsed: 1})

	handler := handlers.NewHTTPHandler(
		dc,
		dc,
		forecast.NewForecaster(dc, vocabulary.Default(), 1),
		validation.NewRequestValidator(validation.DefaultMaxMedicines),
		storage.NopRecorder{},
		&MockHealthChecker{status: "healthy", details: map[string]any{}, httpStatus: http.StatusOK},
	)
	return NewServer(cfg, handler), dc
}

func get(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

// TestNewServer tests server creation
func TestNewServer(t *testing.T) {
	cfg := testConfig(config.EnvTest)
	server, _ := newTestServer(t, cfg, true)

	if server == nil {
		t.Fatal("Server should not be nil")
	}
	if server.server.Addr != "localhost:8080" {
		t.Errorf("Expected server address localhost:8080, got %s", server.server.Addr)
	}
	if server.config != cfg {
		t.Error("Config should be set correctly")
	}
	if server.router == nil || server.Router() == nil {
		t.Error("Router should not be nil")
	}
	if server.handler == nil {
		t.Error("HTTP handler should not be nil")
	}
	if server.limiter == nil {
		t.Error("Rate limiter should not be nil")
	}
}

func TestNewServerIPv6Address(t *testing.T) {
	cfg := testConfig(config.EnvTest)
	cfg.Address = "::1"
	server, _ := newTestServer(t, cfg, false)

	if server.server.Addr != "[::1]:8080" {
		t.Errorf("Expected [::1]:8080, got %s", server.server.Addr)
	}
}

// TestSetupMiddleware tests that the request ID middleware runs before handlers
func TestSetupMiddleware(t *testing.T) {
	server, _ := newTestServer(t, testConfig(config.EnvTest), true)

	server.router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		if middleware.GetReqID(r.Context()) == "" {
			t.Error("RequestID should be available in request context")
		}
		w.WriteHeader(http.StatusOK)
	})

	rr := get(server, "/test")
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("Expected rate limit headers")
	}
}

// TestSetupRoutes tests that all expected routes are configured
func TestSetupRoutes(t *testing.T) {
	server, _ := newTestServer(t, testConfig(config.EnvTest), true)

	tests := []struct {
		path     string
		expected int
		contains string
	}{
		{"/v1/medicines", http.StatusOK, "Aspirin"},
		{"/v1/model", http.StatusOK, "season_wet"},
		{"/v1/forecast?year=2025&month=3&medicine=Aspirin", http.StatusOK, `"predicted_quantity":42`},
		{"/v1/forecast/export?year=2025&month=3&medicine=Aspirin", http.StatusOK, "3,Aspirin,Pain,42"},
		{"/v1/records/summary", http.StatusOK, `"total_records":1`},
		{"/v1/forecast/history", http.StatusServiceUnavailable, "forecast history is disabled"},
		{"/health", http.StatusOK, "healthy"},
		{"/metrics", http.StatusOK, "http_request_total"},
		{"/v1/unknown", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := get(server, tt.path)

			if rr.Code != tt.expected {
				t.Errorf("Expected status %d for %s, got %d", tt.expected, tt.path, rr.Code)
			}
			if tt.contains != "" && !strings.Contains(rr.Body.String(), tt.contains) {
				t.Errorf("Expected body of %s to contain %q, got %s", tt.path, tt.contains, rr.Body.String())
			}
		})
	}
}

func TestForecastWithoutModel(t *testing.T) {
	server, _ := newTestServer(t, testConfig(config.EnvTest), false)

	rr := get(server, "/v1/forecast?year=2025&month=3&medicine=Aspirin")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a model, got %d", rr.Code)
	}
}

func TestRedirectSlashes(t *testing.T) {
	server, _ := newTestServer(t, testConfig(config.EnvTest), true)

	rr := get(server, "/v1/medicines/")
	if rr.Code != http.StatusMovedPermanently {
		t.Errorf("Expected 301 for trailing slash, got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	server, _ := newTestServer(t, testConfig(config.EnvTest), true)

	req := httptest.NewRequest(http.MethodOptions, "/v1/forecast", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	req.Header.Set("Origin", "http://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected Access-Control-Allow-Origin *, got %q", got)
	}
}

func TestProductionBlocksDirectAccess(t *testing.T) {
	server, _ := newTestServer(t, testConfig(config.EnvProduction), true)

	req := httptest.NewRequest("GET", "/v1/medicines", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	rr := httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for direct access in production, got %d", rr.Code)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.4")
	rr = httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 through the proxy, got %d", rr.Code)
	}
}

func TestStartAndShutdown(t *testing.T) {
	cfg := testConfig(config.EnvTest)
	cfg.Address = "127.0.0.1"
	cfg.Port = "0"
	server, _ := newTestServer(t, cfg, true)

	done := make(chan error, 1)
	go func() { done <- server.Start() }()

	// Give ListenAndServe a moment to bind
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Expected http.ErrServerClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
