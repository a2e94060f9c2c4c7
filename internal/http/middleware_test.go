package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wxdash/weather-dashboard/internal/models"
	"github.com/wxdash/weather-dashboard/internal/observability"
)

func newMiddlewareRouter(mockClient *mockWeatherClient, extra ...mux.MiddlewareFunc) *mux.Router {
	logger, _ := zap.NewDevelopment()
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	for _, m := range extra {
		router.Use(m)
	}
	handler, _ := newTestHandler(mockClient, nil)
	router.HandleFunc("/weather/{city}", handler.GetWeather).Methods("GET")
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	return router
}

func TestMiddleware_ThroughHandler(t *testing.T) {
	mockClient := &mockWeatherClient{
		weather: models.CurrentWeather{City: "London", Temperature: 12.0, Timestamp: time.Now()},
	}
	router := newMiddlewareRouter(mockClient)

	req := httptest.NewRequest("GET", "/weather/London", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing")
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	mockClient := &mockWeatherClient{
		weather: models.CurrentWeather{City: "London", Timestamp: time.Now()},
	}
	router := newMiddlewareRouter(mockClient)

	req := httptest.NewRequest("GET", "/weather/London", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
}

func TestMiddleware_MetricsRecordsNonOK(t *testing.T) {
	mockClient := &mockWeatherClient{err: http.ErrHandlerTimeout}
	router := newMiddlewareRouter(mockClient)

	req := httptest.NewRequest("GET", "/weather/London", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	mockClient := &mockWeatherClient{
		weather: models.CurrentWeather{City: "London", Temperature: 10.0, Timestamp: time.Now()},
	}
	limiter := rate.NewLimiter(1, 2)
	router := newMiddlewareRouter(mockClient, RateLimitMiddleware(limiter))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/weather/London", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if i < 2 {
			if w.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, w.Code)
			}
		} else {
			if w.Code != http.StatusTooManyRequests {
				t.Errorf("request %d: status = %d, want 429", i, w.Code)
			}
			var errResp struct {
				Error struct {
					Code      string `json:"code"`
					Message   string `json:"message"`
					RequestID string `json:"requestId"`
				} `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode 429 response: %v", err)
			}
			if errResp.Error.Code != "RATE_LIMITED" {
				t.Errorf("error.code = %q, want RATE_LIMITED", errResp.Error.Code)
			}
		}
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	mockClient := &mockWeatherClient{
		weather: models.CurrentWeather{City: "London", Temperature: 10.0, Timestamp: time.Now()},
	}
	router := newMiddlewareRouter(mockClient, RateLimitMiddleware(nil))

	req := httptest.NewRequest("GET", "/weather/London", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (nil limiter should allow)", w.Code)
	}
}

func TestMiddleware_MetricsRoute(t *testing.T) {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.Use(MetricsMiddleware)
	router.Handle("/metrics", observability.MetricsHandler())

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/weather/london", "/weather/{city}"},
		{"/forecast/london", "/forecast/{city}"},
		{"/forecast/london/daily", "/forecast/{city}/daily"},
		{"/alerts/london", "/alerts/{city}"},
		{"/bestday/london", "/bestday/{city}"},
		{"/compare", "/compare"},
		{"/unknown", "/unknown"},
	}
	for _, tc := range tests {
		req := httptest.NewRequest("GET", tc.path, nil)
		if got := getRoute(req); got != tc.want {
			t.Errorf("getRoute(%s) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestSubrouter_ApiRoutesWithTimeoutAndRateLimit(t *testing.T) {
	mockClient := &mockWeatherClient{
		weather: models.CurrentWeather{City: "London", Temperature: 10.0, Timestamp: time.Now()},
	}
	handler, _ := newTestHandler(mockClient, nil)
	logger, _ := zap.NewDevelopment()
	limiter := rate.NewLimiter(10, 10)

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")

	apiRouter := router.PathPrefix("/").Subrouter()
	apiRouter.Use(RateLimitMiddleware(limiter))
	apiRouter.Use(TimeoutMiddleware(5 * time.Second))
	apiRouter.HandleFunc("/weather/{city}", handler.GetWeather).Methods("GET")

	req := httptest.NewRequest("GET", "/weather/London", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (subrouter should route /weather/{city})", w.Code)
	}
}
