package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wxdash/weather-dashboard/internal/analyzer"
	"github.com/wxdash/weather-dashboard/internal/client"
	"github.com/wxdash/weather-dashboard/internal/lifecycle"
	"github.com/wxdash/weather-dashboard/internal/service"
	"github.com/wxdash/weather-dashboard/internal/traffic"
	"github.com/wxdash/weather-dashboard/internal/validation"
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	RateLimitRPS           int
	RateLimitBurst         int // 0 when rate limiter disabled
	DegradedWindow         time.Duration
	DegradedErrorPct       int
	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration
	StartTime              time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService   *service.WeatherService
	client           client.WeatherClient
	healthConfig     *HealthConfig
	logger           *zap.Logger
	defaultCities    []string
	cityMinLength    int
	cityMaxLength    int
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. defaultCities backs /compare when the
// request does not name cities.
func NewHandler(
	weatherService *service.WeatherService,
	weatherClient client.WeatherClient,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	defaultCities []string,
	cityMinLength, cityMaxLength int,
) *Handler {
	return &Handler{
		weatherService: weatherService,
		client:         weatherClient,
		healthConfig:   healthConfig,
		logger:         logger,
		defaultCities:  defaultCities,
		cityMinLength:  cityMinLength,
		cityMaxLength:  cityMaxLength,
	}
}

// cityFromRequest extracts and validates the {city} path variable. Writes the
// 400 response itself and returns ok=false when invalid.
func (h *Handler) cityFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	city, err := validation.ValidateCity(mux.Vars(r)["city"], h.cityMinLength, h.cityMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return "", false
	}
	return city, true
}

// GetWeather handles GET /weather/{city}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.weatherService.Current(r.Context(), city)
	if err != nil {
		traffic.RecordError()
		writeServiceError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// GetForecast handles GET /forecast/{city}.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.weatherService.Forecast(r.Context(), city)
	if err != nil {
		traffic.RecordError()
		writeServiceError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// GetDailySummaries handles GET /forecast/{city}/daily.
func (h *Handler) GetDailySummaries(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityFromRequest(w, r)
	if !ok {
		return
	}

	days, err := h.weatherService.DailySummaries(r.Context(), city)
	if err != nil {
		traffic.RecordError()
		writeServiceError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city": city,
		"days": days,
	})
}

// GetAlerts handles GET /alerts/{city}.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityFromRequest(w, r)
	if !ok {
		return
	}

	report, err := h.weatherService.Alerts(r.Context(), city)
	if err != nil {
		traffic.RecordError()
		writeServiceError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, report)
}

// GetBestDay handles GET /bestday/{city}.
func (h *Handler) GetBestDay(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityFromRequest(w, r)
	if !ok {
		return
	}

	best, err := h.weatherService.BestDay(r.Context(), city)
	if err != nil {
		traffic.RecordError()
		writeServiceError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, best)
}

// GetCompare handles GET /compare?cities=a,b,c. Falls back to the configured
// city list when the parameter is absent.
func (h *Handler) GetCompare(w http.ResponseWriter, r *http.Request) {
	cities := h.defaultCities
	if raw := strings.TrimSpace(r.URL.Query().Get("cities")); raw != "" {
		cities = nil
		for _, c := range strings.Split(raw, ",") {
			c, err := validation.ValidateCity(c, h.cityMinLength, h.cityMaxLength)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
				return
			}
			cities = append(cities, c)
		}
	}
	if len(cities) == 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", "no cities to compare")
		return
	}

	rows := h.weatherService.Compare(r.Context(), cities)
	anyResolved := false
	for _, row := range rows {
		if row.Error == "" {
			anyResolved = true
			break
		}
	}
	if anyResolved {
		traffic.RecordSuccess()
	} else {
		traffic.RecordError()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cities": rows,
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	} else {
		checks["weatherApi"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-dashboard",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus determines the current health status by evaluating
// conditions in priority order: shutting-down > API key invalid > overloaded >
// idle > degraded > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if err := h.client.ValidateAPIKey(ctx); err != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "api_key_invalid"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	// Overload: rate limit denials exceed the configured share of capacity.
	threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
	if float64(traffic.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	// Idle: low served traffic after the minimum lifespan has elapsed.
	if h.healthConfig.IdleWindow > 0 && h.healthConfig.MinimumLifespan > 0 && time.Since(h.healthConfig.StartTime) >= h.healthConfig.MinimumLifespan {
		if traffic.ServedCount(h.healthConfig.IdleWindow) < h.healthConfig.IdleThresholdReqPerMin {
			return healthResult{"idle", http.StatusOK, "low_traffic"}
		}
	}
	// Degraded: error rate over the window breaches the threshold.
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errCount, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errCount) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID, _ = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError maps service errors to HTTP responses: unknown city and
// empty forecast to 404, everything else to 503. Logs the underlying error at
// DEBUG level.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, client.ErrCityNotFound):
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", err.Error())
	case errors.Is(err, analyzer.ErrNoForecast):
		writeError(w, r, http.StatusNotFound, "NO_FORECAST_DATA", "No forecast data available")
	case errors.Is(err, client.ErrInvalidAPIKey):
		writeError(w, r, http.StatusServiceUnavailable, "API_KEY_INVALID", "Weather provider rejected the API key")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}
