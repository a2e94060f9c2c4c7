package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wxdash/weather-dashboard/internal/circuitbreaker"
	"github.com/wxdash/weather-dashboard/internal/models"
	"github.com/wxdash/weather-dashboard/internal/observability"
)

// WeatherClient fetches weather data from the upstream provider.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, city string) (models.CurrentWeather, error)
	GetForecast(ctx context.Context, city string) (models.Forecast, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrCityNotFound    = errors.New("city not found")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
)

// OpenWeatherClient talks to the OpenWeatherMap /data/2.5 API with retries,
// exponential backoff and an optional circuit breaker.
type OpenWeatherClient struct {
	apiKey         string
	baseURL        string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	return NewOpenWeatherClientWithRetry(apiKey, baseURL, timeout, 3, 100*time.Millisecond, 2*time.Second)
}

func NewOpenWeatherClientWithRetry(apiKey, baseURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}

	return &OpenWeatherClient{
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker wires a circuit breaker around upstream calls. Call before serving traffic.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type currentResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Dt int64 `json:"dt"`
}

type forecastResponse struct {
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			TempMin   float64 `json:"temp_min"`
			TempMax   float64 `json:"temp_max"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Pop float64 `json:"pop"`
	} `json:"list"`
}

// GetCurrentWeather fetches current conditions for the city, retrying retryable failures.
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, city string) (models.CurrentWeather, error) {
	var result models.CurrentWeather
	err := c.withRetry(ctx, func() error {
		var callErr error
		result, callErr = c.callCurrent(ctx, city)
		return callErr
	})
	if err != nil {
		return models.CurrentWeather{}, err
	}
	return result, nil
}

// GetForecast fetches the 5-day / 3-hourly forecast for the city.
func (c *OpenWeatherClient) GetForecast(ctx context.Context, city string) (models.Forecast, error) {
	var result models.Forecast
	err := c.withRetry(ctx, func() error {
		var callErr error
		result, callErr = c.callForecast(ctx, city)
		return callErr
	})
	if err != nil {
		return models.Forecast{}, err
	}
	return result, nil
}

// withRetry runs fn up to retryAttempts times with exponential backoff and jitter.
// Non-retryable errors (bad key, unknown city) abort immediately. The circuit
// breaker, when set, wraps each attempt.
func (c *OpenWeatherClient) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.WeatherAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		var err error
		if c.breaker != nil {
			err = c.breaker.Call(ctx, fn)
		} else {
			err = fn()
		}
		if err == nil {
			return nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *OpenWeatherClient) callCurrent(ctx context.Context, city string) (models.CurrentWeather, error) {
	body, err := c.callAPI(ctx, "/weather", city)
	if err != nil {
		return models.CurrentWeather{}, err
	}

	var apiResp currentResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.CurrentWeather{}, fmt.Errorf("parse response: %w", err)
	}

	return mapCurrent(apiResp, city), nil
}

func (c *OpenWeatherClient) callForecast(ctx context.Context, city string) (models.Forecast, error) {
	body, err := c.callAPI(ctx, "/forecast", city)
	if err != nil {
		return models.Forecast{}, err
	}

	var apiResp forecastResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Forecast{}, fmt.Errorf("parse response: %w", err)
	}

	return mapForecast(apiResp, city), nil
}

// callAPI performs one HTTP request against the given endpoint and returns the raw body.
func (c *OpenWeatherClient) callAPI(ctx context.Context, endpoint, city string) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, endpoint, city)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	corrID := extractCorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(endpoint, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(duration)

	if err := c.handleErrorResponse(resp, city); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func (c *OpenWeatherClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "context canceled") {
		return true
	}

	return false
}

func (c *OpenWeatherClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, endpoint, city string) (*http.Request, error) {
	baseURL, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *OpenWeatherClient) handleErrorResponse(resp *http.Response, city string) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrCityNotFound, city)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func mapCurrent(apiResp currentResponse, city string) models.CurrentWeather {
	description := ""
	if len(apiResp.Weather) > 0 {
		description = apiResp.Weather[0].Main
		if apiResp.Weather[0].Description != "" {
			description = titleCase(apiResp.Weather[0].Description)
		}
	}

	displayName := apiResp.Name
	if displayName == "" {
		displayName = city
	}

	ts := time.Now()
	if apiResp.Dt > 0 {
		ts = time.Unix(apiResp.Dt, 0)
	}

	return models.CurrentWeather{
		City:        displayName,
		Country:     apiResp.Sys.Country,
		Temperature: round1(apiResp.Main.Temp),
		FeelsLike:   round1(apiResp.Main.FeelsLike),
		TempMin:     round1(apiResp.Main.TempMin),
		TempMax:     round1(apiResp.Main.TempMax),
		Humidity:    apiResp.Main.Humidity,
		Pressure:    apiResp.Main.Pressure,
		Description: description,
		WindSpeed:   apiResp.Wind.Speed,
		Clouds:      apiResp.Clouds.All,
		Timestamp:   ts,
	}
}

func mapForecast(apiResp forecastResponse, city string) models.Forecast {
	displayName := apiResp.City.Name
	if displayName == "" {
		displayName = city
	}

	entries := make([]models.ForecastEntry, 0, len(apiResp.List))
	for _, item := range apiResp.List {
		description := ""
		if len(item.Weather) > 0 {
			description = item.Weather[0].Main
			if item.Weather[0].Description != "" {
				description = titleCase(item.Weather[0].Description)
			}
		}
		ts := time.Unix(item.Dt, 0)
		entries = append(entries, models.ForecastEntry{
			Timestamp:       ts,
			Date:            ts.Format("2006-01-02"),
			Temperature:     round1(item.Main.Temp),
			FeelsLike:       round1(item.Main.FeelsLike),
			TempMin:         round1(item.Main.TempMin),
			TempMax:         round1(item.Main.TempMax),
			Humidity:        item.Main.Humidity,
			Description:     description,
			WindSpeed:       item.Wind.Speed,
			RainProbability: item.Pop * 100,
		})
	}

	return models.Forecast{
		City:    displayName,
		Country: apiResp.City.Country,
		Entries: entries,
	}
}

// round1 rounds to one decimal place, matching the precision the dashboard displays.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// titleCase uppercases the first letter of each space-separated word,
// e.g. "light rain" -> "Light Rain".
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
			words[i] = string(r)
		}
	}
	return strings.Join(words, " ")
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey issues a probe request to verify the API key is accepted upstream.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, "/weather", "London")
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}

	return nil
}
