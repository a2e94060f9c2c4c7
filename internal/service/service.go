package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wxdash/weather-dashboard/internal/alerts"
	"github.com/wxdash/weather-dashboard/internal/analyzer"
	"github.com/wxdash/weather-dashboard/internal/cache"
	"github.com/wxdash/weather-dashboard/internal/client"
	"github.com/wxdash/weather-dashboard/internal/forecast"
	"github.com/wxdash/weather-dashboard/internal/models"
	"github.com/wxdash/weather-dashboard/internal/observability"
)

// Options configures a WeatherService.
type Options struct {
	CurrentTTL      time.Duration
	ForecastTTL     time.Duration
	StaleTTL        time.Duration // Maximum age for stale cache fallback (0 = disabled)
	CoalesceEnabled bool
	CoalesceTimeout time.Duration
}

// WeatherService orchestrates weather data retrieval using cache-aside with
// upstream API fallback, and composes the dashboard views (daily summaries,
// alerts, best-day recommendation, multi-city comparison) on top of it.
type WeatherService struct {
	client            client.WeatherClient
	cache             cache.Cache
	opts              Options
	stampedeTracker   *stampedeTracker
	currentCoalescer  *requestCoalescer[models.CurrentWeather]  // nil if disabled
	forecastCoalescer *requestCoalescer[models.Forecast]        // nil if disabled
	evaluator         *alerts.Evaluator
	analyzer          *analyzer.Analyzer
}

// NewWeatherService creates a WeatherService with the provided dependencies.
// evaluator and analyzer carry the configured comfort and preferred bands.
func NewWeatherService(weatherClient client.WeatherClient, cacheSvc cache.Cache, evaluator *alerts.Evaluator, dayAnalyzer *analyzer.Analyzer, opts Options) *WeatherService {
	s := &WeatherService{
		client:          weatherClient,
		cache:           cacheSvc,
		opts:            opts,
		stampedeTracker: newStampedeTracker(),
		evaluator:       evaluator,
		analyzer:        dayAnalyzer,
	}
	if opts.CoalesceEnabled && opts.CoalesceTimeout > 0 {
		s.currentCoalescer = newRequestCoalescer[models.CurrentWeather](opts.CoalesceTimeout)
		s.forecastCoalescer = newRequestCoalescer[models.Forecast](opts.CoalesceTimeout)
	}
	return s
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Current retrieves current conditions for the city using cache-aside: cache
// first, upstream on miss, stale cache when upstream fails.
func (s *WeatherService) Current(ctx context.Context, city string) (models.CurrentWeather, error) {
	key := "current:" + normalizeCity(city)
	observability.RecordWeatherQuery(city)
	return fetchCached(ctx, s, key, city, "current", s.opts.CurrentTTL, s.currentCoalescer,
		func() (models.CurrentWeather, error) {
			return s.client.GetCurrentWeather(ctx, normalizeCity(city))
		},
		func(w *models.CurrentWeather) { w.Stale = true },
	)
}

// Forecast retrieves the 5-day forecast for the city with the same cache-aside flow.
func (s *WeatherService) Forecast(ctx context.Context, city string) (models.Forecast, error) {
	key := "forecast:" + normalizeCity(city)
	return fetchCached(ctx, s, key, city, "forecast", s.opts.ForecastTTL, s.forecastCoalescer,
		func() (models.Forecast, error) {
			return s.client.GetForecast(ctx, normalizeCity(city))
		},
		func(f *models.Forecast) { f.Stale = true },
	)
}

// DailySummaries retrieves the forecast and aggregates it into one summary per day.
func (s *WeatherService) DailySummaries(ctx context.Context, city string) ([]models.DailySummary, error) {
	fc, err := s.Forecast(ctx, city)
	if err != nil {
		return nil, err
	}
	return forecast.Summarize(fc.Entries), nil
}

// Alerts builds the full alert report for a city: current conditions checked
// against the comfort band, upcoming per-day alerts, and comfortable days.
func (s *WeatherService) Alerts(ctx context.Context, city string) (models.AlertReport, error) {
	current, err := s.Current(ctx, city)
	if err != nil {
		return models.AlertReport{}, err
	}
	days, err := s.DailySummaries(ctx, city)
	if err != nil {
		return models.AlertReport{}, err
	}

	minTemp, maxTemp := s.evaluator.ComfortBand()
	return models.AlertReport{
		City:            current.City,
		ComfortMin:      minTemp,
		ComfortMax:      maxTemp,
		Current:         s.evaluator.EvaluateCurrent(current),
		Upcoming:        s.evaluator.EvaluateForecast(days),
		ComfortableDays: s.evaluator.ComfortableDays(days),
	}, nil
}

// BestDay scores the forecast days and returns the recommendation with ranking.
func (s *WeatherService) BestDay(ctx context.Context, city string) (models.BestDay, error) {
	fc, err := s.Forecast(ctx, city)
	if err != nil {
		return models.BestDay{}, err
	}
	days := forecast.Summarize(fc.Entries)
	return s.analyzer.BestDay(fc.City, days)
}

// Compare fetches current conditions for each city concurrently. Per-city
// failures become error rows; the comparison itself never fails.
func (s *WeatherService) Compare(ctx context.Context, cities []string) []models.CityWeather {
	rows := make([]models.CityWeather, len(cities))
	var wg sync.WaitGroup
	for i, city := range cities {
		i, city := i, city
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := s.Current(ctx, city)
			if err != nil {
				rows[i] = models.CityWeather{City: city, Error: err.Error()}
				return
			}
			rows[i] = models.CityWeather{City: w.City, Weather: &w}
		}()
	}
	wg.Wait()
	return rows
}

// fetchCached implements cache-aside for one payload type: cache get, stampede
// tracking, optional coalescing on miss, stale fallback on upstream failure,
// cache set on success. markStale flags the payload when served past its TTL.
func fetchCached[T any](
	ctx context.Context,
	s *WeatherService,
	key, city, cacheType string,
	ttl time.Duration,
	coalescer *requestCoalescer[T],
	fetch func() (T, error),
	markStale func(*T),
) (T, error) {
	var zero T
	start := time.Now()
	logger := loggerFromContext(ctx)

	getStart := time.Now()
	raw, ok, err := s.cache.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
	} else if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
			observability.CacheHitsTotal.WithLabelValues(cacheType).Inc()
			if logger != nil {
				logger.Debug("cache hit", zap.String("city", city), zap.String("cacheType", cacheType))
				logger.Debug("weather served", zap.String("city", city), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
			}
			return cached, nil
		}
		observability.CacheErrorsTotal.WithLabelValues("get", "decode").Inc()
	}

	concurrentMisses := s.stampedeTracker.RecordMiss(key)
	defer s.stampedeTracker.RecordResolved(key)
	cityLabel := observability.MetricCityLabel(city)
	if concurrentMisses > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(cityLabel).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(cityLabel).Observe(float64(concurrentMisses))
	}

	if logger != nil {
		logger.Debug("cache miss, fetching upstream", zap.String("city", city), zap.String("cacheType", cacheType))
	}

	// Coalesce concurrent upstream calls for the same key when enabled.
	var data T
	var upstreamErr error
	if coalescer != nil {
		coalesceStart := time.Now()
		data, upstreamErr = coalescer.GetOrDo(ctx, key, fetch)
		coalesceWait := time.Since(coalesceStart)
		if upstreamErr == nil {
			// A non-trivial wait means we most likely piggy-backed on another
			// caller's upstream request (approximate).
			if coalesceWait > 10*time.Millisecond {
				observability.RequestCoalescingHitsTotal.WithLabelValues(cityLabel).Inc()
			}
			observability.RequestCoalescingWaitSeconds.Observe(coalesceWait.Seconds())
		}
	} else {
		data, upstreamErr = fetch()
	}
	if upstreamErr != nil {
		// Upstream failed; try stale cache if enabled.
		if s.opts.StaleTTL > 0 {
			staleRaw, age, ok, staleErr := s.cache.GetStale(ctx, key, s.opts.StaleTTL)
			if staleErr == nil && ok {
				var stale T
				if err := json.Unmarshal(staleRaw, &stale); err == nil {
					observability.StaleCacheServesTotal.WithLabelValues(cityLabel).Inc()
					observability.StaleCacheAgeSeconds.Observe(age.Seconds())
					markStale(&stale)
					if logger != nil {
						logger.Info("serving stale cache", zap.String("city", city), zap.Duration("age", age))
					}
					return stale, nil
				}
			}
		}
		return zero, fmt.Errorf("fetch %s for %s: %w", cacheType, normalizeCity(city), upstreamErr)
	}

	setStart := time.Now()
	encoded, err := json.Marshal(data)
	if err == nil {
		err = s.cache.Set(ctx, key, encoded, ttl)
	}
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		if logger != nil {
			logger.Warn("cache set failed", zap.String("city", city), zap.Error(err))
		}
	} else {
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
	}
	if logger != nil {
		logger.Debug("weather served", zap.String("city", city), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	}
	return data, nil
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}

// normalizeCity normalizes city names by trimming whitespace and lowercasing.
// Ensures consistent cache keys and API requests regardless of input format.
func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
