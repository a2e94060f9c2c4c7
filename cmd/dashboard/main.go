package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wxdash/weather-dashboard/internal/alerts"
	"github.com/wxdash/weather-dashboard/internal/analyzer"
	"github.com/wxdash/weather-dashboard/internal/cache"
	"github.com/wxdash/weather-dashboard/internal/circuitbreaker"
	"github.com/wxdash/weather-dashboard/internal/client"
	"github.com/wxdash/weather-dashboard/internal/config"
	"github.com/wxdash/weather-dashboard/internal/dashboard"
	httphandler "github.com/wxdash/weather-dashboard/internal/http"
	"github.com/wxdash/weather-dashboard/internal/lifecycle"
	"github.com/wxdash/weather-dashboard/internal/observability"
	"github.com/wxdash/weather-dashboard/internal/service"
)

func main() {
	reportMode := flag.Bool("report", false, "print a console weather report and exit instead of serving HTTP")
	reportCity := flag.String("city", "", "city for -report mode; default is the configured city list")
	compareMode := flag.Bool("compare", false, "with -report, print a multi-city comparison table")
	flag.Parse()

	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenWeatherClientWithRetry(
		cfg.WeatherAPIKey,
		cfg.WeatherAPIURL,
		cfg.WeatherAPITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "weather_api",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("weather_api", from.String(), to.String())
				observability.SetCircuitBreakerStateGauge("weather_api", float64(to))
			},
		})
		weatherClient.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerStateGauge("weather_api", 0)
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold), zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.StaleCacheTTL)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache(cfg.StaleCacheTTL)
		logger.Info("cache backend: in_memory")
	}

	evaluator := alerts.NewEvaluator(cfg.ComfortMinTemp, cfg.ComfortMaxTemp)
	dayAnalyzer := analyzer.New(cfg.ComfortMinTemp, cfg.ComfortMaxTemp)
	weatherService := service.NewWeatherService(weatherClient, cacheSvc, evaluator, dayAnalyzer, service.Options{
		CurrentTTL:      cfg.CacheTTL,
		ForecastTTL:     cfg.ForecastCacheTTL,
		StaleTTL:        cfg.StaleCacheTTL,
		CoalesceEnabled: cfg.CoalesceEnabled,
		CoalesceTimeout: cfg.CoalesceTimeout,
	})

	if *reportMode {
		os.Exit(runReport(weatherService, cfg, *reportCity, *compareMode))
	}

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		RateLimitBurst:         cfg.RateLimitBurst,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		StartTime:              time.Now(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(weatherService, weatherClient, healthConfig, logger, cfg.Cities, cfg.CityMinLength, cfg.CityMaxLength)

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)
	if len(cfg.Cities) > 0 {
		observability.SetTrackedCities(cfg.Cities)
	}

	if cfg.WarmCache && len(cfg.Cities) > 0 {
		warmer := cache.NewCacheWarmer(weatherService, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, cfg.Cities); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
		if cfg.WarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(context.Background(), cfg.Cities, cfg.WarmInterval); err != nil && err != context.Canceled {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	apiRouter := router.PathPrefix("/").Subrouter()
	apiRouter.Use(httphandler.RateLimitMiddleware(limiter))
	apiRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	apiRouter.HandleFunc("/weather/{city}", handler.GetWeather).Methods("GET")
	apiRouter.HandleFunc("/forecast/{city}", handler.GetForecast).Methods("GET")
	apiRouter.HandleFunc("/forecast/{city}/daily", handler.GetDailySummaries).Methods("GET")
	apiRouter.HandleFunc("/alerts/{city}", handler.GetAlerts).Methods("GET")
	apiRouter.HandleFunc("/bestday/{city}", handler.GetBestDay).Methods("GET")
	apiRouter.HandleFunc("/compare", handler.GetCompare).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// runReport prints a console report to stdout and returns the process exit code.
func runReport(svc *service.WeatherService, cfg *config.Config, city string, compare bool) int {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	renderer := dashboard.NewRenderer(svc)

	if compare {
		cities := cfg.Cities
		if city != "" {
			cities = strings.Split(city, ",")
			for i := range cities {
				cities[i] = strings.TrimSpace(cities[i])
			}
		}
		renderer.Comparison(ctx, os.Stdout, cities)
		return 0
	}

	cities := cfg.Cities
	if city != "" {
		cities = []string{city}
	}
	code := 0
	for _, c := range cities {
		if err := renderer.CityReport(ctx, os.Stdout, c); err != nil {
			fmt.Fprintf(os.Stderr, "report for %s: %v\n", c, err)
			code = 1
		}
	}
	return code
}
