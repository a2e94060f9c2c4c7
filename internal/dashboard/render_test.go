package dashboard

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/wxdash/weather-dashboard/internal/alerts"
	"github.com/wxdash/weather-dashboard/internal/analyzer"
	"github.com/wxdash/weather-dashboard/internal/cache"
	"github.com/wxdash/weather-dashboard/internal/client"
	"github.com/wxdash/weather-dashboard/internal/models"
	"github.com/wxdash/weather-dashboard/internal/service"
)

type stubClient struct {
	weather  models.CurrentWeather
	forecast models.Forecast
	err      error
}

func (c *stubClient) GetCurrentWeather(_ context.Context, city string) (models.CurrentWeather, error) {
	if c.err != nil {
		return models.CurrentWeather{}, c.err
	}
	w := c.weather
	w.City = city
	return w, nil
}

func (c *stubClient) GetForecast(_ context.Context, city string) (models.Forecast, error) {
	if c.err != nil {
		return models.Forecast{}, c.err
	}
	f := c.forecast
	f.City = city
	return f, nil
}

func (c *stubClient) ValidateAPIKey(context.Context) error { return c.err }

func newTestRenderer(c client.WeatherClient) *Renderer {
	svc := service.NewWeatherService(
		c,
		cache.NewInMemoryCache(time.Hour),
		alerts.NewEvaluator(15, 25),
		analyzer.New(15, 25),
		service.Options{CurrentTTL: time.Minute, ForecastTTL: time.Minute, StaleTTL: time.Hour},
	)
	return NewRenderer(svc)
}

func forecastFixture() models.Forecast {
	entry := func(date string, hour int, temp float64) models.ForecastEntry {
		ts, _ := time.Parse("2006-01-02", date)
		return models.ForecastEntry{
			Timestamp:       ts.Add(time.Duration(hour) * time.Hour),
			Date:            date,
			Temperature:     temp,
			TempMin:         temp - 1,
			TempMax:         temp + 1,
			Humidity:        55,
			Description:     "clear sky",
			WindSpeed:       3,
			RainProbability: 5,
		}
	}
	return models.Forecast{
		Country: "GB",
		Entries: []models.ForecastEntry{
			entry("2026-03-01", 9, 18),
			entry("2026-03-01", 15, 22),
			entry("2026-03-02", 9, 12),
			entry("2026-03-02", 15, 14),
		},
	}
}

// TestCityReport verifies a full report renders every section for a city with
// a current reading and forecast.
func TestCityReport(t *testing.T) {
	// Arrange
	r := newTestRenderer(&stubClient{
		weather: models.CurrentWeather{
			Country:     "GB",
			Temperature: 18.5,
			FeelsLike:   17.9,
			TempMin:     16,
			TempMax:     20,
			Humidity:    60,
			Pressure:    1013,
			Description: "light rain",
			WindSpeed:   4.2,
		},
		forecast: forecastFixture(),
	})
	var buf bytes.Buffer

	// Act
	err := r.CityReport(context.Background(), &buf, "London")

	// Assert
	if err != nil {
		t.Fatalf("CityReport() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"WEATHER REPORT: London, GB",
		"Temperature: 18.5°C",
		"5-DAY FORECAST",
		"2026-03-01",
		"2026-03-02",
		"ALERTS",
		"BEST DAY",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n---\n%s", want, out)
		}
	}
}

// TestCityReport_UpstreamFailure verifies the report fails fast when the
// current reading cannot be fetched.
func TestCityReport_UpstreamFailure(t *testing.T) {
	r := newTestRenderer(&stubClient{err: client.ErrUpstreamFailure})
	var buf bytes.Buffer

	err := r.CityReport(context.Background(), &buf, "London")
	if err == nil {
		t.Fatal("CityReport() expected error when current weather unavailable, got nil")
	}
	if !strings.Contains(err.Error(), "London") {
		t.Errorf("CityReport() error = %v, want city named", err)
	}
}

// TestComparison verifies the comparison table includes a row per city and
// reports per-city failures inline.
func TestComparison(t *testing.T) {
	// Arrange: seed the cache so London resolves, then fail the upstream so
	// Paris shows an error row.
	stub := &stubClient{
		weather: models.CurrentWeather{
			Country:     "GB",
			Temperature: 18.5,
			Description: "clear sky",
		},
	}
	r := newTestRenderer(stub)
	if _, err := r.svc.Current(context.Background(), "London"); err != nil {
		t.Fatalf("seed London: %v", err)
	}
	stub.err = client.ErrUpstreamFailure
	var buf bytes.Buffer

	// Act
	r.Comparison(context.Background(), &buf, []string{"London", "Paris"})

	// Assert
	out := buf.String()
	if !strings.Contains(out, "CITY COMPARISON") {
		t.Errorf("output missing header\n---\n%s", out)
	}
	if !strings.Contains(out, "London") || !strings.Contains(out, "18.5°C") {
		t.Errorf("output missing London row\n---\n%s", out)
	}
	if !strings.Contains(out, "Paris") {
		t.Errorf("output missing Paris error row\n---\n%s", out)
	}
}
