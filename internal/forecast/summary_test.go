package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wxdash/weather-dashboard/internal/models"
)

func entry(date string, hour int, temp float64, humidity int, wind, rain float64, desc string) models.ForecastEntry {
	ts, _ := time.Parse("2006-01-02", date)
	return models.ForecastEntry{
		Timestamp:       ts.Add(time.Duration(hour) * time.Hour),
		Date:            date,
		Temperature:     temp,
		Humidity:        humidity,
		WindSpeed:       wind,
		RainProbability: rain,
		Description:     desc,
	}
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Nil(t, Summarize(nil))
	assert.Nil(t, Summarize([]models.ForecastEntry{}))
}

func TestSummarizeSingleDay(t *testing.T) {
	entries := []models.ForecastEntry{
		entry("2026-03-01", 6, 10.0, 80, 3.0, 20, "light rain"),
		entry("2026-03-01", 12, 16.0, 60, 5.5, 40, "scattered clouds"),
		entry("2026-03-01", 18, 13.0, 70, 4.0, 10, "scattered clouds"),
	}

	days := Summarize(entries)
	require.Len(t, days, 1)

	day := days[0]
	assert.Equal(t, "2026-03-01", day.Date)
	assert.InDelta(t, 13.0, day.TempAvg, 0.01)
	assert.InDelta(t, 10.0, day.TempMin, 0.01)
	assert.InDelta(t, 16.0, day.TempMax, 0.01)
	assert.InDelta(t, 70.0, day.AvgHumidity, 0.01)
	assert.InDelta(t, 5.5, day.MaxWindSpeed, 0.01)
	assert.InDelta(t, 40.0, day.RainProbability, 0.01)
	assert.Equal(t, "scattered clouds", day.Description)
}

func TestSummarizePreservesDayOrder(t *testing.T) {
	entries := []models.ForecastEntry{
		entry("2026-03-01", 12, 12, 60, 2, 0, "clear sky"),
		entry("2026-03-02", 12, 14, 60, 2, 0, "clear sky"),
		entry("2026-03-03", 12, 16, 60, 2, 0, "clear sky"),
	}

	days := Summarize(entries)
	require.Len(t, days, 3)
	assert.Equal(t, "2026-03-01", days[0].Date)
	assert.Equal(t, "2026-03-02", days[1].Date)
	assert.Equal(t, "2026-03-03", days[2].Date)
}

func TestSummarizeAveragesAreRounded(t *testing.T) {
	entries := []models.ForecastEntry{
		entry("2026-03-01", 6, 10.0, 61, 2, 0, "mist"),
		entry("2026-03-01", 12, 10.1, 62, 2, 0, "mist"),
		entry("2026-03-01", 18, 10.1, 62, 2, 0, "mist"),
	}

	days := Summarize(entries)
	require.Len(t, days, 1)
	// 30.2/3 = 10.0666... rounds to 10.1; 185/3 = 61.666... rounds to 61.7.
	assert.Equal(t, 10.1, days[0].TempAvg)
	assert.Equal(t, 61.7, days[0].AvgHumidity)
}

func TestMostFrequentDescriptionTieGoesToFirstSeen(t *testing.T) {
	entries := []models.ForecastEntry{
		entry("2026-03-01", 6, 10, 60, 2, 0, "light rain"),
		entry("2026-03-01", 9, 10, 60, 2, 0, "overcast clouds"),
		entry("2026-03-01", 12, 10, 60, 2, 0, "overcast clouds"),
		entry("2026-03-01", 15, 10, 60, 2, 0, "light rain"),
	}

	days := Summarize(entries)
	require.Len(t, days, 1)
	assert.Equal(t, "light rain", days[0].Description)
}
