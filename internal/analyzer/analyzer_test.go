package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wxdash/weather-dashboard/internal/models"
)

func TestScoreDay(t *testing.T) {
	a := New(15, 25)

	tests := []struct {
		name string
		day  models.DailySummary
		want float64
	}{
		{
			name: "perfect day at midpoint",
			day:  models.DailySummary{TempAvg: 20, RainProbability: 5, MaxWindSpeed: 3, AvgHumidity: 50},
			want: 100,
		},
		{
			name: "in band away from midpoint",
			day:  models.DailySummary{TempAvg: 23, RainProbability: 5, MaxWindSpeed: 3, AvgHumidity: 50},
			want: 97,
		},
		{
			name: "below band",
			day:  models.DailySummary{TempAvg: 10, RainProbability: 5, MaxWindSpeed: 3, AvgHumidity: 50},
			want: 90, // -(15-10)*2
		},
		{
			name: "temperature penalty capped",
			day:  models.DailySummary{TempAvg: -20, RainProbability: 5, MaxWindSpeed: 3, AvgHumidity: 50},
			want: 60,
		},
		{
			name: "rainy day",
			day:  models.DailySummary{TempAvg: 20, RainProbability: 80, MaxWindSpeed: 3, AvgHumidity: 50},
			want: 70,
		},
		{
			name: "moderate rain",
			day:  models.DailySummary{TempAvg: 20, RainProbability: 40, MaxWindSpeed: 3, AvgHumidity: 50},
			want: 90,
		},
		{
			name: "windy",
			day:  models.DailySummary{TempAvg: 20, RainProbability: 5, MaxWindSpeed: 12, AvgHumidity: 50},
			want: 90,
		},
		{
			name: "humid",
			day:  models.DailySummary{TempAvg: 20, RainProbability: 5, MaxWindSpeed: 3, AvgHumidity: 90},
			want: 85,
		},
		{
			name: "very dry",
			day:  models.DailySummary{TempAvg: 20, RainProbability: 5, MaxWindSpeed: 3, AvgHumidity: 20},
			want: 95,
		},
		{
			name: "everything bad clamps at zero",
			day:  models.DailySummary{TempAvg: -30, RainProbability: 95, MaxWindSpeed: 20, AvgHumidity: 95},
			want: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, a.ScoreDay(tc.day), 0.01)
		})
	}
}

func TestRankOrdersBestFirst(t *testing.T) {
	a := New(15, 25)

	days := []models.DailySummary{
		{Date: "2026-03-01", TempAvg: 5, RainProbability: 80, MaxWindSpeed: 16, AvgHumidity: 90},
		{Date: "2026-03-02", TempAvg: 20, RainProbability: 5, MaxWindSpeed: 3, AvgHumidity: 50},
		{Date: "2026-03-03", TempAvg: 22, RainProbability: 40, MaxWindSpeed: 8, AvgHumidity: 60},
	}

	ranked := a.Rank(days)
	require.Len(t, ranked, 3)
	assert.Equal(t, "2026-03-02", ranked[0].Date)
	assert.Equal(t, "2026-03-03", ranked[1].Date)
	assert.Equal(t, "2026-03-01", ranked[2].Date)
	assert.GreaterOrEqual(t, ranked[0].Score, ranked[1].Score)
	assert.GreaterOrEqual(t, ranked[1].Score, ranked[2].Score)
}

func TestRankTiesKeepChronologicalOrder(t *testing.T) {
	a := New(15, 25)

	same := models.DailySummary{TempAvg: 20, RainProbability: 5, MaxWindSpeed: 3, AvgHumidity: 50}
	d1, d2 := same, same
	d1.Date = "2026-03-01"
	d2.Date = "2026-03-02"

	ranked := a.Rank([]models.DailySummary{d1, d2})
	require.Len(t, ranked, 2)
	assert.Equal(t, "2026-03-01", ranked[0].Date)
}

func TestBestDay(t *testing.T) {
	a := New(15, 25)

	days := []models.DailySummary{
		{Date: "2026-03-01", TempAvg: 8, RainProbability: 60, MaxWindSpeed: 12, AvgHumidity: 80},
		{Date: "2026-03-02", TempAvg: 19, RainProbability: 5, MaxWindSpeed: 2, AvgHumidity: 55},
	}

	best, err := a.BestDay("London", days)
	require.NoError(t, err)
	assert.Equal(t, "London", best.City)
	assert.Equal(t, "2026-03-02", best.Date)
	assert.Len(t, best.Ranking, 2)
	assert.NotEmpty(t, best.Reasoning)
}

func TestBestDayNoForecast(t *testing.T) {
	a := New(15, 25)

	_, err := a.BestDay("London", nil)
	assert.ErrorIs(t, err, ErrNoForecast)
}
