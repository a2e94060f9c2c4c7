package analyzer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wxdash/weather-dashboard/internal/models"
)

// ErrNoForecast is returned when there is no forecast data to analyze.
var ErrNoForecast = errors.New("no forecast data available")

// Analyzer scores forecast days for outdoor suitability against a preferred
// temperature band. Scores range from 0 (worst) to 100 (perfect).
type Analyzer struct {
	preferredMin float64
	preferredMax float64
}

// New creates an Analyzer with the given preferred temperature band (Celsius).
func New(preferredMin, preferredMax float64) *Analyzer {
	return &Analyzer{preferredMin: preferredMin, preferredMax: preferredMax}
}

// ScoreDay calculates a 0-100 score for a day. Starts at 100 and subtracts
// penalties for temperature outside the preferred band (up to 40), rain
// probability (up to 30), wind (up to 15) and humidity (up to 15).
func (a *Analyzer) ScoreDay(day models.DailySummary) float64 {
	score := 100.0

	ideal := (a.preferredMin + a.preferredMax) / 2
	switch {
	case day.TempAvg < a.preferredMin:
		diff := a.preferredMin - day.TempAvg
		score -= min(diff*2, 40)
	case day.TempAvg > a.preferredMax:
		diff := day.TempAvg - a.preferredMax
		score -= min(diff*2, 40)
	default:
		// Within band; small penalty for distance from the ideal midpoint.
		diff := day.TempAvg - ideal
		if diff < 0 {
			diff = -diff
		}
		score -= diff
	}

	switch {
	case day.RainProbability > 70:
		score -= 30
	case day.RainProbability > 50:
		score -= 20
	case day.RainProbability > 30:
		score -= 10
	case day.RainProbability > 10:
		score -= 5
	}

	switch {
	case day.MaxWindSpeed > 15:
		score -= 15
	case day.MaxWindSpeed > 10:
		score -= 10
	case day.MaxWindSpeed > 7:
		score -= 5
	}

	switch {
	case day.AvgHumidity > 85:
		score -= 15
	case day.AvgHumidity > 70:
		score -= 8
	case day.AvgHumidity < 30:
		score -= 5
	}

	if score < 0 {
		score = 0
	}
	return score
}

// Rank scores every day and returns them sorted best-first. The sort is
// stable, so equal scores keep chronological order.
func (a *Analyzer) Rank(days []models.DailySummary) []models.DayScore {
	scored := make([]models.DayScore, 0, len(days))
	for _, day := range days {
		scored = append(scored, models.DayScore{
			Date:    day.Date,
			Score:   a.ScoreDay(day),
			Summary: day,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// BestDay picks the highest-scoring day and attaches reasoning and the full
// ranking. Ties resolve to the earliest date.
func (a *Analyzer) BestDay(city string, days []models.DailySummary) (models.BestDay, error) {
	if len(days) == 0 {
		return models.BestDay{}, ErrNoForecast
	}

	ranking := a.Rank(days)
	best := ranking[0]

	return models.BestDay{
		City:      city,
		Date:      best.Date,
		Score:     best.Score,
		Summary:   best.Summary,
		Reasoning: a.reasoning(best.Summary, best.Score),
		Ranking:   ranking,
	}, nil
}

// reasoning produces human-readable explanations for a day's score.
func (a *Analyzer) reasoning(day models.DailySummary, score float64) []string {
	var reasons []string

	switch {
	case day.TempAvg >= a.preferredMin && day.TempAvg <= a.preferredMax:
		reasons = append(reasons, fmt.Sprintf("Comfortable temperature: %.1f°C", day.TempAvg))
	case day.TempAvg < a.preferredMin:
		reasons = append(reasons, fmt.Sprintf("Cooler than ideal: %.1f°C", day.TempAvg))
	default:
		reasons = append(reasons, fmt.Sprintf("Warmer than ideal: %.1f°C", day.TempAvg))
	}

	switch {
	case day.RainProbability < 10:
		reasons = append(reasons, fmt.Sprintf("Very low rain chance: %.0f%%", day.RainProbability))
	case day.RainProbability < 30:
		reasons = append(reasons, fmt.Sprintf("Low rain chance: %.0f%%", day.RainProbability))
	case day.RainProbability < 50:
		reasons = append(reasons, fmt.Sprintf("Moderate rain chance: %.0f%%", day.RainProbability))
	default:
		reasons = append(reasons, fmt.Sprintf("High rain chance: %.0f%%", day.RainProbability))
	}

	switch {
	case day.MaxWindSpeed < 5:
		reasons = append(reasons, fmt.Sprintf("Calm winds: %.1f m/s", day.MaxWindSpeed))
	case day.MaxWindSpeed < 10:
		reasons = append(reasons, fmt.Sprintf("Light breeze: %.1f m/s", day.MaxWindSpeed))
	default:
		reasons = append(reasons, fmt.Sprintf("Windy conditions: %.1f m/s", day.MaxWindSpeed))
	}

	switch {
	case score >= 90:
		reasons = append(reasons, "Perfect conditions for outdoor activities")
	case score >= 75:
		reasons = append(reasons, "Great day for being outside")
	case score >= 60:
		reasons = append(reasons, "Good day, though not perfect")
	case score >= 40:
		reasons = append(reasons, "Fair day with some challenges")
	default:
		reasons = append(reasons, "Challenging weather conditions")
	}

	return reasons
}
