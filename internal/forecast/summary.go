package forecast

import (
	"math"

	"github.com/wxdash/weather-dashboard/internal/models"
)

// Summarize groups 3-hourly forecast entries by calendar day and produces one
// summary per day, in chronological order. Temperatures are averaged, humidity
// averaged, wind and rain probability reported as the day's maximum, and the
// description is the most frequent one across the day's slots.
func Summarize(entries []models.ForecastEntry) []models.DailySummary {
	if len(entries) == 0 {
		return nil
	}

	type dayAccum struct {
		tempSum     float64
		tempMin     float64
		tempMax     float64
		humiditySum float64
		maxWind     float64
		maxRain     float64
		count       int
		descCounts  map[string]int
		descOrder   []string
	}

	byDate := make(map[string]*dayAccum)
	var order []string

	for _, e := range entries {
		acc, ok := byDate[e.Date]
		if !ok {
			acc = &dayAccum{
				tempMin:    e.Temperature,
				tempMax:    e.Temperature,
				descCounts: make(map[string]int),
			}
			byDate[e.Date] = acc
			order = append(order, e.Date)
		}
		acc.tempSum += e.Temperature
		if e.Temperature < acc.tempMin {
			acc.tempMin = e.Temperature
		}
		if e.Temperature > acc.tempMax {
			acc.tempMax = e.Temperature
		}
		acc.humiditySum += float64(e.Humidity)
		if e.WindSpeed > acc.maxWind {
			acc.maxWind = e.WindSpeed
		}
		if e.RainProbability > acc.maxRain {
			acc.maxRain = e.RainProbability
		}
		if _, seen := acc.descCounts[e.Description]; !seen {
			acc.descOrder = append(acc.descOrder, e.Description)
		}
		acc.descCounts[e.Description]++
		acc.count++
	}

	summaries := make([]models.DailySummary, 0, len(order))
	for _, date := range order {
		acc := byDate[date]
		summaries = append(summaries, models.DailySummary{
			Date:            date,
			TempAvg:         round1(acc.tempSum / float64(acc.count)),
			TempMin:         round1(acc.tempMin),
			TempMax:         round1(acc.tempMax),
			AvgHumidity:     round1(acc.humiditySum / float64(acc.count)),
			MaxWindSpeed:    round1(acc.maxWind),
			RainProbability: round1(acc.maxRain),
			Description:     mostFrequent(acc.descCounts, acc.descOrder),
		})
	}
	return summaries
}

// mostFrequent returns the description with the highest count; ties resolve to
// the one that appeared first in the day.
func mostFrequent(counts map[string]int, order []string) string {
	best := ""
	bestCount := 0
	for _, desc := range order {
		if counts[desc] > bestCount {
			best = desc
			bestCount = counts[desc]
		}
	}
	return best
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
