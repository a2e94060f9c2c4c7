package alerts

import (
	"fmt"

	"github.com/wxdash/weather-dashboard/internal/models"
)

// Thresholds for conditions that are flagged regardless of the comfort band.
const (
	freezingTemp    = 0.0
	extremeHeatTemp = 35.0
	largeSwing      = 15.0
	// A temperature more than this far outside the band is high severity.
	highSeverityDelta = 10.0
)

// Evaluator checks weather against a configured comfort band.
type Evaluator struct {
	minComfortable float64
	maxComfortable float64
}

// NewEvaluator creates an Evaluator for the given comfort band (Celsius).
func NewEvaluator(minTemp, maxTemp float64) *Evaluator {
	return &Evaluator{minComfortable: minTemp, maxComfortable: maxTemp}
}

// ComfortBand returns the configured comfort band.
func (e *Evaluator) ComfortBand() (min, max float64) {
	return e.minComfortable, e.maxComfortable
}

// EvaluateCurrent classifies the current temperature against the comfort band.
// Temperatures below freezing or above the extreme-heat threshold escalate
// severity to extreme regardless of the band.
func (e *Evaluator) EvaluateCurrent(w models.CurrentWeather) models.CurrentAlert {
	temp := w.Temperature
	alert := models.CurrentAlert{
		City:        w.City,
		Temperature: temp,
		Status:      models.StatusComfortable,
		Severity:    models.SeverityNone,
		Message:     "Temperature is comfortable",
	}

	switch {
	case temp < e.minComfortable:
		diff := e.minComfortable - temp
		alert.Status = models.StatusTooCold
		alert.Severity = models.SeverityMedium
		if diff > highSeverityDelta {
			alert.Severity = models.SeverityHigh
		}
		alert.Message = fmt.Sprintf("COLD ALERT: %.1f°C is %.1f°C below comfortable range", temp, diff)
	case temp > e.maxComfortable:
		diff := temp - e.maxComfortable
		alert.Status = models.StatusTooHot
		alert.Severity = models.SeverityMedium
		if diff > highSeverityDelta {
			alert.Severity = models.SeverityHigh
		}
		alert.Message = fmt.Sprintf("HEAT ALERT: %.1f°C is %.1f°C above comfortable range", temp, diff)
	}

	if temp < freezingTemp {
		alert.Severity = models.SeverityExtreme
		alert.Message = fmt.Sprintf("EXTREME COLD: %.1f°C - freezing conditions", temp)
	} else if temp > extremeHeatTemp {
		alert.Severity = models.SeverityExtreme
		alert.Message = fmt.Sprintf("EXTREME HEAT: %.1f°C - very hot conditions", temp)
	}

	return alert
}

// EvaluateForecast scans daily summaries for upcoming alerts: morning cold,
// afternoon heat, freezing or extreme conditions, and large temperature
// swings. Days without alerts are omitted.
func (e *Evaluator) EvaluateForecast(days []models.DailySummary) []models.DayAlert {
	var out []models.DayAlert
	for _, day := range days {
		dayAlert := models.DayAlert{
			Date:    day.Date,
			TempMin: day.TempMin,
			TempMax: day.TempMax,
		}

		if day.TempMin < e.minComfortable {
			diff := e.minComfortable - day.TempMin
			dayAlert.Alerts = append(dayAlert.Alerts,
				fmt.Sprintf("Morning cold: %.1f°C (%.1f°C below comfortable)", day.TempMin, diff))
		}
		if day.TempMax > e.maxComfortable {
			diff := day.TempMax - e.maxComfortable
			dayAlert.Alerts = append(dayAlert.Alerts,
				fmt.Sprintf("Afternoon heat: %.1f°C (%.1f°C above comfortable)", day.TempMax, diff))
		}
		if day.TempMin < freezingTemp {
			dayAlert.Alerts = append(dayAlert.Alerts, "Freezing conditions expected")
		}
		if day.TempMax > extremeHeatTemp {
			dayAlert.Alerts = append(dayAlert.Alerts, "Extreme heat expected")
		}
		if swing := day.TempMax - day.TempMin; swing > largeSwing {
			dayAlert.Alerts = append(dayAlert.Alerts,
				fmt.Sprintf("Large temperature swing: %.1f°C variation", swing))
		}

		if len(dayAlert.Alerts) > 0 {
			out = append(out, dayAlert)
		}
	}
	return out
}

// ComfortableDays filters daily summaries to those whose average sits inside
// the comfort band and whose extremes stay within 5°C of it.
func (e *Evaluator) ComfortableDays(days []models.DailySummary) []models.DailySummary {
	var out []models.DailySummary
	for _, day := range days {
		if day.TempAvg < e.minComfortable || day.TempAvg > e.maxComfortable {
			continue
		}
		if day.TempMin < e.minComfortable-5 || day.TempMax > e.maxComfortable+5 {
			continue
		}
		out = append(out, day)
	}
	return out
}
