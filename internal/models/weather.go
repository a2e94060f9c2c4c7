package models

import "time"

// CurrentWeather is the formatted current-conditions record for a city.
type CurrentWeather struct {
	City        string    `json:"city"`
	Country     string    `json:"country"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feelsLike"`
	TempMin     float64   `json:"tempMin"`
	TempMax     float64   `json:"tempMax"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	Description string    `json:"description"`
	WindSpeed   float64   `json:"windSpeed"`
	Clouds      int       `json:"clouds"`
	Timestamp   time.Time `json:"timestamp"`
	Stale       bool      `json:"stale,omitempty"` // Indicates data served from stale cache
}

// ForecastEntry is a single 3-hourly forecast slot.
type ForecastEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	Date            string    `json:"date"` // YYYY-MM-DD, used for daily grouping
	Temperature     float64   `json:"temperature"`
	FeelsLike       float64   `json:"feelsLike"`
	TempMin         float64   `json:"tempMin"`
	TempMax         float64   `json:"tempMax"`
	Humidity        int       `json:"humidity"`
	Description     string    `json:"description"`
	WindSpeed       float64   `json:"windSpeed"`
	RainProbability float64   `json:"rainProbability"` // percent, 0-100
}

// Forecast holds the full forecast response for a city.
type Forecast struct {
	City    string          `json:"city"`
	Country string          `json:"country"`
	Entries []ForecastEntry `json:"entries"`
	Stale   bool            `json:"stale,omitempty"`
}

// AlertStatus classifies the current temperature relative to the comfort band.
type AlertStatus string

const (
	StatusComfortable AlertStatus = "comfortable"
	StatusTooCold     AlertStatus = "too_cold"
	StatusTooHot      AlertStatus = "too_hot"
)

// AlertSeverity grades how far outside the comfort band conditions are.
type AlertSeverity string

const (
	SeverityNone    AlertSeverity = "none"
	SeverityMedium  AlertSeverity = "medium"
	SeverityHigh    AlertSeverity = "high"
	SeverityExtreme AlertSeverity = "extreme"
)

// DailySummary aggregates the 3-hourly entries of one calendar day.
type DailySummary struct {
	Date            string  `json:"date"`
	TempAvg         float64 `json:"tempAvg"`
	TempMin         float64 `json:"tempMin"`
	TempMax         float64 `json:"tempMax"`
	AvgHumidity     float64 `json:"avgHumidity"`
	MaxWindSpeed    float64 `json:"maxWindSpeed"`
	RainProbability float64 `json:"rainProbability"` // max over the day, percent
	Description     string  `json:"description"`     // most frequent over the day
}

// CurrentAlert is the comfort evaluation of current conditions.
type CurrentAlert struct {
	City        string        `json:"city"`
	Temperature float64       `json:"temperature"`
	Status      AlertStatus   `json:"status"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
}

// DayAlert lists the alerts raised for one forecast day.
type DayAlert struct {
	Date    string   `json:"date"`
	TempMin float64  `json:"tempMin"`
	TempMax float64  `json:"tempMax"`
	Alerts  []string `json:"alerts"`
}

// AlertReport is the full alert view for a city: current conditions evaluated
// against the comfort band, upcoming per-day alerts, and the comfortable days.
type AlertReport struct {
	City            string         `json:"city"`
	ComfortMin      float64        `json:"comfortMin"`
	ComfortMax      float64        `json:"comfortMax"`
	Current         CurrentAlert   `json:"current"`
	Upcoming        []DayAlert     `json:"upcoming"`
	ComfortableDays []DailySummary `json:"comfortableDays"`
}

// DayScore is one forecast day with its suitability score.
type DayScore struct {
	Date    string       `json:"date"`
	Score   float64      `json:"score"`
	Summary DailySummary `json:"summary"`
}

// BestDay is the recommendation produced by the analyzer.
type BestDay struct {
	City      string       `json:"city"`
	Date      string       `json:"date"`
	Score     float64      `json:"score"`
	Summary   DailySummary `json:"summary"`
	Reasoning []string     `json:"reasoning"`
	Ranking   []DayScore   `json:"ranking"`
}

// CityWeather is one row of a multi-city comparison. Error is set when the
// city's weather could not be fetched; Weather is nil in that case.
type CityWeather struct {
	City    string          `json:"city"`
	Weather *CurrentWeather `json:"weather,omitempty"`
	Error   string          `json:"error,omitempty"`
}
