// Package dashboard renders weather reports as plain text for console use.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/wxdash/weather-dashboard/internal/models"
	"github.com/wxdash/weather-dashboard/internal/service"
)

// Renderer writes text reports built from the service layer.
type Renderer struct {
	svc *service.WeatherService
}

// NewRenderer returns a Renderer backed by the given service.
func NewRenderer(svc *service.WeatherService) *Renderer {
	return &Renderer{svc: svc}
}

// CityReport writes the full report for one city: current conditions, the
// daily forecast table, alerts, and the best-day recommendation. Sections
// that fail independently are reported inline rather than aborting the
// whole report.
func (r *Renderer) CityReport(ctx context.Context, w io.Writer, city string) error {
	current, err := r.svc.Current(ctx, city)
	if err != nil {
		return fmt.Errorf("current weather for %s: %w", city, err)
	}
	writeHeader(w, fmt.Sprintf("WEATHER REPORT: %s, %s", current.City, current.Country))
	writeCurrent(w, current)

	days, err := r.svc.DailySummaries(ctx, city)
	if err != nil {
		fmt.Fprintf(w, "\nForecast unavailable: %v\n", err)
		return nil
	}
	writeHeader(w, "5-DAY FORECAST")
	writeDailyTable(w, days)

	report, err := r.svc.Alerts(ctx, city)
	if err == nil {
		writeHeader(w, "ALERTS")
		writeAlerts(w, report)
	}

	best, err := r.svc.BestDay(ctx, city)
	if err == nil {
		writeHeader(w, "BEST DAY")
		writeBestDay(w, best)
	}
	return nil
}

// Comparison writes a side-by-side table of current conditions for each city.
func (r *Renderer) Comparison(ctx context.Context, w io.Writer, cities []string) {
	rows := r.svc.Compare(ctx, cities)
	writeHeader(w, "CITY COMPARISON")

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CITY\tTEMP\tFEELS\tHUMIDITY\tWIND\tCONDITIONS")
	for _, row := range rows {
		if row.Error != "" {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%s\n", row.City, row.Error)
			continue
		}
		cw := row.Weather
		fmt.Fprintf(tw, "%s\t%.1f°C\t%.1f°C\t%d%%\t%.1f m/s\t%s\n",
			cw.City, cw.Temperature, cw.FeelsLike, cw.Humidity, cw.WindSpeed, cw.Description)
	}
	_ = tw.Flush()
}

func writeHeader(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("=", len(title)))
}

func writeCurrent(w io.Writer, cw models.CurrentWeather) {
	fmt.Fprintf(w, "Temperature: %.1f°C (feels like %.1f°C)\n", cw.Temperature, cw.FeelsLike)
	fmt.Fprintf(w, "Range:       %.1f°C to %.1f°C\n", cw.TempMin, cw.TempMax)
	fmt.Fprintf(w, "Conditions:  %s\n", cw.Description)
	fmt.Fprintf(w, "Humidity:    %d%%\n", cw.Humidity)
	fmt.Fprintf(w, "Wind:        %.1f m/s\n", cw.WindSpeed)
	fmt.Fprintf(w, "Pressure:    %d hPa\n", cw.Pressure)
	if cw.Stale {
		fmt.Fprintln(w, "Note:        data served from stale cache")
	}
}

func writeDailyTable(w io.Writer, days []models.DailySummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tAVG\tMIN\tMAX\tHUMIDITY\tWIND\tRAIN\tCONDITIONS")
	for _, d := range days {
		fmt.Fprintf(tw, "%s\t%.1f°C\t%.1f°C\t%.1f°C\t%.0f%%\t%.1f m/s\t%.0f%%\t%s\n",
			d.Date, d.TempAvg, d.TempMin, d.TempMax, d.AvgHumidity, d.MaxWindSpeed, d.RainProbability, d.Description)
	}
	_ = tw.Flush()
}

func writeAlerts(w io.Writer, report models.AlertReport) {
	fmt.Fprintf(w, "Now: %s\n", report.Current.Message)
	if len(report.Upcoming) == 0 {
		fmt.Fprintln(w, "No alerts for the forecast period.")
	}
	for _, day := range report.Upcoming {
		fmt.Fprintf(w, "%s (%.1f°C to %.1f°C):\n", day.Date, day.TempMin, day.TempMax)
		for _, a := range day.Alerts {
			fmt.Fprintf(w, "  - %s\n", a)
		}
	}
	if len(report.ComfortableDays) > 0 {
		dates := make([]string, 0, len(report.ComfortableDays))
		for _, d := range report.ComfortableDays {
			dates = append(dates, d.Date)
		}
		fmt.Fprintf(w, "Comfortable days: %s\n", strings.Join(dates, ", "))
	}
}

func writeBestDay(w io.Writer, best models.BestDay) {
	fmt.Fprintf(w, "%s (score %.1f/100)\n", best.Date, best.Score)
	for _, reason := range best.Reasoning {
		fmt.Fprintf(w, "  - %s\n", reason)
	}
	if len(best.Ranking) > 1 {
		fmt.Fprintln(w, "Ranking:")
		for i, ds := range best.Ranking {
			fmt.Fprintf(w, "  %d. %s (%.1f)\n", i+1, ds.Date, ds.Score)
		}
	}
}
