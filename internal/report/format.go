// Package report renders an analysis result as a plain-text report for
// the CLI and the output directory.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"CoinScope/internal/indicator"
	"CoinScope/internal/model"
	"CoinScope/internal/pipeline"
)

// Format renders the analysis result for one key.
func Format(key model.SeriesKey, result *pipeline.Result) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("CoinScope analysis | %s | %s\n\n", key, time.Now().Format("2006-01-02 15:04")))

	sum := result.Summary
	b.WriteString(fmt.Sprintf("Current price:   %.2f\n", sum.CurrentPrice))
	b.WriteString(fmt.Sprintf("All-time high:   %.2f\n", sum.AllTimeHigh))
	b.WriteString(fmt.Sprintf("All-time low:    %.2f\n", sum.AllTimeLow))
	b.WriteString(fmt.Sprintf("Mean daily ret:  %+.3f%%\n", sum.MeanDailyRet))
	b.WriteString(fmt.Sprintf("Volatility:      %.3f%%\n", sum.Volatility))
	b.WriteString(fmt.Sprintf("Last volume:     %.2f\n\n", sum.LastVolume))

	frame := result.Frame
	if frame.Len() > 0 {
		i := frame.Len() - 1
		b.WriteString("Indicators (latest):\n")
		writeIndicator(&b, "MA-20", frame.MAShort[i])
		writeIndicator(&b, "MA-50", frame.MAMid[i])
		writeIndicator(&b, "MA-200", frame.MALong[i])
		writeIndicator(&b, "RSI-14", frame.RSI[i])
		writeIndicator(&b, "MACD", frame.MACD[i])
		writeIndicator(&b, "Signal", frame.MACDSignal[i])
		writeIndicator(&b, "BB upper", frame.BBUpper[i])
		writeIndicator(&b, "BB lower", frame.BBLower[i])
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("Trend: %s\n\n", result.Trend))

	if result.Forecast != nil {
		points := result.Forecast.Points
		endPt := points[len(points)-1]
		b.WriteString(fmt.Sprintf("Forecast (%d periods, seed %d):\n", result.Forecast.Horizon, result.Forecast.Seed))
		b.WriteString(fmt.Sprintf("  +30d:  %.2f\n", pointAt(points, 30)))
		b.WriteString(fmt.Sprintf("  +180d: %.2f\n", pointAt(points, 180)))
		b.WriteString(fmt.Sprintf("  end (%s): %.2f\n", endPt.Time.Format("2006-01-02"), endPt.PredictedClose))
		b.WriteString("  note: autoregressive forecast; confidence degrades with horizon length\n")
	} else if result.ForecastErr != nil {
		b.WriteString(fmt.Sprintf("Forecast unavailable: %v\n", result.ForecastErr))
	}

	if w := result.Warnings; w.DroppedCandles > 0 || w.SkippedRows > 0 {
		b.WriteString(fmt.Sprintf("\nWarnings: %d candles dropped, %d cache rows skipped\n",
			w.DroppedCandles, w.SkippedRows))
	}

	return b.String()
}

// Save writes the report into outputDir as analysis_<coin>.txt and
// returns the path.
func Save(outputDir string, key model.SeriesKey, result *pipeline.Result) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, fmt.Sprintf("analysis_%s.txt", strings.ToLower(key.BaseCoin())))
	if err := os.WriteFile(path, []byte(Format(key, result)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func writeIndicator(b *strings.Builder, name string, v float64) {
	if indicator.Defined(v) {
		fmt.Fprintf(b, "  %-9s %.2f\n", name, v)
	} else {
		fmt.Fprintf(b, "  %-9s (warm-up)\n", name)
	}
}

func pointAt(points []model.ForecastPoint, day int) float64 {
	i := day - 1
	if i >= len(points) {
		i = len(points) - 1
	}
	return points[i].PredictedClose
}
