package forecast

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"CoinScope/internal/indicator"
	"CoinScope/internal/model"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// noisySeries produces a deterministic wavy price path long enough to
// yield complete feature rows.
func noisySeries(n int) *model.CandleSeries {
	s := &model.CandleSeries{Key: model.SeriesKey{Symbol: "BTC/USDT", Exchange: "binance"}}
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 20000 + 2000*math.Sin(float64(i)/15) + 10*float64(i)
		s.Candles = append(s.Candles, model.Candle{
			Time: start.Add(time.Duration(i) * 24 * time.Hour),
			Open: c, High: c * 1.01, Low: c * 0.99, Close: c, Volume: 1000,
		})
	}
	return s
}

func testForecaster(seed int64) *Forecaster {
	return New(Config{
		Lookback:    20,
		MinExamples: 50,
		Trees:       10,
		Seed:        seed,
		Period:      24 * time.Hour,
	}, testLog())
}

func TestBuildExamples(t *testing.T) {
	series := noisySeries(120)
	frame := indicator.Compute(series, indicator.Config{})

	X, y := BuildExamples(frame, 20)
	if len(X) != len(y) {
		t.Fatalf("feature/label mismatch: %d vs %d", len(X), len(y))
	}
	if len(X) == 0 {
		t.Fatal("expected examples from a 120-candle series")
	}
	// Lookback closes plus MA, RSI, MACD, Bollinger width.
	if got := len(X[0]); got != 24 {
		t.Errorf("feature vector length = %d, want 24", got)
	}
	for i, feats := range X {
		for j, v := range feats {
			if math.IsNaN(v) {
				t.Fatalf("NaN feature at example %d position %d", i, j)
			}
		}
	}
}

func TestForecastInsufficientData(t *testing.T) {
	// Short series: the warm-up leaves far fewer complete examples than
	// the default 200 threshold.
	series := noisySeries(120)
	frame := indicator.Compute(series, indicator.Config{})

	fc := New(Config{Lookback: 60, Trees: 10, Seed: 1, Period: 24 * time.Hour}, testLog())
	_, err := fc.Forecast(series, frame, 30)
	if !errors.Is(err, model.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestForecastHorizonLength(t *testing.T) {
	series := noisySeries(300)
	frame := indicator.Compute(series, indicator.Config{})
	fc := testForecaster(42)

	result, err := fc.Forecast(series, frame, 25)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if result.Horizon != 25 || len(result.Points) != 25 {
		t.Fatalf("horizon = %d with %d points, want 25/25", result.Horizon, len(result.Points))
	}

	last, _ := series.Last()
	for i, pt := range result.Points {
		want := last.Time.Add(time.Duration(i+1) * 24 * time.Hour)
		if !pt.Time.Equal(want) {
			t.Errorf("point %d at %v, want %v", i, pt.Time, want)
		}
	}
}

func TestForecastReproducibleWithSeed(t *testing.T) {
	series := noisySeries(300)
	frame := indicator.Compute(series, indicator.Config{})

	a, err := testForecaster(42).Forecast(series, frame, 20)
	if err != nil {
		t.Fatal(err)
	}
	b, err := testForecaster(42).Forecast(series, frame, 20)
	if err != nil {
		t.Fatal(err)
	}

	for i := range a.Points {
		if a.Points[i].PredictedClose != b.Points[i].PredictedClose {
			t.Fatalf("same seed diverged at step %d: %v vs %v",
				i, a.Points[i].PredictedClose, b.Points[i].PredictedClose)
		}
	}
}

func TestForecastSeedChangesOutput(t *testing.T) {
	series := noisySeries(300)
	frame := indicator.Compute(series, indicator.Config{})

	a, err := testForecaster(1).Forecast(series, frame, 10)
	if err != nil {
		t.Fatal(err)
	}
	b, err := testForecaster(2).Forecast(series, frame, 10)
	if err != nil {
		t.Fatal(err)
	}

	same := true
	for i := range a.Points {
		if a.Points[i].PredictedClose != b.Points[i].PredictedClose {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical forecasts")
	}
}

func TestForecastPredictionsInSaneRange(t *testing.T) {
	series := noisySeries(300)
	frame := indicator.Compute(series, indicator.Config{})

	result, err := testForecaster(42).Forecast(series, frame, 30)
	if err != nil {
		t.Fatal(err)
	}
	// Tree ensembles cannot extrapolate outside the label range seen in
	// training; every prediction must fall inside it.
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, c := range series.Candles {
		minY = math.Min(minY, c.Close)
		maxY = math.Max(maxY, c.Close)
	}
	for i, pt := range result.Points {
		if pt.PredictedClose < minY || pt.PredictedClose > maxY {
			t.Errorf("prediction %d = %f outside training label range [%f, %f]",
				i, pt.PredictedClose, minY, maxY)
		}
	}
}

// meanModel is a trivial Model substitute proving the interface is
// swappable without touching the forecaster.
type meanModel struct{ mean float64 }

func (m *meanModel) Train(_ [][]float64, y []float64) error {
	sum := 0.0
	for _, v := range y {
		sum += v
	}
	m.mean = sum / float64(len(y))
	return nil
}

func (m *meanModel) Predict(_ []float64) float64 { return m.mean }

func TestForecastModelIsSwappable(t *testing.T) {
	series := noisySeries(300)
	frame := indicator.Compute(series, indicator.Config{})

	m := &meanModel{}
	fc := testForecaster(42).WithModel(func() Model { return m })
	result, err := fc.Forecast(series, frame, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, pt := range result.Points {
		if pt.PredictedClose != m.mean {
			t.Errorf("prediction %f, want model mean %f", pt.PredictedClose, m.mean)
		}
	}
}

func TestForecastEmptySeries(t *testing.T) {
	empty := &model.CandleSeries{Key: model.SeriesKey{Symbol: "BTC/USDT", Exchange: "binance"}}
	frame := indicator.Compute(empty, indicator.Config{})
	_, err := testForecaster(42).Forecast(empty, frame, 10)
	if !errors.Is(err, model.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
