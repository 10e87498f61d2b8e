// Package store persists candle series to a CSV cache file shared by all
// series keys. The on-disk file is the source of truth across restarts:
// one row per candle with columns timestamp, open, high, low, close,
// volume, symbol, exchange, sorted ascending by timestamp per key.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"CoinScope/internal/model"
)

var header = []string{"timestamp", "open", "high", "low", "close", "volume", "symbol", "exchange"}

// timestamp layouts accepted on load; rows are written with the first.
var timeLayouts = []string{"2006-01-02 15:04:05", time.RFC3339}

// Store is a CSV-backed candle cache. Merges for the same key queue on a
// per-key mutex; merges for different keys only contend on the short
// file-rewrite section. Rewrites are atomic (temp file + rename), so a
// cancelled or crashed merge never leaves a partially merged file.
type Store struct {
	path string
	log  *logrus.Entry

	fileMu sync.Mutex // guards reads/writes of the CSV file

	mu       sync.Mutex
	keyLocks map[model.SeriesKey]*sync.Mutex
}

// Open creates a Store over the CSV file at path. A missing file is
// created with a header row so a fresh install starts from an empty cache.
func Open(path string, log *logrus.Entry) (*Store, error) {
	s := &Store{
		path:     path,
		log:      log.WithField("cache", path),
		keyLocks: make(map[model.SeriesKey]*sync.Mutex),
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
		if err := s.writeAll(nil); err != nil {
			return nil, fmt.Errorf("bootstrap cache file: %w", err)
		}
		s.log.Info("created empty cache file")
	}
	return s, nil
}

func (s *Store) keyLock(key model.SeriesKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	return l
}

// row is one candle bound to its series key.
type row struct {
	key    model.SeriesKey
	candle model.Candle
}

// Load returns the cached series for key, possibly empty. Malformed or
// out-of-order rows are skipped with a warning, never a fatal error.
func (s *Store) Load(key model.SeriesKey) (*model.CandleSeries, error) {
	rows, _, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return seriesFor(key, rows), nil
}

// Merge folds incoming candles into the cached series for key and returns
// the new authoritative series. Merging is idempotent: one candle per
// timestamp survives, the incoming value winning on conflict (providers
// revise the still-open candle of the current period).
func (s *Store) Merge(key model.SeriesKey, incoming *model.CandleSeries) (*model.CandleSeries, error) {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	rows, _, err := s.readAll()
	if err != nil {
		return nil, err
	}

	byTime := make(map[int64]model.Candle)
	var others []row
	for _, r := range rows {
		if r.key == key {
			byTime[r.candle.Time.Unix()] = r.candle
		} else {
			others = append(others, r)
		}
	}
	for _, c := range incoming.Candles {
		byTime[c.Time.Unix()] = c
	}

	merged := &model.CandleSeries{Key: key, Candles: make([]model.Candle, 0, len(byTime))}
	for _, c := range byTime {
		merged.Candles = append(merged.Candles, c)
	}
	sort.Slice(merged.Candles, func(i, j int) bool {
		return merged.Candles[i].Time.Before(merged.Candles[j].Time)
	})

	out := make([]row, 0, len(others)+len(merged.Candles))
	out = append(out, others...)
	for _, c := range merged.Candles {
		out = append(out, row{key: key, candle: c})
	}
	if err := s.writeAll(out); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"symbol":   key.Symbol,
		"exchange": key.Exchange,
		"incoming": incoming.Len(),
		"total":    merged.Len(),
	}).Info("merged candles into cache")
	return merged, nil
}

// Clear removes all cached candles for key.
func (s *Store) Clear(key model.SeriesKey) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	rows, _, err := s.readAll()
	if err != nil {
		return err
	}
	kept := rows[:0]
	for _, r := range rows {
		if r.key != key {
			kept = append(kept, r)
		}
	}
	return s.writeAll(kept)
}

// readAll parses the whole cache file, skipping corrupt rows. The skipped
// count is returned so callers can surface it as a warning.
func (s *Store) readAll() ([]row, int, error) {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open cache: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("read cache: %w", err)
	}

	var rows []row
	skipped := 0
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == "timestamp" {
			continue
		}
		parsed, err := parseRow(rec)
		if err != nil {
			skipped++
			s.log.WithField("line", i+1).Warnf("skipping corrupt cache row: %v", err)
			continue
		}
		rows = append(rows, parsed)
	}
	if skipped > 0 {
		s.log.WithField("skipped", skipped).Warn("cache contained corrupt rows")
	}
	return rows, skipped, nil
}

// SkippedRows re-reads the file and reports how many rows are corrupt.
func (s *Store) SkippedRows() (int, error) {
	_, skipped, err := s.readAll()
	return skipped, err
}

// writeAll atomically replaces the cache file with the given rows.
func (s *Store) writeAll(rows []row) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cache-*.csv")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.candle.Time.UTC().Format(timeLayouts[0]),
			formatFloat(r.candle.Open),
			formatFloat(r.candle.High),
			formatFloat(r.candle.Low),
			formatFloat(r.candle.Close),
			formatFloat(r.candle.Volume),
			r.key.Symbol,
			r.key.Exchange,
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

func parseRow(rec []string) (row, error) {
	if len(rec) != len(header) {
		return row{}, fmt.Errorf("expected %d fields, got %d", len(header), len(rec))
	}
	var ts time.Time
	var err error
	for _, layout := range timeLayouts {
		ts, err = time.Parse(layout, rec[0])
		if err == nil {
			break
		}
	}
	if err != nil {
		return row{}, fmt.Errorf("bad timestamp %q", rec[0])
	}
	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		vals[i], err = strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return row{}, fmt.Errorf("bad %s %q", header[i+1], rec[i+1])
		}
	}
	if rec[6] == "" || rec[7] == "" {
		return row{}, fmt.Errorf("missing symbol or exchange")
	}
	return row{
		key: model.SeriesKey{Symbol: rec[6], Exchange: rec[7]},
		candle: model.Candle{
			Time:   ts.UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		},
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func seriesFor(key model.SeriesKey, rows []row) *model.CandleSeries {
	series := &model.CandleSeries{Key: key}
	for _, r := range rows {
		if r.key == key {
			series.Candles = append(series.Candles, r.candle)
		}
	}
	sort.Slice(series.Candles, func(i, j int) bool {
		return series.Candles[i].Time.Before(series.Candles[j].Time)
	})
	// Deduplicate in case the file was appended to out of band.
	out := series.Candles[:0]
	var last time.Time
	for _, c := range series.Candles {
		if !last.IsZero() && c.Time.Equal(last) {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
		last = c.Time
	}
	series.Candles = out
	return series
}
