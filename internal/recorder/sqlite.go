package recorder

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logrus.Entry
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *logrus.Entry) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so external readers don't block run inserts.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.WithField("db", dbPath)}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			symbol           TEXT NOT NULL,
			exchange         TEXT NOT NULL,
			candles          INTEGER,
			current_price    REAL,
			trend            TEXT,
			forecast_horizon INTEGER,
			forecast_end     REAL,
			forecast_error   TEXT,
			dropped_candles  INTEGER,
			skipped_rows     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON analysis_runs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_key ON analysis_runs(symbol, exchange)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO analysis_runs
		(timestamp, symbol, exchange, candles, current_price, trend,
		 forecast_horizon, forecast_end, forecast_error,
		 dropped_candles, skipped_rows)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rec.RanAt.Unix(), rec.Symbol, rec.Exchange, rec.Candles,
		rec.CurrentPrice, rec.Trend,
		rec.ForecastHorizon, rec.ForecastEnd, rec.ForecastError,
		rec.DroppedCandles, rec.SkippedRows,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
