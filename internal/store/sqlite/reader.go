package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"quantedge-ta/internal/indicator"
	"quantedge-ta/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access for queries and snapshot restore.
type Reader struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewReader opens a read connection to the database at dbPath.
func NewReader(dbPath string, logger zerolog.Logger) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log := logger.With().Str("component", "sqlite-reader").Logger()
	log.Info().Str("path", dbPath).Msg("opened database")
	return &Reader{db: db, log: log}, nil
}

// ReadResults returns stored results for one indicator of one symbol, after
// afterTS, in timestamp order.
func (r *Reader) ReadResults(symbol, name string, afterTS int64) ([]model.IndicatorResult, error) {
	rows, err := r.db.Query(`
		SELECT symbol, name, ts, value, upper, lower
		FROM indicator_values
		WHERE symbol = ? AND name = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, name, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query indicator_values: %w", err)
	}
	defer rows.Close()

	var out []model.IndicatorResult
	for rows.Next() {
		var res model.IndicatorResult
		var upper, lower sql.NullFloat64
		if err := rows.Scan(&res.Symbol, &res.Name, &res.TS, &res.Value, &upper, &lower); err != nil {
			return nil, fmt.Errorf("sqlite scan indicator_values: %w", err)
		}
		res.Upper = upper.Float64
		res.Lower = lower.Float64
		res.Ready = true
		out = append(out, res)
	}
	return out, rows.Err()
}

// ReadLatestSnapshot loads the most recent engine checkpoint for a symbol.
// Returns (nil, nil) when none exists.
func (r *Reader) ReadLatestSnapshot(symbol string) (*indicator.EngineSnapshot, error) {
	var data string
	err := r.db.QueryRow(`
		SELECT data FROM engine_snapshots
		WHERE symbol = ?
		ORDER BY id DESC
		LIMIT 1
	`, symbol).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read snapshot: %w", err)
	}
	return indicator.ParseEngineSnapshot([]byte(data))
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
