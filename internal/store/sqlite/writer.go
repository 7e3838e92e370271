// Package sqlite persists computed indicator values and engine checkpoints.
// It is the durable tier: redis holds the hot checkpoint, sqlite survives a
// redis flush.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"quantedge-ta/internal/indicator"
	"quantedge-ta/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 200
	defaultFlushDelay = 200 * time.Millisecond
	snapshotsKept     = 10
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // e.g. "data/indicators.db"
	Logger zerolog.Logger
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db  *sql.DB
	log zerolog.Logger

	// OnCommit, when set, is called with the duration of each batch commit.
	OnCommit func(took time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// single-writer pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log := cfg.Logger.With().Str("component", "sqlite").Logger()
	log.Info().Str("path", cfg.DBPath).Msg("opened database")
	return &Writer{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS indicator_values (
			symbol  TEXT    NOT NULL,
			name    TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			value   REAL    NOT NULL,
			upper   REAL,
			lower   REAL,
			PRIMARY KEY (symbol, name, ts)
		);

		CREATE TABLE IF NOT EXISTS engine_snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT    NOT NULL,
			data       TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// Run reads results from resultCh and inserts them in batched transactions.
// Flushes every defaultBatchSize results or every defaultFlushDelay,
// whichever comes first. Blocks until ctx is cancelled or the channel closes.
func (w *Writer) Run(ctx context.Context, resultCh <-chan model.IndicatorResult) {
	batch := make([]model.IndicatorResult, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			w.log.Error().Err(err).Int("count", len(batch)).Msg("batch insert failed")
		} else {
			took := time.Since(start)
			if w.OnCommit != nil {
				w.OnCommit(took)
			}
			w.log.Debug().Int("count", len(batch)).Dur("took", took).Msg("batch committed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case res, ok := <-resultCh:
			if !ok {
				flush()
				return
			}
			if !res.Ready || res.Live {
				continue
			}
			batch = append(batch, res)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// InsertResults writes a batch of results synchronously, for callers outside
// the Run loop (batch mode).
func (w *Writer) InsertResults(results []model.IndicatorResult) error {
	kept := results[:0:0]
	for _, r := range results {
		if r.Ready && !r.Live {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return w.insertBatch(kept)
}

func (w *Writer) insertBatch(results []model.IndicatorResult) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO indicator_values (symbol, name, ts, value, upper, lower)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.Exec(r.Symbol, r.Name, r.TS, r.Value, r.Upper, r.Lower); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetLastTimestamp returns the newest stored timestamp for a symbol, or 0
// when nothing is stored yet.
func (w *Writer) GetLastTimestamp(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM indicator_values WHERE symbol = ?`, symbol,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// SaveSnapshot persists an engine checkpoint and prunes to the most recent
// few, so the table cannot grow without bound.
func (w *Writer) SaveSnapshot(snap *indicator.EngineSnapshot) error {
	data, err := snap.JSON()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if _, err := w.db.Exec(
		`INSERT INTO engine_snapshots (symbol, data) VALUES (?, ?)`,
		snap.Symbol, string(data),
	); err != nil {
		return fmt.Errorf("sqlite insert snapshot: %w", err)
	}

	if _, err := w.db.Exec(
		`DELETE FROM engine_snapshots WHERE symbol = ? AND id NOT IN (
			SELECT id FROM engine_snapshots WHERE symbol = ? ORDER BY id DESC LIMIT ?
		)`, snap.Symbol, snap.Symbol, snapshotsKept,
	); err != nil {
		w.log.Warn().Err(err).Msg("snapshot prune failed")
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
