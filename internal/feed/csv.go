// Package feed reads (timestamp, close) observations out of candle CSV files.
//
// Two layouts are accepted and detected from the first row:
//
//   - exchange kline dumps: twelve headerless columns per row, open time in
//     column 0 (epoch milliseconds) and close price in column 4
//   - plain exports: a header row naming at least "open_time" and "close",
//     with data rows underneath
//
// The feed enforces stream ordering: timestamps must be non-decreasing. A
// repeated timestamp is passed through untouched, since downstream it means
// the bar repainted; a decreasing one is corrupt input and fails the read.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"quantedge-ta/internal/model"
)

const klineColumns = 12

var (
	// ErrOutOfOrder is returned when a row's timestamp is lower than the
	// previous row's.
	ErrOutOfOrder = errors.New("feed: decreasing timestamp")

	// ErrNonFiniteClose is returned when a close parses to NaN or infinity.
	ErrNonFiniteClose = errors.New("feed: non-finite close price")

	// ErrUnknownLayout is returned when the first row is neither a kline
	// row nor a recognizable header.
	ErrUnknownLayout = errors.New("feed: unrecognized csv layout")
)

// Reader streams observations from one CSV source.
type Reader struct {
	csv      *csv.Reader
	tsIdx    int
	closeIdx int
	row      int
	lastTS   int64
	seen     bool
	pending  *model.Observation // first data row, when layout detection consumed it
}

// NewReader wraps r and detects the layout from its first row.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	first, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrUnknownLayout)
	}
	if err != nil {
		return nil, fmt.Errorf("feed: read first row: %w", err)
	}

	fr := &Reader{csv: cr, row: 1}
	if len(first) >= klineColumns {
		if _, err := strconv.ParseInt(strings.TrimSpace(first[0]), 10, 64); err == nil {
			// headerless kline dump; the first row is already data
			fr.tsIdx, fr.closeIdx = 0, 4
			obs, err := fr.parse(first)
			if err != nil {
				return nil, err
			}
			fr.pending = &obs
			return fr, nil
		}
	}
	tsIdx, closeIdx := -1, -1
	for i, col := range first {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "open_time", "opentime", "ts", "timestamp":
			tsIdx = i
		case "close":
			closeIdx = i
		}
	}
	if tsIdx < 0 || closeIdx < 0 {
		return nil, fmt.Errorf("%w: header %v", ErrUnknownLayout, first)
	}
	fr.tsIdx, fr.closeIdx = tsIdx, closeIdx
	return fr, nil
}

// Next returns the next observation. It returns io.EOF once the source is
// exhausted.
func (r *Reader) Next() (model.Observation, error) {
	if r.pending != nil {
		obs := *r.pending
		r.pending = nil
		return obs, nil
	}
	rec, err := r.csv.Read()
	if err == io.EOF {
		return model.Observation{}, io.EOF
	}
	if err != nil {
		return model.Observation{}, fmt.Errorf("feed: row %d: %w", r.row+1, err)
	}
	r.row++
	return r.parse(rec)
}

func (r *Reader) parse(rec []string) (model.Observation, error) {
	if len(rec) <= r.tsIdx || len(rec) <= r.closeIdx {
		return model.Observation{}, fmt.Errorf("feed: row %d: %d columns, need at least %d",
			r.row, len(rec), r.closeIdx+1)
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(rec[r.tsIdx]), 10, 64)
	if err != nil {
		return model.Observation{}, fmt.Errorf("feed: row %d: bad timestamp %q: %w", r.row, rec[r.tsIdx], err)
	}
	px, err := strconv.ParseFloat(strings.TrimSpace(rec[r.closeIdx]), 64)
	if err != nil {
		return model.Observation{}, fmt.Errorf("feed: row %d: bad close %q: %w", r.row, rec[r.closeIdx], err)
	}
	if math.IsNaN(px) || math.IsInf(px, 0) {
		return model.Observation{}, fmt.Errorf("%w: row %d: %v", ErrNonFiniteClose, r.row, px)
	}
	if r.seen && ts < r.lastTS {
		return model.Observation{}, fmt.Errorf("%w: row %d: %d after %d", ErrOutOfOrder, r.row, ts, r.lastTS)
	}
	r.lastTS = ts
	r.seen = true
	return model.Observation{TS: ts, Close: px}, nil
}

// ReadAll drains the reader into a slice.
func (r *Reader) ReadAll() ([]model.Observation, error) {
	var out []model.Observation
	for {
		obs, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
}

// ReadFile loads every observation from the CSV at path.
func ReadFile(path string) ([]model.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open %s: %w", path, err)
	}
	defer f.Close()
	r, err := NewReader(f)
	if err != nil {
		return nil, err
	}
	return r.ReadAll()
}
