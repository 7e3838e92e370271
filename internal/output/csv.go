// Package output renders computed indicator series back to CSV, one file per
// indicator. Only defined rows are written: warm-up positions are omitted
// rather than filled with placeholders, so every row a consumer reads is a
// real value. Prices are formatted with ten decimal places to keep files
// byte-stable across runs.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"quantedge-ta/internal/indicator"
	"quantedge-ta/internal/model"
)

const floatPrecision = 10

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', floatPrecision, 64)
}

// WriteValues writes "open_time,value" rows for every ready value. obs and
// vals must be the aligned input and output of a series computation.
func WriteValues(w io.Writer, obs []model.Observation, vals []indicator.Value) error {
	if len(obs) != len(vals) {
		return fmt.Errorf("output: %d observations but %d values", len(obs), len(vals))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"open_time", "value"}); err != nil {
		return fmt.Errorf("output: write header: %w", err)
	}
	for i, v := range vals {
		if !v.Ready {
			continue
		}
		rec := []string{strconv.FormatInt(obs[i].TS, 10), formatFloat(v.Value)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("output: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBands writes "open_time,upper,middle,lower" rows for every ready
// band value.
func WriteBands(w io.Writer, obs []model.Observation, vals []indicator.Value) error {
	if len(obs) != len(vals) {
		return fmt.Errorf("output: %d observations but %d values", len(obs), len(vals))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"open_time", "upper", "middle", "lower"}); err != nil {
		return fmt.Errorf("output: write header: %w", err)
	}
	for i, v := range vals {
		if !v.Ready {
			continue
		}
		rec := []string{
			strconv.FormatInt(obs[i].TS, 10),
			formatFloat(v.Upper),
			formatFloat(v.Value),
			formatFloat(v.Lower),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("output: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSeriesFile writes one indicator's series to path, choosing the band
// layout for band indicators.
func WriteSeriesFile(path string, spec indicator.Spec, obs []model.Observation, vals []indicator.Value) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	if spec.Type == "BB" {
		err = WriteBands(f, obs, vals)
	} else {
		err = WriteValues(f, obs, vals)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
