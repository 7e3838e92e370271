package model

import (
	"encoding/json"
	"math"
)

// Observation is a single close-price data point fed to the indicator engine.
// TS is the bar open time in unix milliseconds and must be non-decreasing
// across a sequence; an observation with the same TS as its predecessor
// repaints the current bar instead of advancing the window.
type Observation struct {
	TS    int64   `json:"ts"`    // bar open time (unix ms), non-decreasing
	Close float64 `json:"close"` // close price, must be finite
}

// Finite reports whether the close price is a usable real number. NaN or
// infinite closes must be rejected at ingestion; once inside a smoother they
// corrupt all downstream state.
func (o Observation) Finite() bool {
	return !math.IsNaN(o.Close) && !math.IsInf(o.Close, 0)
}

// JSON returns the JSON-encoded observation (ignoring errors for hot-path usage).
func (o *Observation) JSON() []byte {
	b, _ := json.Marshal(o)
	return b
}
