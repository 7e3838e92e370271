// Package indicator implements streaming technical indicators over series of
// (timestamp, close) observations: SMA, EMA, SMMA, RSI and Bollinger Bands.
//
// Every indicator consumes one observation at a time and carries only O(period)
// state, so the same code path serves both live streaming and batch series
// computation. An observation with the same timestamp as the previous one
// repaints the current bar in place instead of advancing the window; a later
// timestamp commits the bar and opens a new one.
package indicator

import "quantedge-ta/internal/model"

// Value is one computed indicator sample. Ready is false while the indicator
// is still warming up; a not-ready Value carries no meaningful numbers and
// callers must treat it as undefined rather than zero.
type Value struct {
	Value float64 `json:"value"`
	Upper float64 `json:"upper,omitempty"` // band indicators only
	Lower float64 `json:"lower,omitempty"` // band indicators only
	Ready bool    `json:"ready"`
}

// Width returns the distance between the upper and lower bands. It is zero
// for non-band indicators and for constant windows.
func (v Value) Width() float64 {
	return v.Upper - v.Lower
}

// Indicator is the contract every indicator satisfies.
type Indicator interface {
	// Name returns the indicator type, e.g. "SMA".
	Name() string

	// Update feeds one observation and returns the resulting value. An
	// observation whose timestamp equals the previous one repaints the
	// current bar. Update fails only on non-finite input; the state is
	// left untouched on error.
	Update(obs model.Observation) (Value, error)

	// Value returns the most recently computed value without mutating
	// state.
	Value() Value

	// Ready reports whether the warm-up period has completed.
	Ready() bool

	// Peek returns the value Update would produce if a new bar closed at
	// the given price, without mutating state. It lets callers render a
	// forming bar while only committed bars feed the real state.
	Peek(close float64) Value

	// Reset returns the indicator to its initial empty state.
	Reset()
}

// Snapshottable is implemented by indicators whose internal state can be
// serialized for checkpointing and restored on restart.
type Snapshottable interface {
	Indicator
	Snapshot() IndicatorSnapshot
	RestoreFromSnapshot(snap IndicatorSnapshot) error
}

// clock tracks the timestamp of the current bar so indicators can tell a new
// bar from a repaint of the current one.
type clock struct {
	lastTS int64
	seen   bool
}

// advance records ts and reports whether it opens a new bar. The first
// observation always does; afterwards any ts greater than the last one does,
// and an equal ts repaints. Decreasing timestamps are rejected upstream by
// the feed, so a smaller ts is treated as a repaint here rather than
// corrupting state.
func (c *clock) advance(ts int64) bool {
	next := !c.seen || ts > c.lastTS
	c.lastTS = ts
	c.seen = true
	return next
}

func (c *clock) reset() {
	c.lastTS = 0
	c.seen = false
}
