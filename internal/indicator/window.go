package indicator

import "quantedge-ta/internal/ringbuf"

// window maintains the rolling sum and sum of squares over the last period
// values, giving O(1) mean and population variance per observation. SMA and
// Bollinger Bands share it.
type window struct {
	period int
	ring   *ringbuf.Ring
	sum    float64
	sumSq  float64
}

func newWindow(period int) *window {
	return &window{period: period, ring: ringbuf.New(period)}
}

// push appends a committed bar close, evicting the oldest once full.
func (w *window) push(x float64) {
	if old, evicted := w.ring.Push(x); evicted {
		w.sum -= old
		w.sumSq -= old * old
	}
	w.sum += x
	w.sumSq += x * x
}

// repaint swaps the newest close for x without advancing the window.
func (w *window) repaint(x float64) {
	if w.ring.Len() == 0 {
		w.push(x)
		return
	}
	old := w.ring.Replace(x)
	w.sum += x - old
	w.sumSq += x*x - old*old
}

func (w *window) ready() bool {
	return w.ring.Full()
}

// mean returns the arithmetic mean of the full window.
func (w *window) mean() float64 {
	return w.sum / float64(w.period)
}

// variance returns the population variance (divisor period, not period-1) of
// the full window. Floating-point cancellation can push the raw figure a hair
// below zero for near-constant windows; it is clamped so sqrt stays defined.
func (w *window) variance() float64 {
	m := w.mean()
	v := w.sumSq/float64(w.period) - m*m
	if v < 0 {
		return 0
	}
	return v
}

// peekStats returns the mean and variance the window would have if a new bar
// closed at x, without mutating state. Before warm-up completes the variance
// is reported over the partial fill.
func (w *window) peekStats(x float64) (mean, variance float64) {
	sum, sumSq := w.sum+x, w.sumSq+x*x
	n := float64(w.ring.Len() + 1)
	if w.ready() {
		old := w.ring.Oldest()
		sum -= old
		sumSq -= old * old
		n = float64(w.period)
	}
	mean = sum / n
	variance = sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}

func (w *window) values() []float64 {
	return w.ring.Snapshot()
}

// restore rebuilds the window from an oldest-first close slice plus the
// running sums captured alongside it. Carrying the sums keeps a restored run
// bit-identical to an uninterrupted one; recomputing them from the values
// would reintroduce rounding the live accumulators never saw.
func (w *window) restore(values []float64, sum, sumSq float64) {
	w.ring.Restore(values)
	w.sum, w.sumSq = sum, sumSq
}

func (w *window) reset() {
	w.ring = ringbuf.New(w.period)
	w.sum, w.sumSq = 0, 0
}
