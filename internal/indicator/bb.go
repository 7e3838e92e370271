package indicator

import (
	"fmt"
	"math"

	"quantedge-ta/internal/model"
)

// DefaultBBMultiplier is the conventional Bollinger band width.
const DefaultBBMultiplier = 2.0

// BB computes Bollinger Bands: the middle band is the period SMA, the upper
// and lower bands sit multiplier standard deviations away. The deviation is
// the population standard deviation of the window (divisor period), so a
// window of identical closes collapses all three bands onto one line.
type BB struct {
	period  int
	mult    float64
	win     *window
	clk     clock
	current Value
}

// NewBB creates Bollinger Bands with the given period and band multiplier.
func NewBB(period int, multiplier float64) (*BB, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	if !(multiplier > 0) || math.IsInf(multiplier, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidMultiplier, multiplier)
	}
	return &BB{period: period, mult: multiplier, win: newWindow(period)}, nil
}

func (b *BB) Name() string { return "BB" }

func (b *BB) Update(obs model.Observation) (Value, error) {
	if !obs.Finite() {
		return b.current, fmt.Errorf("%w: close=%v ts=%d", ErrNonFiniteInput, obs.Close, obs.TS)
	}
	if b.clk.advance(obs.TS) {
		b.win.push(obs.Close)
	} else {
		b.win.repaint(obs.Close)
	}
	if b.win.ready() {
		b.current = b.bands(b.win.mean(), b.win.variance())
	}
	return b.current, nil
}

func (b *BB) Value() Value { return b.current }

func (b *BB) Ready() bool { return b.current.Ready }

func (b *BB) Peek(close float64) Value {
	mean, variance := b.win.peekStats(close)
	v := b.bands(mean, variance)
	v.Ready = b.win.ready() || b.win.ring.Len()+1 >= b.period
	return v
}

func (b *BB) Reset() {
	b.win.reset()
	b.clk.reset()
	b.current = Value{}
}

func (b *BB) bands(mean, variance float64) Value {
	offset := b.mult * math.Sqrt(variance)
	return Value{
		Value: mean,
		Upper: mean + offset,
		Lower: mean - offset,
		Ready: true,
	}
}
