package indicator

import (
	"fmt"

	"quantedge-ta/internal/model"
)

// RSI is Wilder's relative strength index. Each bar's close is diffed against
// the previous close; positive differences feed a gain stream and negative
// ones (negated) a loss stream, each smoothed with alpha = 1/period. The
// first ready value lands on the bar at index period, once period differences
// have seeded both averages.
type RSI struct {
	period    int
	gain      *smoother
	loss      *smoother
	clk       clock
	count     int     // committed bars seen
	prevClose float64 // close of the committed previous bar
	curClose  float64 // close of the current bar, possibly repainted
	current   Value
}

// NewRSI creates a relative strength index over the given period.
func NewRSI(period int) (*RSI, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	alpha := 1.0 / float64(period)
	return &RSI{
		period: period,
		gain:   newSmoother(period, alpha),
		loss:   newSmoother(period, alpha),
	}, nil
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) Update(obs model.Observation) (Value, error) {
	if !obs.Finite() {
		return r.current, fmt.Errorf("%w: close=%v ts=%d", ErrNonFiniteInput, obs.Close, obs.TS)
	}
	if r.clk.advance(obs.TS) {
		r.count++
		if r.count == 1 {
			// first bar: no difference to smooth yet
			r.curClose = obs.Close
			return r.current, nil
		}
		r.prevClose = r.curClose
		r.curClose = obs.Close
		r.apply(obs.Close, true)
		return r.current, nil
	}
	r.curClose = obs.Close
	if r.count < 2 {
		// repainting the very first bar still produces no difference
		return r.current, nil
	}
	r.apply(obs.Close, false)
	return r.current, nil
}

// apply smooths the difference between close and the committed previous close
// into both averages and refreshes the current value once seeded.
func (r *RSI) apply(close float64, next bool) {
	g, l := gainLoss(r.prevClose, close)
	avgGain, ready := r.gain.step(g, next)
	avgLoss, _ := r.loss.step(l, next)
	if ready {
		r.current = Value{Value: rsiFromAverages(avgGain, avgLoss), Ready: true}
	}
}

func (r *RSI) Value() Value { return r.current }

func (r *RSI) Ready() bool { return r.current.Ready }

func (r *RSI) Peek(close float64) Value {
	if r.count == 0 {
		return r.current
	}
	g, l := gainLoss(r.curClose, close)
	avgGain, ready := r.gain.peek(g)
	avgLoss, _ := r.loss.peek(l)
	if !ready {
		return r.current
	}
	return Value{Value: rsiFromAverages(avgGain, avgLoss), Ready: true}
}

func (r *RSI) Reset() {
	r.gain.reset()
	r.loss.reset()
	r.clk.reset()
	r.count = 0
	r.prevClose, r.curClose = 0, 0
	r.current = Value{}
}

// gainLoss splits a close-to-close move into its gain and loss components.
// Exactly one of the two is nonzero for any real move; both are zero for a
// flat bar.
func gainLoss(prev, close float64) (gain, loss float64) {
	diff := close - prev
	if diff > 0 {
		return diff, 0
	}
	return 0, -diff
}

// rsiFromAverages maps smoothed gain and loss averages onto the 0..100 RSI
// scale. A market with no losses pins at 100; one that never moved at all has
// no directional information and reads neutral 50.
func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
