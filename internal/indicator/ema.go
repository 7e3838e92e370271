package indicator

import (
	"fmt"

	"quantedge-ta/internal/model"
)

// EMA is the exponential moving average with alpha = 2/(period+1). The first
// ready value, at the bar where period observations have been seen, is the
// simple average of those observations; every later bar applies
// ema = alpha*close + (1-alpha)*ema.
type EMA struct {
	period  int
	sm      *smoother
	clk     clock
	current Value
}

// NewEMA creates an exponential moving average over the given period.
func NewEMA(period int) (*EMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	alpha := 2.0 / (float64(period) + 1.0)
	return &EMA{period: period, sm: newSmoother(period, alpha)}, nil
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(obs model.Observation) (Value, error) {
	if !obs.Finite() {
		return e.current, fmt.Errorf("%w: close=%v ts=%d", ErrNonFiniteInput, obs.Close, obs.TS)
	}
	v, ready := e.sm.step(obs.Close, e.clk.advance(obs.TS))
	if ready {
		e.current = Value{Value: v, Ready: true}
	}
	return e.current, nil
}

func (e *EMA) Value() Value { return e.current }

func (e *EMA) Ready() bool { return e.current.Ready }

func (e *EMA) Peek(close float64) Value {
	v, ready := e.sm.peek(close)
	return Value{Value: v, Ready: ready}
}

func (e *EMA) Reset() {
	e.sm.reset()
	e.clk.reset()
	e.current = Value{}
}
