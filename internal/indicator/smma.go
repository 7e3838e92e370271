package indicator

import (
	"fmt"

	"quantedge-ta/internal/model"
)

// SMMA is the smoothed (Wilder) moving average: the same recursion as EMA but
// with alpha = 1/period. It is the smoothing RSI applies to its gain and loss
// streams, exposed here as an indicator in its own right.
type SMMA struct {
	period  int
	sm      *smoother
	clk     clock
	current Value
}

// NewSMMA creates a Wilder smoothed moving average over the given period.
func NewSMMA(period int) (*SMMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	return &SMMA{period: period, sm: newSmoother(period, 1.0/float64(period))}, nil
}

func (s *SMMA) Name() string { return "SMMA" }

func (s *SMMA) Update(obs model.Observation) (Value, error) {
	if !obs.Finite() {
		return s.current, fmt.Errorf("%w: close=%v ts=%d", ErrNonFiniteInput, obs.Close, obs.TS)
	}
	v, ready := s.sm.step(obs.Close, s.clk.advance(obs.TS))
	if ready {
		s.current = Value{Value: v, Ready: true}
	}
	return s.current, nil
}

func (s *SMMA) Value() Value { return s.current }

func (s *SMMA) Ready() bool { return s.current.Ready }

func (s *SMMA) Peek(close float64) Value {
	v, ready := s.sm.peek(close)
	return Value{Value: v, Ready: ready}
}

func (s *SMMA) Reset() {
	s.sm.reset()
	s.clk.reset()
	s.current = Value{}
}
