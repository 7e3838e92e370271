package indicator

import (
	"fmt"

	"quantedge-ta/internal/model"
)

// SMA is the simple moving average: the arithmetic mean of the last period
// closes. It is undefined until period bars have been seen.
type SMA struct {
	period  int
	win     *window
	clk     clock
	current Value
}

// NewSMA creates a simple moving average over the given period.
func NewSMA(period int) (*SMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	return &SMA{period: period, win: newWindow(period)}, nil
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(obs model.Observation) (Value, error) {
	if !obs.Finite() {
		return s.current, fmt.Errorf("%w: close=%v ts=%d", ErrNonFiniteInput, obs.Close, obs.TS)
	}
	if s.clk.advance(obs.TS) {
		s.win.push(obs.Close)
	} else {
		s.win.repaint(obs.Close)
	}
	if s.win.ready() {
		s.current = Value{Value: s.win.mean(), Ready: true}
	}
	return s.current, nil
}

func (s *SMA) Value() Value { return s.current }

func (s *SMA) Ready() bool { return s.current.Ready }

func (s *SMA) Peek(close float64) Value {
	mean, _ := s.win.peekStats(close)
	return Value{Value: mean, Ready: s.win.ready() || s.win.ring.Len()+1 >= s.period}
}

func (s *SMA) Reset() {
	s.win.reset()
	s.clk.reset()
	s.current = Value{}
}
