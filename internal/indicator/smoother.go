package indicator

// smoother carries the state of the recursive exponential recursion
// out = alpha*x + (1-alpha)*prev shared by EMA, SMMA and the two RSI
// averages. The first period inputs accumulate into an arithmetic-mean seed,
// emitted as the first ready value; every later input applies the recursion.
//
// Repaints never touch prev: the committed output of the previous bar is the
// only state the current bar smooths against, so repainting the current bar
// is a pure recomputation from prev (or, during seeding, from the adjusted
// accumulator).
type smoother struct {
	period int
	alpha  float64
	count  int     // committed bars seen
	sum    float64 // seed accumulator over the first period inputs
	prev   float64 // committed output of the bar before the current one
	cur    float64 // output including the current bar
	last   float64 // current bar's input, so seed repaints can back it out
	ready  bool
}

func newSmoother(period int, alpha float64) *smoother {
	return &smoother{period: period, alpha: alpha}
}

// step feeds the next input. next reports whether the input opens a new bar;
// false repaints the current one. It returns the resulting output and whether
// the smoother has seeded.
func (s *smoother) step(x float64, next bool) (float64, bool) {
	if next {
		s.count++
		switch {
		case s.count < s.period:
			s.sum += x
		case s.count == s.period:
			s.sum += x
			s.cur = s.sum / float64(s.period)
			s.ready = true
		default:
			s.prev = s.cur
			s.cur = s.alpha*x + (1-s.alpha)*s.prev
		}
		s.last = x
		return s.cur, s.ready
	}
	switch {
	case s.count == 0:
		// nothing to repaint yet
		return s.cur, s.ready
	case s.count < s.period:
		s.sum += x - s.last
	case s.count == s.period:
		s.sum += x - s.last
		s.cur = s.sum / float64(s.period)
	default:
		s.cur = s.alpha*x + (1-s.alpha)*s.prev
	}
	s.last = x
	return s.cur, s.ready
}

// peek previews step(x, true) without mutating state. During seeding it
// returns the partial mean including x, so callers can still render a
// forming value before warm-up completes.
func (s *smoother) peek(x float64) (float64, bool) {
	count := s.count + 1
	switch {
	case count < s.period:
		return (s.sum + x) / float64(count), false
	case count == s.period:
		return (s.sum + x) / float64(s.period), true
	default:
		return s.alpha*x + (1-s.alpha)*s.cur, true
	}
}

func (s *smoother) state() SmootherState {
	return SmootherState{
		Count: s.count,
		Sum:   s.sum,
		Prev:  s.prev,
		Cur:   s.cur,
		Last:  s.last,
		Ready: s.ready,
	}
}

func (s *smoother) restoreState(st SmootherState) {
	s.count = st.Count
	s.sum = st.Sum
	s.prev = st.Prev
	s.cur = st.Cur
	s.last = st.Last
	s.ready = st.Ready
}

func (s *smoother) reset() {
	s.count = 0
	s.sum, s.prev, s.cur, s.last = 0, 0, 0, 0
	s.ready = false
}
