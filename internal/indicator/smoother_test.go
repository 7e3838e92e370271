package indicator

import "testing"

func TestSmoother_SeedIsMeanOfFirstPeriod(t *testing.T) {
	sm := newSmoother(3, 0.5)
	if _, ready := sm.step(3, true); ready {
		t.Fatal("ready after 1 input")
	}
	if _, ready := sm.step(6, true); ready {
		t.Fatal("ready after 2 inputs")
	}
	v, ready := sm.step(9, true)
	if !ready {
		t.Fatal("not ready after period inputs")
	}
	assertClose(t, v, 6, "seed")
}

func TestSmoother_RecursionAfterSeed(t *testing.T) {
	sm := newSmoother(2, 0.5)
	sm.step(2, true)
	seed, _ := sm.step(4, true) // (2+4)/2 = 3
	assertClose(t, seed, 3, "seed")
	v, _ := sm.step(7, true) // 0.5*7 + 0.5*3
	assertClose(t, v, 5, "first recursion")
	v, _ = sm.step(1, true) // 0.5*1 + 0.5*5
	assertClose(t, v, 3, "second recursion")
}

func TestSmoother_RepaintDuringSeedAdjustsAccumulator(t *testing.T) {
	sm := newSmoother(3, 0.5)
	sm.step(3, true)
	sm.step(100, true)
	sm.step(6, false) // the second bar actually closed at 6
	v, ready := sm.step(9, true)
	if !ready {
		t.Fatal("not ready after period bars")
	}
	assertClose(t, v, 6, "seed after repaint")
}

func TestSmoother_RepaintAfterSeedRecomputesFromCommittedPrev(t *testing.T) {
	sm := newSmoother(2, 0.5)
	sm.step(2, true)
	sm.step(4, true) // seed 3
	sm.step(9, true) // 0.5*9 + 0.5*3 = 6
	v, _ := sm.step(5, false)
	// repaint recomputes from the committed 3, never from the painted 6
	assertClose(t, v, 4, "repainted value")
	v, _ = sm.step(5, false)
	assertClose(t, v, 4, "repaint is idempotent")
	// the next bar smooths against the final repainted value
	v, _ = sm.step(8, true) // 0.5*8 + 0.5*4
	assertClose(t, v, 6, "bar after repaint")
}

func TestSmoother_RepaintOfSeedBarRecomputesSeed(t *testing.T) {
	sm := newSmoother(2, 0.5)
	sm.step(2, true)
	sm.step(4, true)  // seed (2+4)/2 = 3
	v, ready := sm.step(10, false)
	if !ready {
		t.Fatal("seed bar repaint should stay ready")
	}
	assertClose(t, v, 6, "recomputed seed") // (2+10)/2
}

func TestSmoother_PeekMatchesStepWithoutMutating(t *testing.T) {
	sm := newSmoother(3, 0.25)
	for _, x := range []float64{4, 8, 6, 10} {
		peeked, peekReady := sm.peek(x)
		before := *sm
		if got, _ := sm.peek(x); got != peeked {
			t.Fatal("peek not deterministic")
		}
		if *sm != before {
			t.Fatal("peek mutated state")
		}
		stepped, stepReady := sm.step(x, true)
		if peekReady != stepReady {
			t.Fatalf("peek ready %v, step ready %v", peekReady, stepReady)
		}
		if stepReady {
			assertClose(t, peeked, stepped, "peek vs step")
		}
	}
}

func TestSmoother_StateRoundTrip(t *testing.T) {
	sm := newSmoother(3, 0.4)
	for _, x := range []float64{5, 7, 6, 9, 4} {
		sm.step(x, true)
	}
	clone := newSmoother(3, 0.4)
	clone.restoreState(sm.state())
	for _, x := range []float64{11, 2, 8} {
		a, _ := sm.step(x, true)
		b, _ := clone.step(x, true)
		if a != b {
			t.Fatalf("restored smoother diverged: %.12f vs %.12f", a, b)
		}
	}
}
