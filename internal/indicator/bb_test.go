package indicator

import (
	"errors"
	"math"
	"testing"

	"quantedge-ta/internal/model"
)

func TestBB_RejectsInvalidParameters(t *testing.T) {
	if _, err := NewBB(0, 2); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("got %v, want ErrInvalidPeriod", err)
	}
	for _, m := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := NewBB(5, m); !errors.Is(err, ErrInvalidMultiplier) {
			t.Fatalf("multiplier %v: got %v, want ErrInvalidMultiplier", m, err)
		}
	}
}

func TestBB_HandComputed(t *testing.T) {
	bb, err := NewBB(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	vals := feed(t, bb, obsSeries(1, 3, 5))
	assertNotReady(t, vals[0], "index 0")

	// window {1,3}: mean 2, population sd 1
	assertClose(t, vals[1].Value, 2, "middle")
	assertClose(t, vals[1].Upper, 4, "upper")
	assertClose(t, vals[1].Lower, 0, "lower")

	// window {3,5}: mean 4, sd 1
	assertClose(t, vals[2].Value, 4, "middle after slide")
	assertClose(t, vals[2].Upper, 6, "upper after slide")
	assertClose(t, vals[2].Lower, 2, "lower after slide")
}

func TestBB_BandsAreSymmetricAroundMiddle(t *testing.T) {
	closes := syntheticCloses(50)
	bb, _ := NewBB(10, 1.5)
	for _, v := range feed(t, bb, obsSeries(closes...)) {
		if !v.Ready {
			continue
		}
		assertClose(t, v.Upper-v.Value, v.Value-v.Lower, "band symmetry")
		if v.Upper < v.Lower {
			t.Fatalf("upper %.6f below lower %.6f", v.Upper, v.Lower)
		}
	}
}

func TestBB_ConstantWindowCollapsesBands(t *testing.T) {
	bb, _ := NewBB(4, 2)
	var last Value
	for i := 0; i < 7; i++ {
		v, err := bb.Update(model.Observation{TS: int64(i + 1), Close: 99.5})
		if err != nil {
			t.Fatal(err)
		}
		last = v
	}
	assertReady(t, last, "constant series")
	if last.Upper != last.Value || last.Lower != last.Value {
		t.Fatalf("bands did not collapse: upper=%v middle=%v lower=%v",
			last.Upper, last.Value, last.Lower)
	}
	if last.Width() != 0 {
		t.Fatalf("width = %v, want 0", last.Width())
	}
}

func TestBB_MatchesBruteForce(t *testing.T) {
	closes := syntheticCloses(45)
	bb, _ := NewBB(12, 2)
	vals := feed(t, bb, obsSeries(closes...))
	for i := range closes {
		if i+1 < 12 {
			assertNotReady(t, vals[i], "warm-up index")
			continue
		}
		mean, variance := bruteMeanVar(closes[i+1-12 : i+1])
		sd := math.Sqrt(variance)
		assertClose(t, vals[i].Value, mean, "middle vs brute")
		assertClose(t, vals[i].Upper, mean+2*sd, "upper vs brute")
		assertClose(t, vals[i].Lower, mean-2*sd, "lower vs brute")
	}
}

func TestBB_RepaintSameTimestamp(t *testing.T) {
	bb, _ := NewBB(2, 2)
	feed(t, bb, []model.Observation{{TS: 1, Close: 1}, {TS: 2, Close: 3}})
	v, err := bb.Update(model.Observation{TS: 2, Close: 5})
	if err != nil {
		t.Fatal(err)
	}
	// window is {1,5}: mean 3, sd 2
	assertClose(t, v.Value, 3, "repainted middle")
	assertClose(t, v.Upper, 7, "repainted upper")
	assertClose(t, v.Lower, -1, "repainted lower")
}
