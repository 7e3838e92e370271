package indicator

import (
	"errors"
	"testing"

	"quantedge-ta/internal/model"
)

func TestEMA_RejectsInvalidPeriod(t *testing.T) {
	if _, err := NewEMA(0); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("got %v, want ErrInvalidPeriod", err)
	}
}

func TestEMA_HandComputed(t *testing.T) {
	// period 3, alpha = 2/(3+1) = 0.5
	ema, err := NewEMA(3)
	if err != nil {
		t.Fatal(err)
	}
	vals := feed(t, ema, obsSeries(1, 2, 3, 4, 5))
	assertNotReady(t, vals[0], "index 0")
	assertNotReady(t, vals[1], "index 1")
	assertClose(t, vals[2].Value, 2, "seed")              // (1+2+3)/3
	assertClose(t, vals[3].Value, 3, "first recursion")   // 0.5*4 + 0.5*2
	assertClose(t, vals[4].Value, 4, "second recursion")  // 0.5*5 + 0.5*3
}

func TestEMA_SeedEqualsSMAAtWarmUp(t *testing.T) {
	closes := syntheticCloses(40)
	for _, period := range []int{1, 2, 5, 13} {
		ema, _ := NewEMA(period)
		sma, _ := NewSMA(period)
		obs := obsSeries(closes...)
		emaVals := feed(t, ema, obs)
		smaVals := feed(t, sma, obs)
		i := period - 1
		assertReady(t, emaVals[i], "ema at warm-up index")
		assertClose(t, emaVals[i].Value, smaVals[i].Value, "ema seed vs sma")
	}
}

func TestEMA_MatchesReference(t *testing.T) {
	closes := syntheticCloses(60)
	ema, _ := NewEMA(9)
	vals := feed(t, ema, obsSeries(closes...))
	for i := range closes {
		want, defined := bruteEMA(closes, i, 9)
		if vals[i].Ready != defined {
			t.Fatalf("index %d: ready=%v, want %v", i, vals[i].Ready, defined)
		}
		if defined {
			assertClose(t, vals[i].Value, want, "ema vs reference")
		}
	}
}

func TestEMA_RepaintSameTimestamp(t *testing.T) {
	ema, _ := NewEMA(3) // alpha 0.5
	feed(t, ema, obsSeries(1, 2, 3)) // seed 2
	ema.Update(model.Observation{TS: 4, Close: 10}) // 0.5*10 + 0.5*2 = 6
	v, err := ema.Update(model.Observation{TS: 4, Close: 4})
	if err != nil {
		t.Fatal(err)
	}
	// recomputed from the committed seed, exactly as if 4 had closed the bar
	assertClose(t, v.Value, 3, "repainted ema")
}

func TestEMA_PeekMatchesUpdate(t *testing.T) {
	ema, _ := NewEMA(3)
	feed(t, ema, obsSeries(2, 4, 6, 8))
	p := ema.Peek(10)
	v, err := ema.Update(model.Observation{TS: 5, Close: 10})
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, p.Value, v.Value, "peek vs update")
}
