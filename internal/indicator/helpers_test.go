package indicator

import (
	"math"
	"testing"

	"quantedge-ta/internal/model"
)

const eps = 1e-9

func assertClose(t *testing.T, got, want float64, msg string) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Fatalf("%s: got %.12f, want %.12f", msg, got, want)
	}
}

func assertReady(t *testing.T, v Value, msg string) {
	t.Helper()
	if !v.Ready {
		t.Fatalf("%s: value not ready", msg)
	}
}

func assertNotReady(t *testing.T, v Value, msg string) {
	t.Helper()
	if v.Ready {
		t.Fatalf("%s: value unexpectedly ready (%.6f)", msg, v.Value)
	}
}

// obsSeries builds observations with timestamps 1..n over the given closes.
func obsSeries(closes ...float64) []model.Observation {
	out := make([]model.Observation, len(closes))
	for i, c := range closes {
		out[i] = model.Observation{TS: int64(i + 1), Close: c}
	}
	return out
}

// feed runs every observation through the indicator and returns the aligned
// values.
func feed(t *testing.T, ind Indicator, obs []model.Observation) []Value {
	t.Helper()
	out := make([]Value, len(obs))
	for i, o := range obs {
		v, err := ind.Update(o)
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		out[i] = v
	}
	return out
}

// syntheticCloses generates a deterministic wavy price series for property
// tests, strictly positive and non-trivial.
func syntheticCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		x := float64(i)
		out[i] = 100 + 10*math.Sin(x/3) + 3*math.Cos(x/7) + 0.25*x
	}
	return out
}

// Reference implementations recomputed from scratch at every index. They are
// deliberately naive so the streaming code is checked against the definition
// rather than against itself.

func bruteSMA(closes []float64, i, period int) (float64, bool) {
	if i+1 < period {
		return 0, false
	}
	sum := 0.0
	for _, c := range closes[i+1-period : i+1] {
		sum += c
	}
	return sum / float64(period), true
}

func bruteMeanVar(window []float64) (mean, variance float64) {
	for _, c := range window {
		mean += c
	}
	mean /= float64(len(window))
	for _, c := range window {
		d := c - mean
		variance += d * d
	}
	variance /= float64(len(window))
	return mean, variance
}

func bruteEMA(closes []float64, i, period int) (float64, bool) {
	if i+1 < period {
		return 0, false
	}
	alpha := 2.0 / (float64(period) + 1.0)
	ema, _ := bruteSMA(closes, period-1, period)
	for j := period; j <= i; j++ {
		ema = alpha*closes[j] + (1-alpha)*ema
	}
	return ema, true
}

func bruteRSI(closes []float64, i, period int) (float64, bool) {
	if i < period {
		return 0, false
	}
	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for j := 1; j <= period; j++ {
		diff := closes[j] - closes[j-1]
		if diff > 0 {
			avgGain += diff
		} else {
			avgLoss -= diff
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	for j := period + 1; j <= i; j++ {
		diff := closes[j] - closes[j-1]
		g, l := 0.0, 0.0
		if diff > 0 {
			g = diff
		} else {
			l = -diff
		}
		avgGain = alpha*g + (1-alpha)*avgGain
		avgLoss = alpha*l + (1-alpha)*avgLoss
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	return 100 - 100/(1+avgGain/avgLoss), true
}
