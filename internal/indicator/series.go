package indicator

import (
	"fmt"

	"quantedge-ta/internal/model"
)

// Batch series functions fold the streaming indicators over a whole slice of
// observations, so batch and streaming results are the same code path and
// cannot diverge. The output is aligned index-for-index with the input;
// positions before warm-up completes carry Ready=false.

// SMASeries computes the simple moving average series for the observations.
func SMASeries(obs []model.Observation, period int) ([]Value, error) {
	ind, err := NewSMA(period)
	if err != nil {
		return nil, err
	}
	return fold(ind, obs)
}

// EMASeries computes the exponential moving average series for the
// observations.
func EMASeries(obs []model.Observation, period int) ([]Value, error) {
	ind, err := NewEMA(period)
	if err != nil {
		return nil, err
	}
	return fold(ind, obs)
}

// SMMASeries computes the Wilder smoothed moving average series for the
// observations.
func SMMASeries(obs []model.Observation, period int) ([]Value, error) {
	ind, err := NewSMMA(period)
	if err != nil {
		return nil, err
	}
	return fold(ind, obs)
}

// RSISeries computes the relative strength index series for the observations.
func RSISeries(obs []model.Observation, period int) ([]Value, error) {
	ind, err := NewRSI(period)
	if err != nil {
		return nil, err
	}
	return fold(ind, obs)
}

// BBSeries computes the Bollinger Bands series for the observations. A
// multiplier of 0 selects DefaultBBMultiplier.
func BBSeries(obs []model.Observation, period int, multiplier float64) ([]Value, error) {
	if multiplier == 0 {
		multiplier = DefaultBBMultiplier
	}
	ind, err := NewBB(period, multiplier)
	if err != nil {
		return nil, err
	}
	return fold(ind, obs)
}

func fold(ind Indicator, obs []model.Observation) ([]Value, error) {
	out := make([]Value, len(obs))
	for i, o := range obs {
		v, err := ind.Update(o)
		if err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
