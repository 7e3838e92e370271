package indicator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"quantedge-ta/internal/model"
)

// Spec identifies one indicator instance to run: its type, period and, for
// band indicators, the band multiplier.
type Spec struct {
	Type       string  `json:"type"`
	Period     int     `json:"period"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

// Name returns the instance name used in results and checkpoints,
// e.g. "SMA_20".
func (s Spec) Name() string {
	return s.Type + "_" + strconv.Itoa(s.Period)
}

// normalized upper-cases the type and applies the default multiplier, so
// specs from config files and specs from checkpoints compare equal.
func (s Spec) normalized() Spec {
	s.Type = strings.ToUpper(strings.TrimSpace(s.Type))
	if s.Type == "BB" && s.Multiplier == 0 {
		s.Multiplier = DefaultBBMultiplier
	}
	if s.Type != "BB" {
		s.Multiplier = 0
	}
	return s
}

// newIndicator constructs the indicator a normalized spec describes.
func newIndicator(s Spec) (Snapshottable, error) {
	switch s.Type {
	case "SMA":
		return NewSMA(s.Period)
	case "EMA":
		return NewEMA(s.Period)
	case "SMMA":
		return NewSMMA(s.Period)
	case "RSI":
		return NewRSI(s.Period)
	case "BB":
		return NewBB(s.Period, s.Multiplier)
	default:
		return nil, fmt.Errorf("unknown indicator type %q", s.Type)
	}
}

// ValidateSpecs checks every spec without constructing anything, so a bad
// config fails as a whole before any state exists.
func ValidateSpecs(specs []Spec) error {
	if len(specs) == 0 {
		return fmt.Errorf("no indicator specs configured")
	}
	for _, s := range specs {
		s = s.normalized()
		switch s.Type {
		case "SMA", "EMA", "SMMA", "RSI", "BB":
		default:
			return fmt.Errorf("unknown indicator type %q", s.Type)
		}
		if s.Period < 1 {
			return fmt.Errorf("%s: %w: got %d", s.Name(), ErrInvalidPeriod, s.Period)
		}
		if s.Type == "BB" && (!(s.Multiplier > 0) || math.IsInf(s.Multiplier, 0)) {
			return fmt.Errorf("%s: %w: got %v", s.Name(), ErrInvalidMultiplier, s.Multiplier)
		}
	}
	return nil
}

// Engine runs a set of indicators over one symbol's observation stream. It
// holds no locks; callers own the serialization of observations.
type Engine struct {
	symbol string
	specs  []Spec
	inds   []Snapshottable
}

// NewEngine builds an engine for the symbol with one indicator per spec.
func NewEngine(symbol string, specs []Spec) (*Engine, error) {
	if err := ValidateSpecs(specs); err != nil {
		return nil, err
	}
	e := &Engine{symbol: symbol}
	for _, s := range specs {
		s = s.normalized()
		ind, err := newIndicator(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
		e.specs = append(e.specs, s)
		e.inds = append(e.inds, ind)
	}
	return e, nil
}

// Symbol returns the symbol this engine computes for.
func (e *Engine) Symbol() string { return e.symbol }

// Specs returns the normalized specs the engine runs, in order.
func (e *Engine) Specs() []Spec {
	out := make([]Spec, len(e.specs))
	copy(out, e.specs)
	return out
}

// Process feeds one committed observation to every indicator and returns one
// result per indicator, in spec order. Non-finite closes are rejected before
// any indicator sees them, so a failed call leaves every indicator unchanged.
func (e *Engine) Process(obs model.Observation) ([]model.IndicatorResult, error) {
	if !obs.Finite() {
		return nil, fmt.Errorf("%w: close=%v ts=%d", ErrNonFiniteInput, obs.Close, obs.TS)
	}
	results := make([]model.IndicatorResult, 0, len(e.inds))
	for i, ind := range e.inds {
		v, err := ind.Update(obs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.specs[i].Name(), err)
		}
		results = append(results, e.result(e.specs[i], obs.TS, v, false))
	}
	return results, nil
}

// ProcessPeek previews every indicator against a still-forming bar without
// committing anything. Non-finite closes yield no results.
func (e *Engine) ProcessPeek(obs model.Observation) []model.IndicatorResult {
	if !obs.Finite() {
		return nil
	}
	results := make([]model.IndicatorResult, 0, len(e.inds))
	for i, ind := range e.inds {
		results = append(results, e.result(e.specs[i], obs.TS, ind.Peek(obs.Close), true))
	}
	return results
}

// ReloadSpecs swaps the engine's spec set in place. Indicators whose
// normalized spec survives keep their state; new specs start cold. It returns
// how many instances were preserved and how many were created.
func (e *Engine) ReloadSpecs(specs []Spec) (preserved, created int, err error) {
	if err := ValidateSpecs(specs); err != nil {
		return 0, 0, err
	}
	prev := make(map[Spec]Snapshottable, len(e.specs))
	for i, s := range e.specs {
		prev[s] = e.inds[i]
	}
	var newSpecs []Spec
	var newInds []Snapshottable
	for _, s := range specs {
		s = s.normalized()
		if ind, ok := prev[s]; ok {
			newSpecs = append(newSpecs, s)
			newInds = append(newInds, ind)
			delete(prev, s)
			preserved++
			continue
		}
		ind, err := newIndicator(s)
		if err != nil {
			return 0, 0, fmt.Errorf("%s: %w", s.Name(), err)
		}
		newSpecs = append(newSpecs, s)
		newInds = append(newInds, ind)
		created++
	}
	e.specs = newSpecs
	e.inds = newInds
	return preserved, created, nil
}

func (e *Engine) result(s Spec, ts int64, v Value, live bool) model.IndicatorResult {
	return model.IndicatorResult{
		Name:   s.Name(),
		Symbol: e.symbol,
		TS:     ts,
		Value:  v.Value,
		Upper:  v.Upper,
		Lower:  v.Lower,
		Ready:  v.Ready,
		Live:   live,
	}
}
