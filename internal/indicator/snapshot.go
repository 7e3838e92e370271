package indicator

import (
	"encoding/json"
	"fmt"
)

// SnapshotVersion tags serialized engine state so older checkpoints can be
// refused instead of misread.
const SnapshotVersion = 2

// SmootherState is the serialized form of one exponential smoother.
type SmootherState struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Prev  float64 `json:"prev"`
	Cur   float64 `json:"cur"`
	Last  float64 `json:"last"`
	Ready bool    `json:"ready"`
}

// IndicatorSnapshot is the serialized state of one indicator instance. Which
// fields are populated depends on the type: windowed indicators carry the raw
// window, recursive ones carry smoother state.
type IndicatorSnapshot struct {
	Type       string  `json:"type"`
	Period     int     `json:"period"`
	Multiplier float64 `json:"multiplier,omitempty"`

	Window []float64 `json:"window,omitempty"` // SMA, BB
	Sum    float64   `json:"sum,omitempty"`    // SMA, BB running sum
	SumSq  float64   `json:"sum_sq,omitempty"` // SMA, BB running sum of squares

	Smooth *SmootherState `json:"smooth,omitempty"` // EMA, SMMA
	Gain   *SmootherState `json:"gain,omitempty"`   // RSI
	Loss   *SmootherState `json:"loss,omitempty"`   // RSI

	Count     int     `json:"count,omitempty"`      // RSI committed bars
	PrevClose float64 `json:"prev_close,omitempty"` // RSI
	CurClose  float64 `json:"cur_close,omitempty"`  // RSI

	Value  float64 `json:"value"`
	Upper  float64 `json:"upper,omitempty"`
	Lower  float64 `json:"lower,omitempty"`
	Ready  bool    `json:"ready"`
	LastTS int64   `json:"last_ts"`
	Seen   bool    `json:"seen"`
}

// key returns the identity a snapshot is matched on during restore.
func (s IndicatorSnapshot) key() Spec {
	return Spec{Type: s.Type, Period: s.Period, Multiplier: s.Multiplier}.normalized()
}

// EngineSnapshot is the serialized state of a whole engine.
type EngineSnapshot struct {
	Symbol     string              `json:"symbol"`
	LastTS     int64               `json:"last_ts"`
	Version    int                 `json:"version"`
	Indicators []IndicatorSnapshot `json:"indicators"`
}

// JSON serializes the snapshot for checkpoint stores.
func (s *EngineSnapshot) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// ParseEngineSnapshot decodes a checkpoint and refuses unknown versions.
func ParseEngineSnapshot(data []byte) (*EngineSnapshot, error) {
	var snap EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode engine snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return &snap, nil
}

// Snapshot captures the engine's full state. lastTS is the timestamp of the
// last committed observation, kept so feeds can resume past it.
func (e *Engine) Snapshot(lastTS int64) *EngineSnapshot {
	snap := &EngineSnapshot{
		Symbol:  e.symbol,
		LastTS:  lastTS,
		Version: SnapshotVersion,
	}
	for _, ind := range e.inds {
		snap.Indicators = append(snap.Indicators, ind.Snapshot())
	}
	return snap
}

// Restore applies a snapshot to the engine's current indicator set. Matching
// is by type, period and multiplier: instances with a matching snapshot take
// its state, instances without one stay cold, and snapshot entries with no
// matching instance are dropped. It returns how many instances restored warm
// and how many start cold.
func (e *Engine) Restore(snap *EngineSnapshot) (restored, cold int, err error) {
	if snap == nil {
		return 0, len(e.inds), nil
	}
	if snap.Version != SnapshotVersion {
		return 0, 0, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	byKey := make(map[Spec]IndicatorSnapshot, len(snap.Indicators))
	for _, is := range snap.Indicators {
		byKey[is.key()] = is
	}
	for i, ind := range e.inds {
		is, ok := byKey[e.specs[i]]
		if !ok {
			cold++
			continue
		}
		if err := ind.RestoreFromSnapshot(is); err != nil {
			return restored, cold, fmt.Errorf("%s: %w", e.specs[i].Name(), err)
		}
		restored++
	}
	return restored, cold, nil
}

func (s *SMA) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:   "SMA",
		Period: s.period,
		Window: s.win.values(),
		Sum:    s.win.sum,
		SumSq:  s.win.sumSq,
		Value:  s.current.Value,
		Ready:  s.current.Ready,
		LastTS: s.clk.lastTS,
		Seen:   s.clk.seen,
	}
}

func (s *SMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if snap.Type != "SMA" || snap.Period != s.period {
		return fmt.Errorf("snapshot mismatch: have SMA_%d, got %s", s.period, snap.key().Name())
	}
	s.win.restore(snap.Window, snap.Sum, snap.SumSq)
	s.current = Value{Value: snap.Value, Ready: snap.Ready}
	s.clk = clock{lastTS: snap.LastTS, seen: snap.Seen}
	return nil
}

func (b *BB) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:       "BB",
		Period:     b.period,
		Multiplier: b.mult,
		Window:     b.win.values(),
		Sum:        b.win.sum,
		SumSq:      b.win.sumSq,
		Value:      b.current.Value,
		Upper:      b.current.Upper,
		Lower:      b.current.Lower,
		Ready:      b.current.Ready,
		LastTS:     b.clk.lastTS,
		Seen:       b.clk.seen,
	}
}

func (b *BB) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if snap.Type != "BB" || snap.Period != b.period || snap.Multiplier != b.mult {
		return fmt.Errorf("snapshot mismatch: have BB_%d x%v, got %s x%v",
			b.period, b.mult, snap.key().Name(), snap.Multiplier)
	}
	b.win.restore(snap.Window, snap.Sum, snap.SumSq)
	b.current = Value{Value: snap.Value, Upper: snap.Upper, Lower: snap.Lower, Ready: snap.Ready}
	b.clk = clock{lastTS: snap.LastTS, seen: snap.Seen}
	return nil
}

func (e *EMA) Snapshot() IndicatorSnapshot {
	st := e.sm.state()
	return IndicatorSnapshot{
		Type:   "EMA",
		Period: e.period,
		Smooth: &st,
		Value:  e.current.Value,
		Ready:  e.current.Ready,
		LastTS: e.clk.lastTS,
		Seen:   e.clk.seen,
	}
}

func (e *EMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if snap.Type != "EMA" || snap.Period != e.period {
		return fmt.Errorf("snapshot mismatch: have EMA_%d, got %s", e.period, snap.key().Name())
	}
	if snap.Smooth == nil {
		return fmt.Errorf("snapshot for %s carries no smoother state", snap.key().Name())
	}
	e.sm.restoreState(*snap.Smooth)
	e.current = Value{Value: snap.Value, Ready: snap.Ready}
	e.clk = clock{lastTS: snap.LastTS, seen: snap.Seen}
	return nil
}

func (s *SMMA) Snapshot() IndicatorSnapshot {
	st := s.sm.state()
	return IndicatorSnapshot{
		Type:   "SMMA",
		Period: s.period,
		Smooth: &st,
		Value:  s.current.Value,
		Ready:  s.current.Ready,
		LastTS: s.clk.lastTS,
		Seen:   s.clk.seen,
	}
}

func (s *SMMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if snap.Type != "SMMA" || snap.Period != s.period {
		return fmt.Errorf("snapshot mismatch: have SMMA_%d, got %s", s.period, snap.key().Name())
	}
	if snap.Smooth == nil {
		return fmt.Errorf("snapshot for %s carries no smoother state", snap.key().Name())
	}
	s.sm.restoreState(*snap.Smooth)
	s.current = Value{Value: snap.Value, Ready: snap.Ready}
	s.clk = clock{lastTS: snap.LastTS, seen: snap.Seen}
	return nil
}

func (r *RSI) Snapshot() IndicatorSnapshot {
	gain, loss := r.gain.state(), r.loss.state()
	return IndicatorSnapshot{
		Type:      "RSI",
		Period:    r.period,
		Gain:      &gain,
		Loss:      &loss,
		Count:     r.count,
		PrevClose: r.prevClose,
		CurClose:  r.curClose,
		Value:     r.current.Value,
		Ready:     r.current.Ready,
		LastTS:    r.clk.lastTS,
		Seen:      r.clk.seen,
	}
}

func (r *RSI) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if snap.Type != "RSI" || snap.Period != r.period {
		return fmt.Errorf("snapshot mismatch: have RSI_%d, got %s", r.period, snap.key().Name())
	}
	if snap.Gain == nil || snap.Loss == nil {
		return fmt.Errorf("snapshot for %s carries no smoother state", snap.key().Name())
	}
	r.gain.restoreState(*snap.Gain)
	r.loss.restoreState(*snap.Loss)
	r.count = snap.Count
	r.prevClose = snap.PrevClose
	r.curClose = snap.CurClose
	r.current = Value{Value: snap.Value, Ready: snap.Ready}
	r.clk = clock{lastTS: snap.LastTS, seen: snap.Seen}
	return nil
}
