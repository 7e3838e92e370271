package indicator

import (
	"testing"

	"quantedge-ta/internal/model"
)

func TestEngineSnapshot_RoundTripResumesExactly(t *testing.T) {
	closes := syntheticCloses(40)
	obs := obsSeries(closes...)
	specs := testSpecs()

	full, err := NewEngine("BTCUSDT", specs)
	if err != nil {
		t.Fatal(err)
	}
	var fullResults []model.IndicatorResult
	for _, o := range obs {
		fullResults, err = full.Process(o)
		if err != nil {
			t.Fatal(err)
		}
	}

	// run half the stream, checkpoint through JSON, resume in a fresh engine
	half, err := NewEngine("BTCUSDT", specs)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range obs[:20] {
		if _, err := half.Process(o); err != nil {
			t.Fatal(err)
		}
	}
	data, err := half.Snapshot(obs[19].TS).JSON()
	if err != nil {
		t.Fatal(err)
	}
	snap, err := ParseEngineSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Symbol != "BTCUSDT" || snap.LastTS != obs[19].TS {
		t.Fatalf("snapshot envelope wrong: %+v", snap)
	}

	resumed, err := NewEngine("BTCUSDT", specs)
	if err != nil {
		t.Fatal(err)
	}
	restored, cold, err := resumed.Restore(snap)
	if err != nil {
		t.Fatal(err)
	}
	if restored != len(specs) || cold != 0 {
		t.Fatalf("restored=%d cold=%d, want %d and 0", restored, cold, len(specs))
	}
	var resumedResults []model.IndicatorResult
	for _, o := range obs[20:] {
		resumedResults, err = resumed.Process(o)
		if err != nil {
			t.Fatal(err)
		}
	}
	for i := range fullResults {
		if fullResults[i] != resumedResults[i] {
			t.Fatalf("resumed run diverged at %s: %+v vs %+v",
				fullResults[i].Name, fullResults[i], resumedResults[i])
		}
	}
}

func TestEngineSnapshot_UnmatchedInstancesStartCold(t *testing.T) {
	src, err := NewEngine("BTCUSDT", []Spec{{Type: "SMA", Period: 3}})
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range syntheticCloses(10) {
		if _, err := src.Process(model.Observation{TS: int64(i + 1), Close: c}); err != nil {
			t.Fatal(err)
		}
	}
	snap := src.Snapshot(10)

	dst, err := NewEngine("BTCUSDT", []Spec{
		{Type: "SMA", Period: 3},
		{Type: "SMA", Period: 7},
		{Type: "RSI", Period: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	restored, cold, err := dst.Restore(snap)
	if err != nil {
		t.Fatal(err)
	}
	if restored != 1 || cold != 2 {
		t.Fatalf("restored=%d cold=%d, want 1 and 2", restored, cold)
	}
	if !dst.inds[0].Ready() {
		t.Fatal("matched SMA_3 should restore warm")
	}
	if dst.inds[1].Ready() || dst.inds[2].Ready() {
		t.Fatal("unmatched instances should start cold")
	}
}

func TestEngineSnapshot_BBMatchRequiresSameMultiplier(t *testing.T) {
	src, err := NewEngine("BTCUSDT", []Spec{{Type: "BB", Period: 3, Multiplier: 2}})
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range syntheticCloses(6) {
		if _, err := src.Process(model.Observation{TS: int64(i + 1), Close: c}); err != nil {
			t.Fatal(err)
		}
	}
	dst, err := NewEngine("BTCUSDT", []Spec{{Type: "BB", Period: 3, Multiplier: 1.5}})
	if err != nil {
		t.Fatal(err)
	}
	restored, cold, err := dst.Restore(src.Snapshot(6))
	if err != nil {
		t.Fatal(err)
	}
	if restored != 0 || cold != 1 {
		t.Fatalf("restored=%d cold=%d, want 0 and 1", restored, cold)
	}
}

func TestParseEngineSnapshot_RefusesUnknownVersion(t *testing.T) {
	if _, err := ParseEngineSnapshot([]byte(`{"symbol":"X","version":1}`)); err == nil {
		t.Fatal("stale snapshot version accepted")
	}
	if _, err := ParseEngineSnapshot([]byte(`not json`)); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestEngine_RestoreNilSnapshotIsColdStart(t *testing.T) {
	eng, err := NewEngine("BTCUSDT", testSpecs())
	if err != nil {
		t.Fatal(err)
	}
	restored, cold, err := eng.Restore(nil)
	if err != nil {
		t.Fatal(err)
	}
	if restored != 0 || cold != len(testSpecs()) {
		t.Fatalf("restored=%d cold=%d, want 0 and %d", restored, cold, len(testSpecs()))
	}
}
