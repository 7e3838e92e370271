package ringbuf

import "testing"

func TestRing_FillingDoesNotEvict(t *testing.T) {
	r := New(3)
	for i, v := range []float64{1, 2, 3} {
		if _, evicted := r.Push(v); evicted {
			t.Errorf("push %d: unexpected eviction", i)
		}
	}
	if !r.Full() {
		t.Error("ring should be full after capacity pushes")
	}
}

func TestRing_FullEvictsOldest(t *testing.T) {
	r := New(3)
	r.Push(1)
	r.Push(2)
	r.Push(3)

	cases := []struct{ push, wantOld float64 }{
		{4, 1}, {5, 2}, {6, 3},
	}
	for _, c := range cases {
		old, evicted := r.Push(c.push)
		if !evicted {
			t.Fatalf("push %v: expected eviction", c.push)
		}
		if old != c.wantOld {
			t.Errorf("push %v: evicted %v, want %v", c.push, old, c.wantOld)
		}
	}
}

func TestRing_ReplaceSwapsNewest(t *testing.T) {
	r := New(3)
	r.Push(1)
	r.Push(2)

	if old := r.Replace(9); old != 2 {
		t.Errorf("Replace returned %v, want 2", old)
	}

	// Subsequent pushes must still evict in order, seeing the replaced value.
	r.Push(3)
	if old, _ := r.Push(4); old != 1 {
		t.Errorf("evicted %v, want 1", old)
	}
	if old, _ := r.Push(5); old != 9 {
		t.Errorf("evicted %v, want 9 (the replaced value)", old)
	}
}

func TestRing_ReplaceWhenFull(t *testing.T) {
	r := New(2)
	r.Push(1)
	r.Push(2)
	if old := r.Replace(9); old != 2 {
		t.Errorf("Replace returned %v, want 2", old)
	}
	if old, _ := r.Push(3); old != 1 {
		t.Errorf("evicted %v, want 1", old)
	}
	if old, _ := r.Push(4); old != 9 {
		t.Errorf("evicted %v, want 9", old)
	}
}

func TestRing_CapacityOne(t *testing.T) {
	r := New(1)
	if _, evicted := r.Push(1); evicted {
		t.Error("first push should not evict")
	}
	if !r.Full() {
		t.Error("capacity-1 ring should be full after one push")
	}
	if old, _ := r.Push(2); old != 1 {
		t.Errorf("evicted %v, want 1", old)
	}
	if old := r.Replace(9); old != 2 {
		t.Errorf("Replace returned %v, want 2", old)
	}
	if old, _ := r.Push(3); old != 9 {
		t.Errorf("evicted %v, want 9", old)
	}
}

func TestRing_WrapAround(t *testing.T) {
	r := New(2)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		r.Push(v)
	}
	if old, _ := r.Push(6); old != 4 {
		t.Errorf("evicted %v, want 4", old)
	}
}

func TestRing_SnapshotRestoreRoundTrip(t *testing.T) {
	r := New(3)
	for _, v := range []float64{1, 2, 3, 4} { // wraps: holds 2,3,4
		r.Push(v)
	}

	snap := r.Snapshot()
	want := []float64{2, 3, 4}
	if len(snap) != len(want) {
		t.Fatalf("snapshot len %d, want %d", len(snap), len(want))
	}
	for i := range want {
		if snap[i] != want[i] {
			t.Errorf("snapshot[%d] = %v, want %v", i, snap[i], want[i])
		}
	}

	restored := New(3)
	restored.Restore(snap)
	if old, _ := restored.Push(5); old != 2 {
		t.Errorf("restored ring evicted %v, want 2", old)
	}
	if old := restored.Replace(9); old != 5 {
		t.Errorf("restored ring Replace returned %v, want 5", old)
	}
}
