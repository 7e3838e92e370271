// Package ringbuf provides a fixed-capacity sliding ring of prices backing
// the rolling-window indicators. Pushing into a full ring evicts and returns
// the oldest value; Replace swaps the newest value in place, which is how
// same-timestamp repaints reach the window without advancing it.
package ringbuf

// Ring is a fixed-capacity sliding window of float64 values.
// Not safe for concurrent use.
type Ring struct {
	buf  []float64
	head int // index of the oldest value once full
	tail int // index of the newest value
	len  int
}

// New creates a ring with the given capacity. Capacity must be >= 1;
// callers validate periods before constructing windows.
func New(capacity int) *Ring {
	return &Ring{buf: make([]float64, capacity)}
}

// Full reports whether the ring holds capacity values.
func (r *Ring) Full() bool {
	return r.len == len(r.buf)
}

// Len returns the current number of values held.
func (r *Ring) Len() int {
	return r.len
}

// Push appends a value. If the ring is full, the oldest value is evicted
// and returned with evicted=true.
func (r *Ring) Push(v float64) (old float64, evicted bool) {
	if r.Full() {
		old = r.buf[r.head]
		r.buf[r.head] = v
		r.tail = r.head
		r.head++
		if r.head == len(r.buf) {
			r.head = 0
		}
		return old, true
	}
	r.buf[r.len] = v
	r.tail = r.len
	r.len++
	return 0, false
}

// Replace swaps the newest value for v and returns the value it displaced.
// Calling Replace on an empty ring is a programming error; indicators only
// repaint after at least one push.
func (r *Ring) Replace(v float64) float64 {
	old := r.buf[r.tail]
	r.buf[r.tail] = v
	return old
}

// Oldest returns the value the next Push would evict. Calling Oldest on an
// empty ring is a programming error.
func (r *Ring) Oldest() float64 {
	if r.Full() {
		return r.buf[r.head]
	}
	return r.buf[0]
}

// Snapshot returns a copy of the stored values oldest-first, for state
// serialization.
func (r *Ring) Snapshot() []float64 {
	out := make([]float64, r.len)
	if !r.Full() {
		copy(out, r.buf[:r.len])
		return out
	}
	n := copy(out, r.buf[r.head:])
	copy(out[n:], r.buf[:r.head])
	return out
}

// Restore rebuilds the ring contents from an oldest-first slice produced by
// Snapshot. Values beyond capacity are dropped from the front.
func (r *Ring) Restore(values []float64) {
	if len(values) > len(r.buf) {
		values = values[len(values)-len(r.buf):]
	}
	copy(r.buf, values)
	r.head = 0
	r.len = len(values)
	if r.len > 0 {
		r.tail = r.len - 1
	} else {
		r.tail = 0
	}
}
