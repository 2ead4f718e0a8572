package model

const defaultRingCap = 10

// Ring is a fixed-size FIFO window of float64 samples.
// When the window is full, new pushes overwrite the oldest entry.
type Ring struct {
	buf  []float64
	head int // index of the next write position
	size int // number of valid entries
}

// NewRing creates a Ring with the given capacity.
// If capacity <= 0, defaultRingCap (10) is used.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = defaultRingCap
	}
	return &Ring{
		buf: make([]float64, capacity),
	}
}

// Push appends v to the window, overwriting the oldest value if full.
func (r *Ring) Push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// Len returns the number of valid entries.
func (r *Ring) Len() int {
	return r.size
}

// Cap returns the window capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Clear resets the window to empty without changing its capacity.
func (r *Ring) Clear() {
	r.head = 0
	r.size = 0
}

// Latest returns the most recently pushed value, or 0 when empty.
func (r *Ring) Latest() float64 {
	return r.At(r.size - 1)
}

// At returns the i-th value in chronological order (0 = oldest).
// Out-of-range indexes return 0.
func (r *Ring) At(i int) float64 {
	if i < 0 || i >= r.size {
		return 0
	}
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	return r.buf[(start+i)%len(r.buf)]
}

// Values returns the window contents in chronological order (oldest first).
func (r *Ring) Values() []float64 {
	out := make([]float64, r.size)
	// oldest entry sits at (head - size + cap) % cap
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Reset replaces the window contents with vals, keeping only the newest
// Cap() values. Used when restoring persisted state.
func (r *Ring) Reset(vals []float64) {
	r.Clear()
	if len(vals) > len(r.buf) {
		vals = vals[len(vals)-len(r.buf):]
	}
	for _, v := range vals {
		r.Push(v)
	}
}
