package model

import (
	"math"
	"slices"
)

const minAveragerCap = 3

// Averager smooths a noisy series with a trimmed mean over a sliding window.
//
// Trimming is symmetric: trim/2 values are discarded from each end of the
// sorted window. When the window holds trim values or fewer, no trimming
// takes place and Get falls back to the plain mean.
type Averager struct {
	window    *Ring
	history   *Ring // trimmed mean recorded after every Put
	trim      int
	precision int
	putCount  int
}

// AveragerState is the serialisable form of an Averager's samples.
type AveragerState struct {
	Samples  []float64 `json:"samples"`
	History  []float64 `json:"history"`
	PutCount int       `json:"put_count"`
}

// NewAverager creates an Averager. capacity is clamped to a minimum of 3.
// trim is normalised to an even value in [0, capacity).
func NewAverager(capacity, trim, precision int) *Averager {
	if capacity < minAveragerCap {
		capacity = minAveragerCap
	}
	if trim < 0 {
		trim = 0
	}
	if trim >= capacity {
		trim = capacity - 1
	}
	trim -= trim % 2
	if precision < 0 {
		precision = 0
	}
	return &Averager{
		window:    NewRing(capacity),
		history:   NewRing(capacity),
		trim:      trim,
		precision: precision,
	}
}

// Put appends v, evicting the oldest sample when the window is full, and
// records the resulting trimmed mean in the rolling history.
func (a *Averager) Put(v float64) {
	a.putCount++
	a.window.Push(v)
	a.history.Push(a.Get())
}

// Get returns the trimmed mean of the window, or 0 when empty.
func (a *Averager) Get() float64 {
	vals := a.trimmed()
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// trimmed returns the subset of the window that Get averages.
func (a *Averager) trimmed() []float64 {
	vals := a.window.Values()
	if len(vals) <= a.trim {
		return vals
	}
	slices.Sort(vals)
	edge := a.trim / 2
	return vals[edge : len(vals)-edge]
}

// GetRawAvg returns the untrimmed mean rounded to the display precision.
func (a *Averager) GetRawAvg() float64 {
	if a.window.Len() == 0 {
		return 0
	}
	var sum float64
	for _, v := range a.window.Values() {
		sum += v
	}
	p := math.Pow(10, float64(a.precision))
	return math.Round(sum/float64(a.window.Len())*p) / p
}

// GetVariance returns the population variance of the untrimmed window.
func (a *Averager) GetVariance() float64 {
	n := a.window.Len()
	if n == 0 {
		return 0
	}
	vals := a.window.Values()
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(n)
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return sq / float64(n)
}

// GetStddev returns the population standard deviation of the untrimmed window.
func (a *Averager) GetStddev() float64 {
	return math.Sqrt(a.GetVariance())
}

// Stat reports the effective sample count (values averaged by Get), the
// number of samples in the window, and the lifetime put count.
func (a *Averager) Stat() (effective, samples, total int) {
	return len(a.trimmed()), a.window.Len(), a.putCount
}

// IsFull reports whether the window has reached capacity.
func (a *Averager) IsFull() bool {
	return a.window.Len() == a.window.Cap()
}

// Samples returns the window in insertion order.
func (a *Averager) Samples() []float64 {
	return a.window.Values()
}

// History returns the trimmed means recorded after each Put (oldest first).
func (a *Averager) History() []float64 {
	return a.history.Values()
}

// Precision returns the display precision in decimal places.
func (a *Averager) Precision() int {
	return a.precision
}

// Clear empties the window, history, and lifetime counter. Capacity and
// trim count are unchanged.
func (a *Averager) Clear() {
	a.window.Clear()
	a.history.Clear()
	a.putCount = 0
}

// State captures the averager's samples for persistence.
func (a *Averager) State() AveragerState {
	return AveragerState{
		Samples:  a.window.Values(),
		History:  a.history.Values(),
		PutCount: a.putCount,
	}
}

// Restore replaces the averager's samples with a previously captured state.
func (a *Averager) Restore(s AveragerState) {
	a.window.Reset(s.Samples)
	a.history.Reset(s.History)
	a.putCount = s.PutCount
}
