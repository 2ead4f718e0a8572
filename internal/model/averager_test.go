package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverager_EmptyIsZero(t *testing.T) {
	a := NewAverager(5, 2, 3)
	assert.Equal(t, 0.0, a.Get())
	assert.Equal(t, 0.0, a.GetRawAvg())
	assert.Equal(t, 0.0, a.GetStddev())
}

func TestAverager_CapacityClamped(t *testing.T) {
	a := NewAverager(1, 0, 3)
	for i := 1; i <= 5; i++ {
		a.Put(float64(i))
	}
	assert.Equal(t, []float64{3, 4, 5}, a.Samples())
}

func TestAverager_TrimNormalised(t *testing.T) {
	cases := []struct {
		name     string
		capacity int
		trim     int
		want     int
	}{
		{"negative", 5, -2, 0},
		{"odd rounds down", 5, 3, 2},
		{"at capacity", 4, 4, 2},
		{"above capacity", 5, 9, 4},
		{"even kept", 10, 4, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAverager(tc.capacity, tc.trim, 3)
			assert.Equal(t, tc.want, a.trim)
		})
	}
}

func TestAverager_PlainMeanWhenWindowWithinTrim(t *testing.T) {
	a := NewAverager(10, 4, 3)
	a.Put(1)
	a.Put(2)
	a.Put(30)
	a.Put(100)
	// 4 samples <= trim 4: no trimming
	assert.InDelta(t, 33.25, a.Get(), 1e-9)
	eff, smpl, tot := a.Stat()
	assert.Equal(t, 4, eff)
	assert.Equal(t, 4, smpl)
	assert.Equal(t, 4, tot)
}

func TestAverager_SymmetricTrim(t *testing.T) {
	a := NewAverager(5, 2, 3)
	for _, v := range []float64{1, 2, 3, 4, 100} {
		a.Put(v)
	}
	// sorted [1 2 3 4 100], one value dropped from each end -> mean(2,3,4)
	assert.InDelta(t, 3.0, a.Get(), 1e-9)
	eff, smpl, tot := a.Stat()
	assert.Equal(t, 3, eff)
	assert.Equal(t, 5, smpl)
	assert.Equal(t, 5, tot)
}

func TestAverager_TrimIgnoresInsertionOrder(t *testing.T) {
	a := NewAverager(6, 4, 3)
	for _, v := range []float64{50, -10, 7, 9, 1000, 8} {
		a.Put(v)
	}
	// sorted [-10 7 8 9 50 1000], drop 2 from each end -> mean(8,9)
	assert.InDelta(t, 8.5, a.Get(), 1e-9)
}

func TestAverager_Eviction(t *testing.T) {
	a := NewAverager(3, 0, 3)
	a.Put(1)
	a.Put(2)
	a.Put(3)
	require.True(t, a.IsFull())
	a.Put(4)

	assert.Equal(t, []float64{2, 3, 4}, a.Samples())
	assert.NotContains(t, a.Samples(), 1.0)
	assert.InDelta(t, 3.0, a.Get(), 1e-9)
	_, smpl, tot := a.Stat()
	assert.Equal(t, 3, smpl)
	assert.Equal(t, 4, tot)
}

func TestAverager_GetIsIdempotent(t *testing.T) {
	a := NewAverager(5, 2, 3)
	for _, v := range []float64{5, 1, 9, 3, 7} {
		a.Put(v)
	}
	first := a.Get()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, a.Get())
	}
	assert.Equal(t, []float64{5, 1, 9, 3, 7}, a.Samples())
}

func TestAverager_VarianceAndStddev(t *testing.T) {
	a := NewAverager(8, 2, 3)
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		a.Put(v)
	}
	// population variance over the untrimmed window
	assert.InDelta(t, 4.0, a.GetVariance(), 1e-9)
	assert.InDelta(t, 2.0, a.GetStddev(), 1e-9)
}

func TestAverager_RawAvgRounded(t *testing.T) {
	a := NewAverager(3, 0, 2)
	a.Put(1)
	a.Put(1)
	a.Put(2)
	assert.Equal(t, 1.33, a.GetRawAvg())
}

func TestAverager_HistoryTracksTrimmedMean(t *testing.T) {
	a := NewAverager(3, 0, 3)
	a.Put(2)
	a.Put(4)
	a.Put(6)
	assert.Equal(t, []float64{2, 3, 4}, a.History())
}

func TestAverager_Clear(t *testing.T) {
	a := NewAverager(5, 2, 3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		a.Put(v)
	}
	a.Clear()

	assert.Equal(t, 0.0, a.Get())
	eff, smpl, tot := a.Stat()
	assert.Equal(t, 0, eff)
	assert.Equal(t, 0, smpl)
	assert.Equal(t, 0, tot)
	assert.Empty(t, a.History())

	// capacity and trim survive Clear
	for _, v := range []float64{1, 2, 3, 4, 100} {
		a.Put(v)
	}
	assert.InDelta(t, 3.0, a.Get(), 1e-9)
}

func TestAverager_StateRoundTrip(t *testing.T) {
	a := NewAverager(4, 0, 3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		a.Put(v)
	}

	b := NewAverager(4, 0, 3)
	b.Restore(a.State())

	assert.Equal(t, a.Samples(), b.Samples())
	assert.Equal(t, a.History(), b.History())
	assert.Equal(t, a.Get(), b.Get())
	_, _, tot := b.Stat()
	assert.Equal(t, 5, tot)
}
