package engine

import "github.com/dm/pmon/internal/model"

// Default PID gains and error history length.
const (
	DefaultKp         = 0.15
	DefaultKi         = 0.05
	DefaultKd         = 0.1
	DefaultPIDHistory = 10
)

// PIDCorrector turns a bounded history of interval errors into a correction
// of the next sleep.
//
// The error is target - actual. A positive correction lengthens the next
// sleep and a negative one shortens it, so intervals running long (negative
// error) produce a shorter sleep.
type PIDCorrector struct {
	Kp, Ki, Kd float64
	errors     *model.Ring
}

// NewPIDCorrector creates a corrector. history <= 0 uses DefaultPIDHistory.
func NewPIDCorrector(kp, ki, kd float64, history int) *PIDCorrector {
	if history <= 0 {
		history = DefaultPIDHistory
	}
	return &PIDCorrector{Kp: kp, Ki: ki, Kd: kd, errors: model.NewRing(history)}
}

// PutData records the error between the target and the actual value.
func (p *PIDCorrector) PutData(target, actual float64) {
	p.errors.Push(target - actual)
}

// Correction returns kp*latest + ki*mean + kd*(latest - previous).
// Missing values count as zero: with one sample the derivative term is 0.
func (p *PIDCorrector) Correction() float64 {
	n := p.errors.Len()
	if n == 0 {
		return 0
	}
	latest := p.errors.Latest()

	var sum float64
	for _, e := range p.errors.Values() {
		sum += e
	}
	mean := sum / float64(n)

	var diff float64
	if n >= 2 {
		diff = latest - p.errors.At(n-2)
	}
	return p.Kp*latest + p.Ki*mean + p.Kd*diff
}

// Len returns the number of errors held.
func (p *PIDCorrector) Len() int {
	return p.errors.Len()
}

// Errors returns the error history, oldest first.
func (p *PIDCorrector) Errors() []float64 {
	return p.errors.Values()
}

// Clear empties the error history.
func (p *PIDCorrector) Clear() {
	p.errors.Clear()
}

// Restore replaces the error history with errs.
func (p *PIDCorrector) Restore(errs []float64) {
	p.errors.Reset(errs)
}
