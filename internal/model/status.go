package model

import "time"

// PowerState is the discrete machine status reconciled from chassis power
// and OS reachability.
type PowerState int

const (
	StateUnknown PowerState = iota
	StateMachineDown
	StateOSDown // chassis on, OS unreachable
	StateOSUp   // chassis on, OS reachable
	StateError
)

// String returns a short stable name for the state.
func (s PowerState) String() string {
	switch s {
	case StateMachineDown:
		return "machine-down"
	case StateOSDown:
		return "os-down"
	case StateOSUp:
		return "os-up"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MachineStatus is the last observed status of a single host.
// Cause is set only in StateError. ObservedAt is zero until the first refresh.
type MachineStatus struct {
	State      PowerState
	Cause      string
	ObservedAt time.Time
}

// Observed reports whether the status has been refreshed at least once.
func (m MachineStatus) Observed() bool {
	return !m.ObservedAt.IsZero()
}

// MachineUp reports whether the chassis is known to be powered on.
func (m MachineStatus) MachineUp() bool {
	return m.State == StateOSDown || m.State == StateOSUp
}

// OSUp reports whether the OS is known to be reachable.
func (m MachineStatus) OSUp() bool {
	return m.State == StateOSUp
}

// Known reports whether the status is one of the Up/Down variants.
func (m MachineStatus) Known() bool {
	return m.State == StateMachineDown || m.MachineUp()
}
