package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dm/pmon/internal/client"
	"github.com/dm/pmon/internal/inventory"
	"github.com/dm/pmon/internal/model"
)

var (
	// ErrNotPermitted is returned when an action is not allowed in the
	// host's current status.
	ErrNotPermitted = errors.New("action not permitted in current status")
	// ErrHostDisabled is returned for actions on hosts marked disabled.
	ErrHostDisabled = errors.New("host is disabled")
	// ErrWaitTimeout is returned when a host does not reach the awaited
	// status within WaitPolicy.Timeout.
	ErrWaitTimeout = errors.New("timed out waiting for status")
)

// WaitPolicy controls polling after a power action.
type WaitPolicy struct {
	Interval time.Duration
	Timeout  time.Duration
	// Progress, when set, receives every status observed while waiting.
	Progress func(phase string, s model.MachineStatus)
}

// DefaultWaitPolicy polls every 5 seconds for up to 10 minutes.
func DefaultWaitPolicy() WaitPolicy {
	return WaitPolicy{Interval: 5 * time.Second, Timeout: 10 * time.Minute}
}

// Resolver tracks the machine status of one host by combining the chassis
// power state reported by the management client with OS reachability.
type Resolver struct {
	host   inventory.Host
	mgmt   client.ManagementClient
	err    error // set when no client could be built
	prober client.Prober
	log    *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	status model.MachineStatus
}

// NewResolver creates a Resolver in StateUnknown.
func NewResolver(host inventory.Host, clients *Clients, prober client.Prober, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	mc, err := clients.Get(host.Name)
	return &Resolver{host: host, mgmt: mc, err: err, prober: prober, log: log, now: time.Now}
}

// Host returns the resolved host.
func (r *Resolver) Host() inventory.Host {
	return r.host
}

// Status returns the last observed status.
func (r *Resolver) Status() model.MachineStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Refresh queries the chassis power state and, when the chassis is on, probes
// the OS. A management failure yields StateError and the OS is not probed.
func (r *Resolver) Refresh(ctx context.Context) model.MachineStatus {
	s := r.observe(ctx)
	s.ObservedAt = r.now()

	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
	return s
}

func (r *Resolver) observe(ctx context.Context) model.MachineStatus {
	if r.err != nil {
		return model.MachineStatus{State: model.StateError, Cause: r.err.Error()}
	}
	power, err := r.mgmt.PowerState(ctx)
	if err != nil {
		cause := client.Cause(err)
		r.log.Warn("power state query failed", "host", r.host.Name, "cause", cause)
		return model.MachineStatus{State: model.StateError, Cause: cause}
	}
	if power == client.PowerOff {
		return model.MachineStatus{State: model.StateMachineDown}
	}
	if r.prober.Reachable(ctx, r.host.IP) {
		return model.MachineStatus{State: model.StateOSUp}
	}
	return model.MachineStatus{State: model.StateOSDown}
}

// CanStart reports whether Start is allowed: the machine is known to be down.
func (r *Resolver) CanStart() bool {
	s := r.Status()
	return !r.host.Disabled && s.Known() && !s.MachineUp()
}

// CanShutdown reports whether Shutdown is allowed: the machine is known to be up.
func (r *Resolver) CanShutdown() bool {
	s := r.Status()
	return !r.host.Disabled && s.MachineUp()
}

// CanReset reports whether Reset is allowed. Same gate as Shutdown.
func (r *Resolver) CanReset() bool {
	return r.CanShutdown()
}

func (r *Resolver) gate(ok bool, action string) error {
	if r.host.Disabled {
		return fmt.Errorf("%s %s: %w", action, r.host.Name, ErrHostDisabled)
	}
	if !ok {
		return fmt.Errorf("%s %s (%s): %w", action, r.host.Name, r.Status().State, ErrNotPermitted)
	}
	return nil
}

// Start powers the machine up, then waits for the machine and then the OS to
// come up.
func (r *Resolver) Start(ctx context.Context, p WaitPolicy) error {
	if err := r.gate(r.CanStart(), "start"); err != nil {
		return err
	}
	r.log.Info("power up", "host", r.host.Name)
	if err := r.mgmt.PowerUp(ctx); err != nil {
		return fmt.Errorf("start %s: %w", r.host.Name, err)
	}
	if _, err := r.WaitFor(ctx, p, "starting", model.MachineStatus.MachineUp); err != nil {
		return err
	}
	_, err := r.WaitFor(ctx, p, "waiting for OS", model.MachineStatus.OSUp)
	return err
}

// Shutdown requests a soft power down, then waits for the OS and then the
// machine to go down.
func (r *Resolver) Shutdown(ctx context.Context, p WaitPolicy) error {
	if err := r.gate(r.CanShutdown(), "shutdown"); err != nil {
		return err
	}
	r.log.Info("soft power down", "host", r.host.Name)
	if err := r.mgmt.PowerDownSoft(ctx); err != nil {
		return fmt.Errorf("shutdown %s: %w", r.host.Name, err)
	}
	osDown := func(s model.MachineStatus) bool {
		return s.State == model.StateOSDown || s.State == model.StateMachineDown
	}
	if _, err := r.WaitFor(ctx, p, "shutting down", osDown); err != nil {
		return err
	}
	machineDown := func(s model.MachineStatus) bool { return s.State == model.StateMachineDown }
	_, err := r.WaitFor(ctx, p, "powering off", machineDown)
	return err
}

// Reset issues a hard reset and refreshes the status once.
func (r *Resolver) Reset(ctx context.Context) error {
	if err := r.gate(r.CanReset(), "reset"); err != nil {
		return err
	}
	r.log.Info("hard reset", "host", r.host.Name)
	if err := r.mgmt.PowerResetHard(ctx); err != nil {
		return fmt.Errorf("reset %s: %w", r.host.Name, err)
	}
	r.Refresh(ctx)
	return nil
}

// WaitFor refreshes the status every p.Interval until cond holds, the
// timeout elapses or ctx is done. The current status is checked first.
func (r *Resolver) WaitFor(ctx context.Context, p WaitPolicy, phase string, cond func(model.MachineStatus) bool) (model.MachineStatus, error) {
	if p.Interval <= 0 {
		p.Interval = DefaultWaitPolicy().Interval
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	s := r.Status()
	if cond(s) {
		return s, nil
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return s, fmt.Errorf("%s %s: %w", phase, r.host.Name, ErrWaitTimeout)
			}
			return s, ctx.Err()
		case <-ticker.C:
		}
		s = r.Refresh(ctx)
		if p.Progress != nil {
			p.Progress(phase, s)
		}
		if cond(s) {
			return s, nil
		}
	}
}
