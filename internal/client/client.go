package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dm/pmon/internal/inventory"
)

// ChassisPower is the chassis power state reported by a management controller.
type ChassisPower int

const (
	PowerOff ChassisPower = iota
	PowerOn
)

func (p ChassisPower) String() string {
	if p == PowerOn {
		return "on"
	}
	return "off"
}

// ManagementClient is the out-of-band management capability of one host.
// Every method is bounded by the implementation's own timeout and reports
// failures as *Error.
type ManagementClient interface {
	PowerState(ctx context.Context) (ChassisPower, error)
	PowerUp(ctx context.Context) error
	PowerDownSoft(ctx context.Context) error
	PowerResetHard(ctx context.Context) error
	PowerReading(ctx context.Context) (float64, error)
}

// ErrorKind classifies management failures.
type ErrorKind int

const (
	KindConnection ErrorKind = iota // controller unreachable or session failed
	KindProtocol                    // controller answered with a failure status or completion code
	KindValue                       // answer could not be interpreted
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection error"
	case KindProtocol:
		return "protocol error"
	default:
		return "value error"
	}
}

// Error is a management failure tagged with its kind.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Cause renders err as the short description shown next to a host.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	var me *Error
	if errors.As(err, &me) {
		return me.Kind.String() + ": " + me.Err.Error()
	}
	return err.Error()
}

// Options tunes the clients built by New.
type Options struct {
	Timeout time.Duration
	// InsecureSkipVerify disables TLS verification for Redfish; most BMCs
	// ship self-signed certificates.
	InsecureSkipVerify bool
	Runner             CommandRunner
}

// Factory builds a ManagementClient for a host.
type Factory func(h inventory.Host) (ManagementClient, error)

// NewFactory returns a Factory that builds clients with opts.
func NewFactory(opts Options) Factory {
	return func(h inventory.Host) (ManagementClient, error) {
		return New(h, opts)
	}
}

// New builds the ManagementClient matching the host's interface type.
func New(h inventory.Host, opts Options) (ManagementClient, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	switch h.IfType {
	case "redfish":
		return NewRedfishClient(ClientConfig{
			BaseURL:            h.MgmtURL(),
			Username:           h.MgmtUser,
			Password:           h.MgmtPass,
			InsecureSkipVerify: opts.InsecureSkipVerify,
			RequestTimeout:     opts.Timeout,
		})
	case "lan", "lanplus":
		return NewIPMIToolClient(IPMIToolConfig{
			Interface:   h.IfType,
			Address:     h.MgmtAddr,
			Username:    h.MgmtUser,
			Password:    h.MgmtPass,
			PowerMethod: h.PowerMethod,
			Timeout:     opts.Timeout,
			Runner:      opts.Runner,
		})
	default:
		return nil, fmt.Errorf("unsupported management interface %q", h.IfType)
	}
}
