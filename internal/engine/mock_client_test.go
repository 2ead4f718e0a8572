package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dm/pmon/internal/client"
	"github.com/dm/pmon/internal/inventory"
)

// MockManagementClient implements client.ManagementClient for testing.
type MockManagementClient struct {
	PowerStateFn     func(ctx context.Context) (client.ChassisPower, error)
	PowerUpFn        func(ctx context.Context) error
	PowerDownSoftFn  func(ctx context.Context) error
	PowerResetHardFn func(ctx context.Context) error
	PowerReadingFn   func(ctx context.Context) (float64, error)

	mu    sync.Mutex
	calls []string
}

func (m *MockManagementClient) record(op string) {
	m.mu.Lock()
	m.calls = append(m.calls, op)
	m.mu.Unlock()
}

// Calls returns the operations invoked so far.
func (m *MockManagementClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockManagementClient) PowerState(ctx context.Context) (client.ChassisPower, error) {
	m.record("PowerState")
	if m.PowerStateFn != nil {
		return m.PowerStateFn(ctx)
	}
	return client.PowerOn, nil
}

func (m *MockManagementClient) PowerUp(ctx context.Context) error {
	m.record("PowerUp")
	if m.PowerUpFn != nil {
		return m.PowerUpFn(ctx)
	}
	return nil
}

func (m *MockManagementClient) PowerDownSoft(ctx context.Context) error {
	m.record("PowerDownSoft")
	if m.PowerDownSoftFn != nil {
		return m.PowerDownSoftFn(ctx)
	}
	return nil
}

func (m *MockManagementClient) PowerResetHard(ctx context.Context) error {
	m.record("PowerResetHard")
	if m.PowerResetHardFn != nil {
		return m.PowerResetHardFn(ctx)
	}
	return nil
}

func (m *MockManagementClient) PowerReading(ctx context.Context) (float64, error) {
	m.record("PowerReading")
	if m.PowerReadingFn != nil {
		return m.PowerReadingFn(ctx)
	}
	return 100, nil
}

// mockProber answers Reachable from a function field.
type mockProber struct {
	fn    func(addr string) bool
	calls atomic.Int32
}

func (p *mockProber) Reachable(_ context.Context, addr string) bool {
	p.calls.Add(1)
	if p.fn != nil {
		return p.fn(addr)
	}
	return true
}

// connErr builds a management connection failure.
func connErr(op, msg string) error {
	return &client.Error{Kind: client.KindConnection, Op: op, Err: errors.New(msg)}
}

// testHosts returns n lanplus hosts named node1..nodeN.
func testHosts(names ...string) []inventory.Host {
	hosts := make([]inventory.Host, len(names))
	for i, n := range names {
		hosts[i] = inventory.Host{
			Name:     n,
			IP:       "10.0.0." + string(rune('1'+i)),
			MgmtAddr: "10.0.1." + string(rune('1'+i)),
			MgmtUser: "admin",
			MgmtPass: "secret",
			IfType:   "lanplus",
		}
	}
	return hosts
}

// mockFactory returns a Factory that hands out the given mocks by host name.
func mockFactory(mocks map[string]*MockManagementClient) client.Factory {
	return func(h inventory.Host) (client.ManagementClient, error) {
		m, ok := mocks[h.Name]
		if !ok {
			return nil, errors.New("no mock for " + h.Name)
		}
		return m, nil
	}
}

// fakeClock advances by step on every call.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}
