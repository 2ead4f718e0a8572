package client

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedRunner answers ipmitool invocations by the trailing subcommand.
type scriptedRunner struct {
	replies map[string]string
	fail    map[string]string
	calls   [][]string
	env     []string
}

func (s *scriptedRunner) run(_ context.Context, env []string, name string, args ...string) ([]byte, error) {
	s.calls = append(s.calls, append([]string{name}, args...))
	s.env = env
	// args: -I iface -H addr -U user -E <sub...>
	sub := strings.Join(args[7:], " ")
	if out, ok := s.fail[sub]; ok {
		return []byte(out), errors.New("exit status 1")
	}
	return []byte(s.replies[sub]), nil
}

func newScripted(t *testing.T, method string, s *scriptedRunner) *IPMIToolClient {
	t.Helper()
	c, err := NewIPMIToolClient(IPMIToolConfig{
		Interface:   "lanplus",
		Address:     "10.0.1.5",
		Username:    "admin",
		Password:    "secret",
		PowerMethod: method,
		Runner:      s.run,
	})
	if err != nil {
		t.Fatalf("NewIPMIToolClient: %v", err)
	}
	return c
}

func TestIPMIToolPowerState(t *testing.T) {
	s := &scriptedRunner{replies: map[string]string{"chassis power status": "Chassis Power is on\n"}}
	c := newScripted(t, "dcmi", s)

	got, err := c.PowerState(context.Background())
	if err != nil {
		t.Fatalf("PowerState: %v", err)
	}
	if got != PowerOn {
		t.Errorf("PowerState = %v, want on", got)
	}

	call := strings.Join(s.calls[0], " ")
	if call != "ipmitool -I lanplus -H 10.0.1.5 -U admin -E chassis power status" {
		t.Errorf("call = %q", call)
	}
	if strings.Contains(call, "secret") {
		t.Error("password leaked into argv")
	}
	if len(s.env) != 1 || s.env[0] != "IPMI_PASSWORD=secret" {
		t.Errorf("env = %v", s.env)
	}
}

func TestIPMIToolPowerActions(t *testing.T) {
	s := &scriptedRunner{replies: map[string]string{}}
	c := newScripted(t, "dcmi", s)
	ctx := context.Background()

	if err := c.PowerUp(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.PowerDownSoft(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.PowerResetHard(ctx); err != nil {
		t.Fatal(err)
	}
	var subs []string
	for _, call := range s.calls {
		subs = append(subs, call[len(call)-1])
	}
	if strings.Join(subs, ",") != "on,soft,reset" {
		t.Errorf("subcommands = %v", subs)
	}
}

func TestIPMIToolPowerReading(t *testing.T) {
	dcmiOut := `
    Instantaneous power reading:                   142 Watts
    Minimum during sampling period:                 98 Watts
`
	s := &scriptedRunner{replies: map[string]string{
		"dcmi power reading":             dcmiOut,
		"sensor reading Pwr Consumption": "Pwr Consumption  | 160",
	}}

	w, err := newScripted(t, "dcmi", s).PowerReading(context.Background())
	if err != nil || w != 142 {
		t.Errorf("dcmi reading = %v, %v; want 142", w, err)
	}

	w, err = newScripted(t, "sensor", s).PowerReading(context.Background())
	if err != nil || w != 160 {
		t.Errorf("sensor reading = %v, %v; want 160", w, err)
	}
}

func TestIPMIToolErrorClassification(t *testing.T) {
	s := &scriptedRunner{fail: map[string]string{
		"chassis power status": "Error: Unable to establish IPMI v2 / RMCP+ session",
		"dcmi power reading":   "DCMI request failed because: Invalid command (c1)",
	}}
	c := newScripted(t, "dcmi", s)

	_, err := c.PowerState(context.Background())
	var me *Error
	if !errors.As(err, &me) || me.Kind != KindConnection {
		t.Errorf("PowerState err = %v, want KindConnection", err)
	}

	_, err = c.PowerReading(context.Background())
	if !errors.As(err, &me) || me.Kind != KindProtocol {
		t.Errorf("PowerReading err = %v, want KindProtocol", err)
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := parsePowerStatus("op", "garbage"); err == nil {
		t.Error("parsePowerStatus: expected error")
	}
	if _, err := parseDCMIReading("op", "nothing here"); err == nil {
		t.Error("parseDCMIReading: expected error")
	}
	if _, err := parseSensorReading("op", "Pwr Consumption | na"); err == nil {
		t.Error("parseSensorReading: expected error")
	}
}
