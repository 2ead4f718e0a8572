package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CommandRunner executes an external command and returns its combined output.
type CommandRunner func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// IPMIToolConfig holds configuration for IPMIToolClient.
type IPMIToolConfig struct {
	Interface   string // lan or lanplus
	Address     string
	Username    string
	Password    string
	PowerMethod string // dcmi or sensor
	Timeout     time.Duration
	Binary      string
	Runner      CommandRunner
}

// IPMIToolClient implements ManagementClient by shelling out to ipmitool.
// The password is handed over through IPMI_PASSWORD (-E) so it never shows
// up in the process list.
type IPMIToolClient struct {
	config IPMIToolConfig
}

// NewIPMIToolClient constructs an IPMIToolClient. Returns an error if Address is empty.
func NewIPMIToolClient(cfg IPMIToolConfig) (*IPMIToolClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("Address is required")
	}
	if cfg.Interface == "" {
		cfg.Interface = "lanplus"
	}
	if cfg.PowerMethod == "" {
		cfg.PowerMethod = "dcmi"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Binary == "" {
		cfg.Binary = "ipmitool"
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner
	}
	return &IPMIToolClient{config: cfg}, nil
}

// run executes one ipmitool subcommand. Failures to reach the controller are
// KindConnection; any other non-zero exit is KindProtocol.
func (c *IPMIToolClient) run(ctx context.Context, op string, sub ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	args := append([]string{
		"-I", c.config.Interface,
		"-H", c.config.Address,
		"-U", c.config.Username,
		"-E",
	}, sub...)
	env := []string{"IPMI_PASSWORD=" + c.config.Password}

	out, err := c.config.Runner(ctx, env, c.config.Binary, args...)
	text := strings.TrimSpace(string(out))
	if err != nil {
		if ctx.Err() != nil {
			return "", newError(KindConnection, op, fmt.Errorf("timed out after %v", c.config.Timeout))
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", newError(KindConnection, op, err)
		}
		if isSessionFailure(text) {
			return "", newError(KindConnection, op, errors.New(firstLine(text)))
		}
		return "", newError(KindProtocol, op, fmt.Errorf("%v: %s", err, firstLine(text)))
	}
	return text, nil
}

func isSessionFailure(out string) bool {
	lower := strings.ToLower(out)
	for _, s := range []string{"unable to establish", "activate session", "session setup", "no response", "connection refused"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// PowerState runs "chassis power status".
func (c *IPMIToolClient) PowerState(ctx context.Context) (ChassisPower, error) {
	const op = "PowerState"
	out, err := c.run(ctx, op, "chassis", "power", "status")
	if err != nil {
		return PowerOff, err
	}
	return parsePowerStatus(op, out)
}

func parsePowerStatus(op, out string) (ChassisPower, error) {
	lower := strings.ToLower(out)
	switch {
	case strings.HasSuffix(lower, " on"):
		return PowerOn, nil
	case strings.HasSuffix(lower, " off"):
		return PowerOff, nil
	default:
		return PowerOff, newError(KindValue, op, fmt.Errorf("unexpected output %q", firstLine(out)))
	}
}

// PowerUp runs "chassis power on".
func (c *IPMIToolClient) PowerUp(ctx context.Context) error {
	_, err := c.run(ctx, "PowerUp", "chassis", "power", "on")
	return err
}

// PowerDownSoft runs "chassis power soft" (ACPI shutdown request).
func (c *IPMIToolClient) PowerDownSoft(ctx context.Context) error {
	_, err := c.run(ctx, "PowerDownSoft", "chassis", "power", "soft")
	return err
}

// PowerResetHard runs "chassis power reset".
func (c *IPMIToolClient) PowerResetHard(ctx context.Context) error {
	_, err := c.run(ctx, "PowerResetHard", "chassis", "power", "reset")
	return err
}

// PowerReading returns the instantaneous power draw in watts, using either
// DCMI or the "Pwr Consumption" sensor depending on PowerMethod.
func (c *IPMIToolClient) PowerReading(ctx context.Context) (float64, error) {
	const op = "PowerReading"
	if c.config.PowerMethod == "sensor" {
		out, err := c.run(ctx, op, "sensor", "reading", "Pwr Consumption")
		if err != nil {
			return 0, err
		}
		return parseSensorReading(op, out)
	}
	out, err := c.run(ctx, op, "dcmi", "power", "reading")
	if err != nil {
		return 0, err
	}
	return parseDCMIReading(op, out)
}

// parseDCMIReading extracts the value from a line such as
// "    Instantaneous power reading:                   142 Watts".
func parseDCMIReading(op, out string) (float64, error) {
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok || !strings.Contains(strings.ToLower(key), "instantaneous power reading") {
			continue
		}
		fields := strings.Fields(val)
		if len(fields) == 0 {
			break
		}
		w, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, newError(KindValue, op, fmt.Errorf("parse %q: %w", fields[0], err))
		}
		return w, nil
	}
	return 0, newError(KindValue, op, errors.New("no instantaneous power reading in output"))
}

// parseSensorReading extracts the value from "Pwr Consumption  | 140".
func parseSensorReading(op, out string) (float64, error) {
	_, val, ok := strings.Cut(firstLine(out), "|")
	if !ok {
		return 0, newError(KindValue, op, fmt.Errorf("unexpected output %q", firstLine(out)))
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, newError(KindValue, op, fmt.Errorf("parse %q: %w", strings.TrimSpace(val), err))
	}
	return w, nil
}
