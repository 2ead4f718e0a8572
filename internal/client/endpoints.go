package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	endpointSystems = "/redfish/v1/Systems"
	endpointChassis = "/redfish/v1/Chassis"
)

// firstMember resolves the first member of a Redfish collection, caching the
// result in *cache.
func (c *RedfishClient) firstMember(ctx context.Context, op, collectionPath string, cache *string) (string, error) {
	c.mu.Lock()
	cached := *cache
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	var coll collection
	if err := c.getJSON(ctx, op, collectionPath, &coll); err != nil {
		return "", err
	}
	if len(coll.Members) == 0 || coll.Members[0].ODataID == "" {
		return "", newError(KindValue, op, fmt.Errorf("%s has no members", collectionPath))
	}

	c.mu.Lock()
	*cache = coll.Members[0].ODataID
	c.mu.Unlock()
	return coll.Members[0].ODataID, nil
}

// PowerState reads the system PowerState property.
func (c *RedfishClient) PowerState(ctx context.Context) (ChassisPower, error) {
	const op = "PowerState"
	sys, err := c.firstMember(ctx, op, endpointSystems, &c.systemPath)
	if err != nil {
		return PowerOff, err
	}

	var cs computerSystem
	if err := c.getJSON(ctx, op, sys, &cs); err != nil {
		return PowerOff, err
	}
	switch strings.ToLower(cs.PowerState) {
	case "on", "poweringoff":
		return PowerOn, nil
	case "off", "poweringon":
		return PowerOff, nil
	default:
		return PowerOff, newError(KindValue, op, fmt.Errorf("unexpected PowerState %q", cs.PowerState))
	}
}

func (c *RedfishClient) reset(ctx context.Context, op, resetType string) error {
	sys, err := c.firstMember(ctx, op, endpointSystems, &c.systemPath)
	if err != nil {
		return err
	}
	path := sys + "/Actions/ComputerSystem.Reset"
	_, err = c.do(ctx, op, http.MethodPost, path, resetRequest{ResetType: resetType})
	return err
}

// PowerUp issues ResetType=On.
func (c *RedfishClient) PowerUp(ctx context.Context) error {
	return c.reset(ctx, "PowerUp", resetOn)
}

// PowerDownSoft issues ResetType=GracefulShutdown.
func (c *RedfishClient) PowerDownSoft(ctx context.Context) error {
	return c.reset(ctx, "PowerDownSoft", resetGracefulShutdown)
}

// PowerResetHard issues ResetType=ForceRestart.
func (c *RedfishClient) PowerResetHard(ctx context.Context) error {
	return c.reset(ctx, "PowerResetHard", resetForceRestart)
}

// PowerReading returns PowerConsumedWatts of the first chassis PowerControl.
func (c *RedfishClient) PowerReading(ctx context.Context) (float64, error) {
	const op = "PowerReading"
	ch, err := c.firstMember(ctx, op, endpointChassis, &c.chassisPath)
	if err != nil {
		return 0, err
	}

	var p chassisPower
	if err := c.getJSON(ctx, op, ch+"/Power", &p); err != nil {
		return 0, err
	}
	if len(p.PowerControl) == 0 || p.PowerControl[0].PowerConsumedWatts == nil {
		return 0, newError(KindValue, op, errors.New("PowerConsumedWatts not reported"))
	}
	return *p.PowerControl[0].PowerConsumedWatts, nil
}
