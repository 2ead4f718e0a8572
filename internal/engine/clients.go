package engine

import (
	"fmt"

	"github.com/dm/pmon/internal/client"
	"github.com/dm/pmon/internal/inventory"
)

// Clients holds one ManagementClient per host of a cluster, built once so
// per-client caches (Redfish member paths) survive between cycles.
type Clients struct {
	hosts   []inventory.Host
	clients map[string]client.ManagementClient
	errs    map[string]error
}

// NewClients builds a client for every host with factory. A host whose client
// cannot be built keeps the error and reports it on every use.
func NewClients(hosts []inventory.Host, factory client.Factory) *Clients {
	cs := &Clients{
		hosts:   hosts,
		clients: make(map[string]client.ManagementClient, len(hosts)),
		errs:    make(map[string]error),
	}
	for _, h := range hosts {
		c, err := factory(h)
		if err != nil {
			cs.errs[h.Name] = fmt.Errorf("build client for %s: %w", h.Name, err)
			continue
		}
		cs.clients[h.Name] = c
	}
	return cs
}

// Hosts returns the hosts in file order.
func (cs *Clients) Hosts() []inventory.Host {
	return cs.hosts
}

// Get returns the client of the named host.
func (cs *Clients) Get(name string) (client.ManagementClient, error) {
	if err, ok := cs.errs[name]; ok {
		return nil, err
	}
	c, ok := cs.clients[name]
	if !ok {
		return nil, fmt.Errorf("unknown host %q", name)
	}
	return c, nil
}
