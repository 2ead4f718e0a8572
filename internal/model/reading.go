package model

import "time"

// HostReading is the result of polling a single host in one cycle.
//
// Inactive hosts and hosts whose power query failed are not Included and
// contribute nothing to the cluster aggregates.
type HostReading struct {
	Host     string
	Active   bool
	Included bool
	Watts    float64
	Err      string // management client cause when the query failed
}

// ClusterReading aggregates one poll cycle across the cluster.
// Hosts keeps the inventory order regardless of poll completion order.
type ClusterReading struct {
	Hosts       []HostReading
	TotalWatts  float64
	ActiveHosts int
	PolledAt    time.Time
}

// Host returns the reading for the named host, if present.
func (c ClusterReading) Host(name string) (HostReading, bool) {
	for _, h := range c.Hosts {
		if h.Host == name {
			return h, true
		}
	}
	return HostReading{}, false
}
