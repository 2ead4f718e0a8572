package model

import "time"

// Record is one row of the append-only recording log.
// Values holds one entry per polled host in inventory order; nil marks a
// host that produced no numeric value in that cycle.
type Record struct {
	ID         int64
	Hosts      []string
	Values     []*float64
	TotalWatts float64
	At         time.Time
}

// RecordFromReading builds a Record from a cluster reading.
func RecordFromReading(id int64, r ClusterReading, at time.Time) Record {
	rec := Record{
		ID:         id,
		Hosts:      make([]string, len(r.Hosts)),
		Values:     make([]*float64, len(r.Hosts)),
		TotalWatts: r.TotalWatts,
		At:         at,
	}
	for i, h := range r.Hosts {
		rec.Hosts[i] = h.Host
		if h.Included {
			w := h.Watts
			rec.Values[i] = &w
		}
	}
	return rec
}
