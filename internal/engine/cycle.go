package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dm/pmon/internal/client"
	"github.com/dm/pmon/internal/model"
)

// DefaultConcurrency bounds parallel power queries within one cycle.
const DefaultConcurrency = 8

// Cycle polls the power draw of a cluster's active hosts.
type Cycle struct {
	clients     *Clients
	concurrency int
	log         *slog.Logger
	now         func() time.Time
}

// NewCycle creates a Cycle. concurrency <= 0 uses DefaultConcurrency.
func NewCycle(clients *Clients, concurrency int, log *slog.Logger) *Cycle {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cycle{clients: clients, concurrency: concurrency, log: log, now: time.Now}
}

// Poll queries every host marked active and aggregates the results.
//
// Queries run concurrently but each result is written to its host's slot, so
// the reading is in file order regardless of completion order. A failing host
// is recorded with its cause and excluded from the totals; it never aborts
// the cycle. Inactive hosts are neither queried nor counted.
func (c *Cycle) Poll(ctx context.Context, active map[string]bool) model.ClusterReading {
	hosts := c.clients.Hosts()
	readings := make([]model.HostReading, len(hosts))

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for i, h := range hosts {
		readings[i] = model.HostReading{Host: h.Name}
		if !active[h.Name] {
			continue
		}
		readings[i].Active = true

		g.Go(func() error {
			w, err := c.read(ctx, h.Name)
			if err != nil {
				readings[i].Err = client.Cause(err)
				c.log.Warn("power reading failed", "host", h.Name, "cause", readings[i].Err)
				return nil
			}
			readings[i].Watts = w
			readings[i].Included = true
			return nil
		})
	}
	_ = g.Wait()

	out := model.ClusterReading{Hosts: readings, PolledAt: c.now()}
	for _, r := range readings {
		if r.Included {
			out.TotalWatts += r.Watts
			out.ActiveHosts++
		}
	}
	return out
}

func (c *Cycle) read(ctx context.Context, host string) (float64, error) {
	mc, err := c.clients.Get(host)
	if err != nil {
		return 0, err
	}
	return mc.PowerReading(ctx)
}
