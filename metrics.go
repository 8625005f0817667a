package cluster

import "github.com/prometheus/client_golang/prometheus"

// collector exports the cluster's state as Prometheus metrics each time
// the registry is scraped, rather than pushing updates from the
// supervisor loop — the same pull-on-scrape shape Prometheus's own
// client recommends for values that are cheap to compute on demand.
type collector struct {
	s *Supervisor

	workers       *prometheus.Desc
	totalRestarts *prometheus.Desc
}

func newCollector(s *Supervisor) *collector {
	return &collector{
		s: s,
		workers: prometheus.NewDesc(
			"cluster_workers_total",
			"Number of worker slots currently in each status.",
			[]string{"status"}, nil,
		),
		totalRestarts: prometheus.NewDesc(
			"cluster_total_restarts",
			"Number of completed rolling restarts.",
			nil, nil,
		),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.workers
	ch <- c.totalRestarts
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	c.s.reg.mu.Lock()
	counts := map[Status]int{
		Starting:   c.s.reg.countByStatus(Starting),
		Active:     c.s.reg.countByStatus(Active),
		Stopping:   c.s.reg.countByStatus(Stopping),
		Respawning: c.s.reg.countByStatus(Respawning),
		Disabled:   c.s.reg.countByStatus(Disabled),
	}
	totalRestarts := c.s.totalRestarts
	c.s.reg.mu.Unlock()

	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(n), status.String())
	}
	ch <- prometheus.MustNewConstMetric(c.totalRestarts, prometheus.CounterValue, float64(totalRestarts))
}

// RegisterMetrics registers the cluster's Prometheus collector with reg
// (master-only; ErrNotMaster elsewhere). Typically called with
// prometheus.DefaultRegisterer before exposing /metrics over HTTP.
func RegisterMetrics(reg prometheus.Registerer) error {
	s, err := masterOrErr()
	if err != nil {
		return err
	}
	return reg.Register(newCollector(s))
}
