// Package metrics exports the pool's aggregate accounting as
// Prometheus metrics, grounded on internal/monitoring/prometheus.go's
// registry-backed client — adapted here to a fixed set of simulation
// gauges/counters rather than a dynamic name->collector map, since the
// simulator always exports the same handful of series.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/pool"
)

// Exporter snapshots one or more pools' aggregate counters into a
// Prometheus registry on the scheduler's own virtual-time cadence,
// rather than a wall-clock ticker, so metrics stay consistent with the
// rest of the simulation's notion of time.
type Exporter struct {
	registry *prometheus.Registry

	acceptedSubmits *prometheus.GaugeVec
	staleSubmits    *prometheus.GaugeVec
	rejectedSubmits *prometheus.GaugeVec
	acceptedShares  *prometheus.GaugeVec
	staleShares     *prometheus.GaugeVec
	acceptedHashrate *prometheus.GaugeVec
	staleHashrate    *prometheus.GaugeVec

	sched *clock.Scheduler
	pools map[string]*pool.Pool
}

// New constructs an Exporter with its own private registry, so
// multiple simulation runs in the same process (e.g. in tests) never
// collide on Prometheus's global default registry.
func New(sched *clock.Scheduler) *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		sched:    sched,
		pools:    make(map[string]*pool.Pool),
	}

	labels := []string{"pool"}
	e.acceptedSubmits = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "poolsim_accepted_submits_total", Help: "Accepted share submits.",
	}, labels)
	e.staleSubmits = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "poolsim_stale_submits_total", Help: "Stale share submits.",
	}, labels)
	e.rejectedSubmits = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "poolsim_rejected_submits_total", Help: "Rejected share submits (unknown job).",
	}, labels)
	e.acceptedShares = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "poolsim_accepted_shares_sum", Help: "Sum of difficulty of accepted shares.",
	}, labels)
	e.staleShares = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "poolsim_stale_shares_sum", Help: "Sum of difficulty of stale shares.",
	}, labels)
	e.acceptedHashrate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "poolsim_accepted_hashrate", Help: "Estimated accepted hashrate (H/s).",
	}, labels)
	e.staleHashrate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "poolsim_stale_hashrate", Help: "Estimated stale hashrate (H/s).",
	}, labels)

	e.registry.MustRegister(
		e.acceptedSubmits, e.staleSubmits, e.rejectedSubmits,
		e.acceptedShares, e.staleShares,
		e.acceptedHashrate, e.staleHashrate,
	)
	return e
}

// Register adds a pool to be periodically snapshotted under name.
func (e *Exporter) Register(name string, p *pool.Pool) {
	e.pools[name] = p
}

// Handler returns the HTTP handler serving this exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// snapshot copies every registered pool's current counters into the
// gauges. Gauges (not counters) are used because the pool already
// tracks running totals itself; re-exporting them as Prometheus
// counters would require tracking deltas for no benefit in a
// single-process simulation.
func (e *Exporter) snapshot() {
	now := e.sched.Now()
	for name, p := range e.pools {
		e.acceptedSubmits.WithLabelValues(name).Set(float64(p.AcceptedSubmits))
		e.staleSubmits.WithLabelValues(name).Set(float64(p.StaleSubmits))
		e.rejectedSubmits.WithLabelValues(name).Set(float64(p.RejectedSubmits))
		e.acceptedShares.WithLabelValues(name).Set(p.AcceptedShares)
		e.staleShares.WithLabelValues(name).Set(p.StaleShares)
		e.acceptedHashrate.WithLabelValues(name).Set(p.MeterAccepted.Hashrate(now))
		e.staleHashrate.WithLabelValues(name).Set(p.MeterStale.Hashrate(now))
	}
}

// Run spawns a scheduler task that snapshots every intervalSeconds of
// virtual time, matching the pool's own 60-second aggregate speed
// logger cadence by default.
func (e *Exporter) Run(intervalSeconds float64) *clock.TaskHandle {
	if intervalSeconds <= 0 {
		intervalSeconds = 60
	}
	return e.sched.Spawn(func(ctx context.Context) {
		for {
			if err := e.sched.Sleep(ctx, intervalSeconds); err != nil {
				return
			}
			e.snapshot()
		}
	})
}
