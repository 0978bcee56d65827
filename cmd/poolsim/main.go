// Command poolsim drives the discrete-event Stratum pool/miner simulator
// described by internal/simulation: a pool, a fleet of miners speaking V1
// or V2, and (in --v2v1 mode) a translating proxy between them.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/braiins-sim/stratum-poolsim/internal/config"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/bus"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/metrics"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/netlink"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/pool"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/scenario"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/stratumv1"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/stratumv2"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/translator"
)

func main() {
	var (
		realtime     = flag.Bool("realtime", false, "use wall-clock scheduler")
		rtFactor     = flag.Float64("rt-factor", 1.0, "wall/virtual ratio (0.5 = 2x real time)")
		limit        = flag.Float64("limit", 500, "simulation end in virtual seconds")
		verbose      = flag.Bool("verbose", false, "subscribe event-bus logger")
		latency      = flag.Float64("latency", 0.01, "mean link latency (seconds)")
		noLuck       = flag.Bool("no-luck", false, "disable exponential/normal sampling")
		v1           = flag.Bool("v1", false, "run the fleet over Stratum V1 only")
		v2v1         = flag.Bool("v2v1", false, "run V2 miners through a V2->V1 translating proxy")
		plainOutput  = flag.Bool("plain-output", false, "emit CSV: accepted_shares,accepted_submits,stale_shares,stale_submits,rejected_submits")
		scenarioPath = flag.String("scenario", "", "YAML scenario file (overrides --v1/--v2v1/--latency/--no-luck)")
		seed         = flag.Int64("seed", config.GetEnvInt64("POOLSIM_SEED", 123), "RNG seed")
	)
	flag.Parse()

	if *v1 && *v2v1 {
		log.Fatal("--v1 and --v2v1 are mutually exclusive")
	}

	sc, err := loadScenario(*scenarioPath, *v1, *v2v1, *latency, *noLuck)
	if err != nil {
		log.Fatalf("loading scenario: %v", err)
	}

	var sink bus.Sink = bus.Discard{}
	if *verbose {
		zlog, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("building logger: %v", err)
		}
		defer zlog.Sync()
		sink = bus.NewZapSink(zlog)
	}

	runID := uuid.NewString()
	sink.Publish(bus.Event{Topic: bus.TopicPool, Message: "run start", Aux: runID})

	sched := clock.New(*realtime, *rtFactor)
	src := rng.NewSeeded(*seed)

	p := pool.New(sched, src, sink, pool.Config{
		Name:                 sc.Pool.Name,
		InitialDifficulty:    float64(sc.Pool.InitialDifficulty),
		Extranonce2Size:      sc.Pool.Extranonce2Size,
		AvgBlockTimeSeconds:  sc.Pool.AvgBlockTimeSeconds,
		EnableVardiff:        sc.Pool.EnableVardiff,
		DesiredSubmitsPerSec: sc.Pool.DesiredSubmitsPerSec,
		SimulateLuck:         sc.Pool.SimulateLuck,
	})

	exp := metrics.New(sched)
	exp.Register(sc.Pool.Name, p)
	exp.Run(60)
	if *verbose {
		addr := config.GetEnv("POOLSIM_METRICS_ADDR", ":9100")
		go func() {
			if err := http.ListenAndServe(addr, exp.Handler()); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
		log.Printf("metrics exposed on %s/metrics", addr)
	}

	wireFleet(sched, src, p, sc, sink)

	sched.Run(*limit)

	if *plainOutput {
		fmt.Printf("%.0f,%d,%.0f,%d,%d\n",
			p.AcceptedShares, p.AcceptedSubmits, p.StaleShares, p.StaleSubmits, p.RejectedSubmits)
	} else {
		fmt.Fprintf(os.Stdout, "run=%s accepted_submits=%d accepted_shares=%.0f stale_submits=%d stale_shares=%.0f rejected_submits=%d\n",
			runID, p.AcceptedSubmits, p.AcceptedShares, p.StaleSubmits, p.StaleShares, p.RejectedSubmits)
	}
}

// loadScenario resolves the effective scenario: a --scenario file takes
// full precedence, otherwise a Default built from the protocol/latency/
// luck flags.
func loadScenario(path string, v1, v2v1 bool, latencySeconds float64, noLuck bool) (*scenario.Scenario, error) {
	if path != "" {
		return scenario.Load(path)
	}
	mode := scenario.ModeV2
	switch {
	case v1:
		mode = scenario.ModeV1
	case v2v1:
		mode = scenario.ModeV2V1
	}
	sc := scenario.Default(mode, latencySeconds, noLuck)
	return sc, sc.Validate()
}

// wireFleet spawns the pool-side and miner-side connection processors
// for every miner in sc, picking the protocol stack sc.Mode names.
func wireFleet(sched *clock.Scheduler, src rng.Source, p *pool.Pool, sc *scenario.Scenario, sink bus.Sink) {
	lat := netlink.LatencyModel{MeanSeconds: sc.Network.LatencySeconds}

	for _, m := range sc.Miners {
		switch sc.Mode {
		case scenario.ModeV1:
			link := netlink.NewLink(sched, src, lat, lat)
			pc := stratumv1.NewPoolConn(sched, p, m.Name, link.BToA, link.AToB, sink)
			pc.Run()
			mc := stratumv1.NewMinerConn(sched, src, m.Name, m.SpeedGhps, sc.Pool.DesiredSubmitsPerSec, link.AToB, link.BToA, sink)
			mc.Start()

		case scenario.ModeV2:
			link := netlink.NewLink(sched, src, lat, lat)
			cm := stratumv2.NewChannelManager(sched, p, m.Name, link.BToA, link.AToB, sink)
			cm.Run()
			mc := stratumv2.NewMinerConn(sched, src, m.Name, m.SpeedGhps, m.Extended, link.AToB, link.BToA, sink)
			mc.Start()

		case scenario.ModeV2V1:
			upLink := netlink.NewLink(sched, src, lat, lat)
			poolConn := stratumv1.NewPoolConn(sched, p, m.Name, upLink.BToA, upLink.AToB, sink)
			poolConn.Run()

			downLink := netlink.NewLink(sched, src, lat, lat)
			tr := translator.New(sched, m.Name, downLink.BToA, downLink.AToB, upLink.AToB, upLink.BToA, sink)
			tr.Run()

			mc := stratumv2.NewMinerConn(sched, src, m.Name, m.SpeedGhps, m.Extended, downLink.AToB, downLink.BToA, sink)
			mc.Start()
		}
	}
}
