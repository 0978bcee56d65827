package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/netlink"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/pool"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/stratumv1"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/stratumv2"
)

func TestTranslatorBridgesV2MinerToV1Pool(t *testing.T) {
	sched := clock.New(false, 1)
	src := rng.NewSeeded(99)

	cfg := pool.DefaultConfig("p1")
	cfg.SimulateLuck = false
	cfg.AvgBlockTimeSeconds = 1e9
	p := pool.New(sched, src, nil, cfg)

	// Upstream (translator <-> pool) runs plain V1.
	upLink := netlink.NewLink(sched, src, netlink.LatencyModel{}, netlink.LatencyModel{})
	poolConn := stratumv1.NewPoolConn(sched, p, "bridge", upLink.BToA, upLink.AToB, nil)
	poolConn.Run()

	// Downstream (miner <-> translator) runs V2.
	downLink := netlink.NewLink(sched, src, netlink.LatencyModel{}, netlink.LatencyModel{})

	tr := New(sched, "bridge", downLink.BToA, downLink.AToB, upLink.AToB, upLink.BToA, nil)
	tr.Run()

	mc := stratumv2.NewMinerConn(sched, src, "bridge", 10000, false, downLink.AToB, downLink.BToA, nil)
	mc.Start()

	sched.Run(200)

	assert.Greater(t, p.AcceptedSubmits, int64(0))
	assert.EqualValues(t, 0, p.RejectedSubmits)
}
