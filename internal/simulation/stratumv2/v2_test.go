package stratumv2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/netlink"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/pool"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
)

func TestV2EndToEndAcceptsShares(t *testing.T) {
	sched := clock.New(false, 1)
	src := rng.NewSeeded(42)

	cfg := pool.DefaultConfig("p1")
	cfg.SimulateLuck = false
	cfg.AvgBlockTimeSeconds = 1e9
	p := pool.New(sched, src, nil, cfg)

	link := netlink.NewLink(sched, src, netlink.LatencyModel{}, netlink.LatencyModel{})

	cm := NewChannelManager(sched, p, "miner-1", link.BToA, link.AToB, nil)
	cm.Run()

	mc := NewMinerConn(sched, src, "miner-1", 10000, false, link.AToB, link.BToA, nil)
	mc.Start()

	sched.Run(200)

	assert.Greater(t, p.AcceptedSubmits, int64(0))
	assert.EqualValues(t, 0, p.RejectedSubmits)
}

func TestV2ExtendedChannelAcceptsShares(t *testing.T) {
	sched := clock.New(false, 1)
	src := rng.NewSeeded(7)

	cfg := pool.DefaultConfig("p1")
	cfg.SimulateLuck = false
	cfg.AvgBlockTimeSeconds = 1e9
	p := pool.New(sched, src, nil, cfg)

	link := netlink.NewLink(sched, src, netlink.LatencyModel{}, netlink.LatencyModel{})
	cm := NewChannelManager(sched, p, "miner-ext", link.BToA, link.AToB, nil)
	cm.Run()

	mc := NewMinerConn(sched, src, "miner-ext", 10000, true, link.AToB, link.BToA, nil)
	mc.Start()

	sched.Run(200)

	assert.Greater(t, p.AcceptedSubmits, int64(0))
}

func TestV2FutureJobPromotedOnNewBlock(t *testing.T) {
	sched := clock.New(false, 1)
	src := rng.NewSeeded(3)

	cfg := pool.DefaultConfig("p1")
	cfg.SimulateLuck = false
	cfg.AvgBlockTimeSeconds = 5
	p := pool.New(sched, src, nil, cfg)

	link := netlink.NewLink(sched, src, netlink.LatencyModel{}, netlink.LatencyModel{})
	cm := NewChannelManager(sched, p, "miner-1", link.BToA, link.AToB, nil)
	cm.Run()

	mc := NewMinerConn(sched, src, "miner-1", 50000, false, link.AToB, link.BToA, nil)
	mc.Start()

	sched.Run(100)

	require.Len(t, cm.channels, 1)
	for _, ch := range cm.channels {
		assert.True(t, ch.hasFuture)
		assert.Greater(t, ch.futureJobUID, ch.currentJobUID)
	}
}
