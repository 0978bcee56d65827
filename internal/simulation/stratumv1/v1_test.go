package stratumv1

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/netlink"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/pool"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
)

func TestV1EndToEndAcceptsShares(t *testing.T) {
	sched := clock.New(false, 1)
	src := rng.NewSeeded(123)

	cfg := pool.DefaultConfig("p1")
	cfg.SimulateLuck = false
	cfg.AvgBlockTimeSeconds = 1e9 // effectively no blocks during this short run
	p := pool.New(sched, src, nil, cfg)

	link := netlink.NewLink(sched, src, netlink.LatencyModel{}, netlink.LatencyModel{})

	pc := NewPoolConn(sched, p, "miner-1", link.BToA, link.AToB, nil)
	pc.Run()

	mc := NewMinerConn(sched, src, "miner-1", 10000, 0.3, link.AToB, link.BToA, nil)
	mc.Start()

	sched.Run(200)

	assert.Greater(t, p.AcceptedSubmits, int64(0))
	assert.EqualValues(t, 0, p.RejectedSubmits)
	require.LessOrEqual(t, p.StaleShares, p.AcceptedShares*0.05+1)
}

func TestV1SubscribeFromWrongStateErrors(t *testing.T) {
	sched := clock.New(false, 1)
	src := rng.NewSeeded(1)
	cfg := pool.DefaultConfig("p1")
	cfg.SimulateLuck = false
	p := pool.New(sched, src, nil, cfg)

	link := netlink.NewLink(sched, src, netlink.LatencyModel{}, netlink.LatencyModel{})
	pc := NewPoolConn(sched, p, "m", link.BToA, link.AToB, nil)
	pc.Run()

	link.AToB.Put(&Subscribe{ReqID: 1})
	sched.Run(1)
	link.AToB.Put(&Subscribe{ReqID: 2})
	sched.Run(2)

	v, err := link.BToA.Get(context.Background())
	require.NoError(t, err)
	_, ok := v.(*SubscribeResponse)
	require.True(t, ok)

	v, err = link.BToA.Get(context.Background())
	require.NoError(t, err)
	errRes, ok := v.(*ErrorResult)
	require.True(t, ok)
	assert.Equal(t, "Subscribe not expected when in: RUNNING", errRes.Message)
}
