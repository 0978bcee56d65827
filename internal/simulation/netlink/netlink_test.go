package netlink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
)

func TestZeroLatencyDeliversImmediately(t *testing.T) {
	sched := clock.New(false, 1)
	q := NewQueue(sched, rng.NewSeeded(1), LatencyModel{})

	var got any
	sched.Spawn(func(ctx context.Context) {
		v, err := q.Get(ctx)
		require.NoError(t, err)
		got = v
	})
	q.Put("hello")
	sched.Run(-1)

	assert.Equal(t, "hello", got)
}

func TestFIFOOrderingPreservedAcrossLatency(t *testing.T) {
	sched := clock.New(false, 1)
	q := NewQueue(sched, rng.NewSeeded(1), LatencyModel{MeanSeconds: 0.01, StddevSeconds: 0.005})

	var received []any
	sched.Spawn(func(ctx context.Context) {
		for i := 0; i < 5; i++ {
			v, err := q.Get(ctx)
			require.NoError(t, err)
			received = append(received, v)
		}
	})
	for i := 0; i < 5; i++ {
		q.Put(i)
	}
	sched.Run(-1)

	require.Len(t, received, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, received[i])
	}
}

func TestGetCancelledByContext(t *testing.T) {
	sched := clock.New(false, 1)
	q := NewQueue(sched, rng.NewSeeded(1), LatencyModel{})

	var errOut error
	h := sched.Spawn(func(ctx context.Context) {
		_, errOut = q.Get(ctx)
	})
	sched.Spawn(func(ctx context.Context) {
		_ = sched.Sleep(ctx, 1)
		h.Interrupt()
	})
	sched.Run(-1)

	assert.Error(t, errOut)
}
