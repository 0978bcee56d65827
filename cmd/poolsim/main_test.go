package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/bus"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/pool"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/scenario"
)

func TestLoadScenarioDefaultsToV2(t *testing.T) {
	sc, err := loadScenario("", false, false, 0.01, false)
	require.NoError(t, err)
	assert.Equal(t, scenario.ModeV2, sc.Mode)
}

func TestLoadScenarioHonorsV1Flag(t *testing.T) {
	sc, err := loadScenario("", true, false, 0.01, true)
	require.NoError(t, err)
	assert.Equal(t, scenario.ModeV1, sc.Mode)
	assert.False(t, sc.Pool.SimulateLuck)
}

func TestWireFleetV1EndToEndAcceptsShares(t *testing.T) {
	sched := clock.New(false, 1)
	src := rng.NewSeeded(123)

	sc := scenario.Default(scenario.ModeV1, 0, true)
	sc.Pool.AvgBlockTimeSeconds = 1e9

	p := pool.New(sched, src, nil, pool.Config{
		Name:                 sc.Pool.Name,
		InitialDifficulty:    float64(sc.Pool.InitialDifficulty),
		Extranonce2Size:      sc.Pool.Extranonce2Size,
		AvgBlockTimeSeconds:  sc.Pool.AvgBlockTimeSeconds,
		EnableVardiff:        sc.Pool.EnableVardiff,
		DesiredSubmitsPerSec: sc.Pool.DesiredSubmitsPerSec,
		SimulateLuck:         sc.Pool.SimulateLuck,
	})

	wireFleet(sched, src, p, sc, bus.Discard{})
	sched.Run(300)

	assert.Greater(t, p.AcceptedSubmits, int64(0))
	assert.EqualValues(t, 0, p.RejectedSubmits)
}
