package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/target"
)

func TestTerminateIsIdempotent(t *testing.T) {
	sched := clock.New(false, 1)
	s := New(sched, "t", target.FromDifficulty(1000), false, 10, 0.3)
	s.Terminate()
	assert.NotPanics(t, func() { s.Terminate() })
}

func TestVardiffDropsTargetOnZeroSubmits(t *testing.T) {
	sched := clock.New(false, 1)
	s := New(sched, "t", target.FromDifficulty(1000), true, 10, 0.3)

	var changes int
	s.OnVardiffChange = func(*Session) { changes++ }

	initial := s.CurrentTarget
	s.Run()
	sched.Run(11)

	require.GreaterOrEqual(t, changes, 1)
	// Zero observed submits halves the difficulty (f=0.5), which means the
	// 256-bit target itself doubles (easier share requirement).
	assert.True(t, s.CurrentTarget.Cmp(initial) > 0, "target should have grown (easier) with zero submits")
}

func TestMeasureNoOpWithoutVardiff(t *testing.T) {
	sched := clock.New(false, 1)
	s := New(sched, "t", target.FromDifficulty(1000), false, 10, 0.3)
	assert.NotPanics(t, func() { s.Measure(1000) })
}
