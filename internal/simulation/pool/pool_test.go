package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	simjob "github.com/braiins-sim/stratum-poolsim/internal/simulation/job"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/session"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/target"
)

func newTestPool(t *testing.T) (*Pool, *clock.Scheduler) {
	t.Helper()
	sched := clock.New(false, 1)
	cfg := DefaultConfig("test-pool")
	cfg.SimulateLuck = false
	p := New(sched, rng.NewSeeded(123), nil, cfg)
	return p, sched
}

func TestProcessSubmitUnknownJobIsRejected(t *testing.T) {
	p, sched := newTestPool(t)
	sess := session.New(sched, "s", p.DefaultTarget, false, 10, 0.3)

	var rejected bool
	p.ProcessSubmit(999, sess, func(target.Target) { t.Fatal("should not accept") }, func(*target.Target) { rejected = true })

	assert.True(t, rejected)
	assert.EqualValues(t, 1, p.RejectedSubmits)
}

func TestProcessSubmitValidJobIsAccepted(t *testing.T) {
	p, sched := newTestPool(t)
	sess := session.New(sched, "s", p.DefaultTarget, false, 10, 0.3)
	j := sess.Registry.Add(p.PrevHash, true, p.DefaultTarget)

	var accepted bool
	p.ProcessSubmit(j.UID, sess, func(target.Target) { accepted = true }, func(*target.Target) { t.Fatal("should not reject") })

	assert.True(t, accepted)
	assert.EqualValues(t, 1, p.AcceptedSubmits)
	assert.Greater(t, p.AcceptedShares, 0.0)
}

func TestProcessSubmitRetiredJobIsStale(t *testing.T) {
	p, sched := newTestPool(t)
	sess := session.New(sched, "s", p.DefaultTarget, false, 10, 0.3)
	j := sess.Registry.Add(p.PrevHash, true, p.DefaultTarget)
	sess.Registry.RetireAll()

	var rejected *target.Target
	var gotReject bool
	p.ProcessSubmit(j.UID, sess, func(target.Target) { t.Fatal("should not accept") }, func(tgt *target.Target) {
		gotReject = true
		rejected = tgt
	})

	require.True(t, gotReject)
	require.NotNil(t, rejected)
	assert.EqualValues(t, 1, p.StaleSubmits)
	assert.Greater(t, p.StaleShares, 0.0)
}

func TestLookupValidityMatchesJobPackage(t *testing.T) {
	p, sched := newTestPool(t)
	sess := session.New(sched, "s", p.DefaultTarget, false, 10, 0.3)
	_, v := sess.LookupJob(42)
	assert.Equal(t, simjob.Unknown, v)
}
