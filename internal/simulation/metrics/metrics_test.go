package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/pool"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
)

func TestSnapshotExportsPoolCounters(t *testing.T) {
	sched := clock.New(false, 1)
	src := rng.NewSeeded(1)
	cfg := pool.DefaultConfig("p1")
	cfg.SimulateLuck = false
	p := pool.New(sched, src, nil, cfg)
	p.AcceptedSubmits = 5
	p.RejectedSubmits = 2

	e := New(sched)
	e.Register("p1", p)
	e.Run(10)
	sched.Run(11)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	e.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, "poolsim_accepted_submits_total")
	assert.True(t, strings.Contains(body, `pool="p1"`))
}
