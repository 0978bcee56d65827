package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/target"
)

func TestUnknownUID(t *testing.T) {
	r := NewRegistry()
	_, v := r.Lookup(1)
	assert.Equal(t, Unknown, v)
	assert.False(t, r.Contains(1))
}

func TestAddThenValid(t *testing.T) {
	r := NewRegistry()
	j := r.Add("ph", true, target.FromDifficulty(100))
	_, v := r.Lookup(j.UID)
	assert.Equal(t, Valid, v)
	assert.True(t, r.Contains(j.UID))
}

func TestRetireAllMakesExistingStale(t *testing.T) {
	r := NewRegistry()
	j1 := r.Add("ph1", true, target.FromDifficulty(100))
	r.RetireAll()
	_, v := r.Lookup(j1.UID)
	assert.Equal(t, Stale, v)
	assert.False(t, r.Contains(j1.UID))
}

func TestUIDsMonotonicAndNeverReused(t *testing.T) {
	r := NewRegistry()
	j1 := r.Add("ph1", true, target.FromDifficulty(100))
	j2 := r.Add("ph2", true, target.FromDifficulty(100))
	assert.Greater(t, j2.UID, j1.UID)
}

func TestJobAfterRetireIsValidAgain(t *testing.T) {
	r := NewRegistry()
	r.Add("ph1", true, target.FromDifficulty(100))
	r.RetireAll()
	j2 := r.Add("ph2", true, target.FromDifficulty(100))
	_, v := r.Lookup(j2.UID)
	assert.Equal(t, Valid, v)
}

func TestRetireBeforeSparesThePromotedJob(t *testing.T) {
	r := NewRegistry()
	j1 := r.Add("ph1", true, target.FromDifficulty(100))
	j2 := r.Add("ph2", true, target.FromDifficulty(100))
	r.RetireBefore(j2.UID)

	_, v1 := r.Lookup(j1.UID)
	assert.Equal(t, Stale, v1)
	_, v2 := r.Lookup(j2.UID)
	assert.Equal(t, Valid, v2)
}

func TestRetireBeforeNeverLowersWatermark(t *testing.T) {
	r := NewRegistry()
	j1 := r.Add("ph1", true, target.FromDifficulty(100))
	j2 := r.Add("ph2", true, target.FromDifficulty(100))
	r.RetireBefore(j2.UID)
	r.RetireBefore(j1.UID)
	_, v2 := r.Lookup(j2.UID)
	assert.Equal(t, Valid, v2)
}

func TestConsecutiveRetireAllSameWatermark(t *testing.T) {
	r := NewRegistry()
	r.Add("ph1", true, target.FromDifficulty(100))
	r.RetireAll()
	first := r.minValidUID
	r.RetireAll()
	require.Equal(t, first, r.minValidUID)
}
