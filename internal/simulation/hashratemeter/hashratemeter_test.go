package hashratemeter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInactiveMeterReportsZero(t *testing.T) {
	m := New(10, 6, 120)
	assert.False(t, m.Active())
	assert.Equal(t, 0.0, m.Hashrate(0))
}

func TestRecordAccumulatesWithinWindow(t *testing.T) {
	m := New(10, 6, 120)
	for i := 0; i < 10; i++ {
		m.Record(float64(i), 100)
	}
	hr := m.Hashrate(9)
	assert.Greater(t, hr, 0.0)
	assert.InDelta(t, 1000*Diff1Target/10, hr, 1000*Diff1Target/10*0.5)
}

func TestSubmitsPerSecond(t *testing.T) {
	m := New(10, 6, 120)
	for i := 0; i < 20; i++ {
		m.Record(float64(i), 1)
	}
	rate := m.SubmitsPerSecond(19)
	assert.InDelta(t, 1.0, rate, 0.5)
}

func TestGoesOnHoldAfterInactivity(t *testing.T) {
	m := New(10, 6, 30)
	m.Record(0, 100)
	m.Tick(40)
	assert.True(t, m.OnHold())
}

func TestResumesFromHoldOnNewShare(t *testing.T) {
	m := New(10, 6, 30)
	m.Record(0, 100)
	m.Tick(40)
	assert.True(t, m.OnHold())
	m.Record(41, 100)
	assert.False(t, m.OnHold())
}
