package rng

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededIsReproducible(t *testing.T) {
	a := NewSeeded(42)
	b := NewSeeded(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Exponential(0.1), b.Exponential(0.1))
		assert.Equal(t, a.Normal(10, 1), b.Normal(10, 1))
	}
}

func TestExponentialNonPositiveRateIsInfinite(t *testing.T) {
	s := NewSeeded(1)
	assert.True(t, math.IsInf(s.Exponential(0), 1))
	assert.True(t, math.IsInf(s.Exponential(-1), 1))
}

func TestNormalNeverNegative(t *testing.T) {
	s := NewSeeded(1)
	for i := 0; i < 1000; i++ {
		assert.GreaterOrEqual(t, s.Normal(0, 1), 0.0)
	}
}
