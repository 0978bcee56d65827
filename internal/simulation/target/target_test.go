package target

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDifficultyRoundTrip(t *testing.T) {
	tg := FromDifficulty(1)
	assert.Equal(t, 0, tg.Cmp(Max()))

	tg = FromDifficulty(1024)
	diff := tg.Difficulty()
	assert.InDelta(t, 1024, diff, 1.0)
}

func TestFromDifficultyNonPositive(t *testing.T) {
	tg := FromDifficulty(0)
	assert.Equal(t, 0, tg.Cmp(Max()))

	tg = FromDifficulty(-5)
	assert.Equal(t, 0, tg.Cmp(Max()))
}

func TestDivByFactorLowersTargetRaisesDifficulty(t *testing.T) {
	base := FromDifficulty(100)
	harder := base.DivByFactor(2)

	assert.True(t, harder.Cmp(base) < 0, "dividing target by 2 should make it smaller/harder")
	assert.InDelta(t, 200, harder.Difficulty(), 1.0)
}

func TestDivByFactorNeverGoesBelowOne(t *testing.T) {
	tiny := New(big.NewInt(1))
	result := tiny.DivByFactor(1000)
	require.Equal(t, 0, result.Cmp(New(big.NewInt(1))))
}

func TestDivByFactorNonPositiveIsNoOp(t *testing.T) {
	base := FromDifficulty(50)
	same := base.DivByFactor(0)
	assert.Equal(t, 0, same.Cmp(base))
}

func TestMeets(t *testing.T) {
	tg := New(big.NewInt(1000))
	assert.True(t, tg.Meets(big.NewInt(999)))
	assert.True(t, tg.Meets(big.NewInt(1000)))
	assert.False(t, tg.Meets(big.NewInt(1001)))
}

func TestStringIsPadded(t *testing.T) {
	tg := New(big.NewInt(1))
	s := tg.String()
	assert.Len(t, s, 64)
	assert.Equal(t, strings.Repeat("0", 63)+"1", s)
}
