// Package target implements 256-bit mining target/difficulty arithmetic.
//
// A share's target is a 256-bit integer; a smaller target means a harder
// share. Difficulty is expressed relative to "difficulty 1", the largest
// target the protocol defines, so that difficulty 1 == easiest share.
package target

import (
	"math/big"
	"strings"
)

// Diff1 is the canonical difficulty-1 target: 0x00000000FFFF0000...0000,
// the same constant Bitcoin-family pools use as the difficulty baseline.
var Diff1 = new(big.Int).Lsh(big.NewInt(0xFFFF), 208)

// Target is a 256-bit share target. The zero value is not meaningful;
// construct one with New or FromDifficulty.
type Target struct {
	v *big.Int
}

// New wraps v as a Target, copying it so the caller's big.Int can be
// mutated freely afterwards.
func New(v *big.Int) Target {
	return Target{v: new(big.Int).Set(v)}
}

// Max returns the easiest possible target (difficulty 1).
func Max() Target {
	return New(Diff1)
}

// FromDifficulty derives a target from a difficulty value: target =
// floor(diff1 / diff). A non-positive diff is treated as 1.
func FromDifficulty(diff float64) Target {
	if diff <= 0 {
		diff = 1
	}
	q := new(big.Float).Quo(new(big.Float).SetInt(Diff1), big.NewFloat(diff))
	i, _ := q.Int(nil)
	if i.Sign() <= 0 {
		i = big.NewInt(1)
	}
	return Target{v: i}
}

// Int returns a copy of the underlying big.Int.
func (t Target) Int() *big.Int {
	return new(big.Int).Set(t.v)
}

// Difficulty converts the target back to a difficulty value: diff1 /
// target, computed as a float so callers can report fractional
// difficulties the way pools conventionally display them.
func (t Target) Difficulty() float64 {
	if t.v.Sign() <= 0 {
		return 0
	}
	q := new(big.Float).Quo(new(big.Float).SetInt(Diff1), new(big.Float).SetInt(t.v))
	f, _ := q.Float64()
	return f
}

// DivByFactor returns a new target equal to floor(t / f). Dividing the
// target by f > 1 makes shares harder (smaller target, higher
// difficulty); f < 1 makes them easier. f <= 0 is treated as 1 (no change). The result is never
// below 1.
func (t Target) DivByFactor(f float64) Target {
	if f <= 0 {
		f = 1
	}
	q := new(big.Float).Quo(new(big.Float).SetInt(t.v), big.NewFloat(f))
	i, _ := q.Int(nil)
	if i.Sign() <= 0 {
		i = big.NewInt(1)
	}
	return Target{v: i}
}

// Meets reports whether hash (interpreted as a big-endian 256-bit
// integer) is numerically <= t, i.e. the share meets the target.
func (t Target) Meets(hash *big.Int) bool {
	return hash.Cmp(t.v) <= 0
}

// Cmp compares t to other the way big.Int.Cmp does.
func (t Target) Cmp(other Target) int {
	return t.v.Cmp(other.v)
}

// String renders the target as a zero-padded 64-hex-digit string, the
// conventional wire representation for a 256-bit target.
func (t Target) String() string {
	s := t.v.Text(16)
	if len(s) < 64 {
		s = strings.Repeat("0", 64-len(s)) + s
	}
	return s
}
