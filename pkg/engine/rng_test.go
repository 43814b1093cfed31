package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rollSequence(d diceSource, n int) [][2]int {
	out := make([][2]int, n)
	for i := range out {
		out[i][0], out[i][1] = d.roll()
	}
	return out
}

func TestDiceReproducible(t *testing.T) {
	for _, kind := range []RNG{RNGPCG, RNGFrand} {
		t.Run(kind.String(), func(t *testing.T) {
			a := rollSequence(newDice(kind, 7, 3, false), 50)
			b := rollSequence(newDice(kind, 7, 3, false), 50)
			assert.Equal(t, a, b)

			c := rollSequence(newDice(kind, 7, 4, false), 50)
			assert.NotEqual(t, a, c, "other trial")

			for _, r := range a {
				assert.True(t, r[0] >= 1 && r[0] <= 6 && r[1] >= 1 && r[1] <= 6, "%v", r)
			}
		})
	}
}

func TestRotatedDiceFirstRoll(t *testing.T) {
	seen := make(map[[2]int]bool)
	for trial := 0; trial < 36; trial++ {
		r := rollSequence(newDice(RNGPCG, 99, trial, true), 1)[0]
		seen[r] = true
	}
	assert.Len(t, seen, 36)
}

func TestRotatedDiceFirstTwoRolls(t *testing.T) {
	seen := make(map[[4]int]bool)
	for trial := 0; trial < 1296; trial++ {
		r := rollSequence(newDice(RNGFrand, 5, trial, true), 3)
		seen[[4]int{r[0][0], r[0][1], r[1][0], r[1][1]}] = true
	}
	assert.Len(t, seen, 1296)
}

func TestParseRNG(t *testing.T) {
	for _, kind := range []RNG{RNGPCG, RNGFrand} {
		text, err := kind.MarshalText()
		require.NoError(t, err)

		var got RNG
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, kind, got)
	}

	r, err := ParseRNG("")
	require.NoError(t, err)
	assert.Equal(t, RNGPCG, r)

	r, err = ParseRNG("FRAND")
	require.NoError(t, err)
	assert.Equal(t, RNGFrand, r)

	_, err = ParseRNG("mersenne")
	assert.Error(t, err)
	assert.Equal(t, "RNG(7)", RNG(7).String())
}

func TestSplitmix64(t *testing.T) {
	seen := make(map[uint64]bool)
	for i := uint64(0); i < 1000; i++ {
		seen[splitmix64(i)] = true
	}
	assert.Len(t, seen, 1000)
}
