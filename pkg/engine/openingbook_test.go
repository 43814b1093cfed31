package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpeningBookPlaysAreLegal(t *testing.T) {
	b := StartingPosition(VariantStandard)
	for hi := 2; hi <= 6; hi++ {
		for lo := 1; lo < hi; lo++ {
			plays := OpeningPlays(hi, lo)
			require.NotEmpty(t, plays, "%d-%d", hi, lo)
			assert.Equal(t, plays, OpeningPlays(lo, hi))

			legal := formatted(b, GenerateMoves(b, hi, lo))
			for _, op := range plays {
				assert.Contains(t, legal, op.Play, "%d-%d", hi, lo)
			}
		}
	}
	assert.Nil(t, OpeningPlays(4, 4))
}

func TestIsReferencePlay(t *testing.T) {
	b := StartingPosition(VariantStandard)
	moves := GenerateMoves(b, 6, 5)

	var run, other *Move
	for i := range moves {
		switch FormatMove(b, moves[i]) {
		case "24/13":
			run = &moves[i]
		case "13/7 13/8", "13/8 13/7":
			other = &moves[i]
		}
	}
	require.NotNil(t, run)
	require.NotNil(t, other)

	assert.True(t, IsReferencePlay(b, 6, 5, *run))
	assert.True(t, IsReferencePlay(b, 5, 6, *run))
	assert.False(t, IsReferencePlay(b, 6, 5, *other))

	assert.False(t, IsReferencePlay(SwapSides(run.Board), 6, 5, *run), "not the opening position")
	assert.True(t, IsOpeningPosition(b, VariantStandard))
	assert.False(t, IsOpeningPosition(b, VariantNackgammon))
}
