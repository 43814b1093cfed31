package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgforge/gnubgcore/internal/positionid"
)

func TestFindBestMoveOpeningPoints(t *testing.T) {
	tests := []struct {
		d0, d1 int
		want   string
	}{
		{3, 1, "8/5 6/5"},
		{6, 1, "13/7 8/7"},
		{4, 2, "8/4 6/4"},
		{6, 5, "24/13"},
	}

	e := newTestEngine(t)
	b := StartingPosition(VariantStandard)
	for _, ec := range []EvalContext{cubeless(0), DefaultEvalContext()} {
		for _, tt := range tests {
			m, ok, err := e.FindBestMove(context.Background(), b, tt.d0, tt.d1, MoneyCubeInfo(0), ec)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, FormatMove(b, m), "%d-%d cubeful=%v", tt.d0, tt.d1, ec.Cubeful)
			assert.True(t, IsReferencePlay(b, tt.d0, tt.d1, m))
		}
	}
}

func TestFindNSaveBestMovesSorted(t *testing.T) {
	e := newTestEngine(t)
	b := StartingPosition(VariantStandard)

	moves, played, err := e.FindNSaveBestMoves(context.Background(), b, 6, 4, MoneyCubeInfo(0), DefaultEvalContext(), MoveSearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, -1, played)
	assert.Len(t, moves, len(GenerateMoves(b, 6, 4)))

	for i := 1; i < len(moves); i++ {
		assert.GreaterOrEqual(t, moves[i-1].Score, moves[i].Score, "move %d", i)
		assert.Equal(t, 0, moves[i].Plies)
	}
}

func TestFindNSaveBestMovesKeyMove(t *testing.T) {
	e := newTestEngine(t)
	b := StartingPosition(VariantStandard)
	ec := DefaultEvalContext()
	all := GenerateMoves(b, 5, 2)
	require.Greater(t, len(all), 4)

	ranked, _, err := e.FindNSaveBestMoves(context.Background(), b, 5, 2, MoneyCubeInfo(0), ec, MoveSearchOptions{})
	require.NoError(t, err)
	worst := ranked[len(ranked)-1]

	t.Run("displaces the last kept move", func(t *testing.T) {
		opts := MoveSearchOptions{KeyMove: &worst.Key, MaxMoves: 3}
		moves, played, err := e.FindNSaveBestMoves(context.Background(), b, 5, 2, MoneyCubeInfo(0), ec, opts)
		require.NoError(t, err)
		require.Len(t, moves, 3)
		assert.Equal(t, 2, played)
		assert.Equal(t, worst.Key, moves[2].Key)
		assert.Equal(t, ranked[0].Key, moves[0].Key)
	})

	t.Run("within the kept moves", func(t *testing.T) {
		opts := MoveSearchOptions{KeyMove: &ranked[1].Key, MaxMoves: 3}
		moves, played, err := e.FindNSaveBestMoves(context.Background(), b, 5, 2, MoneyCubeInfo(0), ec, opts)
		require.NoError(t, err)
		require.Len(t, moves, 3)
		assert.Equal(t, 1, played)
		assert.Equal(t, ranked[1].Key, moves[1].Key)
	})

	t.Run("single move keeps the best", func(t *testing.T) {
		opts := MoveSearchOptions{KeyMove: &worst.Key, MaxMoves: 1}
		moves, played, err := e.FindNSaveBestMoves(context.Background(), b, 5, 2, MoneyCubeInfo(0), ec, opts)
		require.NoError(t, err)
		require.Len(t, moves, 2)
		assert.Equal(t, 1, played)
		assert.Equal(t, ranked[0].Key, moves[0].Key)
		assert.Equal(t, worst.Key, moves[1].Key)
	})

	t.Run("single move played best", func(t *testing.T) {
		opts := MoveSearchOptions{KeyMove: &ranked[0].Key, MaxMoves: 1}
		moves, played, err := e.FindNSaveBestMoves(context.Background(), b, 5, 2, MoneyCubeInfo(0), ec, opts)
		require.NoError(t, err)
		require.Len(t, moves, 1)
		assert.Equal(t, 0, played)
	})

	t.Run("not a legal play", func(t *testing.T) {
		key := all[0].Key
		key[0] ^= 0xff
		_, played, err := e.FindNSaveBestMoves(context.Background(), b, 5, 2, MoneyCubeInfo(0), ec, MoveSearchOptions{KeyMove: &key})
		require.NoError(t, err)
		assert.Equal(t, -1, played)
	})
}

func TestFindNSaveBestMovesOnePly(t *testing.T) {
	e := newTestEngine(t)
	b := StartingPosition(VariantStandard)
	ec := cubeless(1)

	first, _, err := e.FindNSaveBestMoves(context.Background(), b, 4, 3, MoneyCubeInfo(0), ec, MoveSearchOptions{})
	require.NoError(t, err)
	e.Cache().Flush()
	second, _, err := e.FindNSaveBestMoves(context.Background(), b, 4, 3, MoneyCubeInfo(0), ec, MoveSearchOptions{})
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}

func TestFindBestMoveDance(t *testing.T) {
	var b Board
	b[1][24] = 1
	b[1][5] = 14
	for i := 0; i < 6; i++ {
		b[0][i] = 2
	}
	b[0][12] = 3

	e := newTestEngine(t)
	_, ok, err := e.FindBestMove(context.Background(), b, 6, 6, MoneyCubeInfo(0), DefaultEvalContext())
	require.NoError(t, err)
	assert.False(t, ok)

	moves, played, err := e.FindNSaveBestMoves(context.Background(), b, 6, 6, MoneyCubeInfo(0), DefaultEvalContext(), DefaultMoveSearchOptions())
	require.NoError(t, err)
	assert.Empty(t, moves)
	assert.Equal(t, -1, played)
}

func TestFindBestMoveCancelled(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := e.FindBestMove(ctx, StartingPosition(VariantStandard), 3, 1, MoneyCubeInfo(0), cubeless(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindBestMoveInvalidDice(t *testing.T) {
	e := newTestEngine(t)
	b := StartingPosition(VariantStandard)
	for _, dice := range [][2]int{{0, 7}, {0, 3}, {3, 7}, {-1, 1}} {
		_, ok, err := e.FindBestMove(context.Background(), b, dice[0], dice[1], MoneyCubeInfo(0), DefaultEvalContext())
		assert.ErrorIs(t, err, ErrInvalidDice, "%v", dice)
		assert.False(t, ok)
	}
}

func TestPromoteKeyMoveFailure(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ec := cubeless(1)
	ev := e.newEvaluator(ctx, ec)
	moves := GenerateMoves(StartingPosition(VariantStandard), 5, 2)
	key := moves[len(moves)-1].Key

	err := ev.promoteKeyMove(moves, 1, 1, MoneyCubeInfo(0), ec, key, DefaultMoveSearchOptions().Threshold)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortMovesStable(t *testing.T) {
	moves := []Move{
		{Score: 0.1, Score2: 0.1, Pips: 1, Key: positionid.Key{2}},
		{Score: 0.3, Score2: 0.0, Pips: 2},
		{Score: 0.3, Score2: 0.2, Pips: 3},
		{Score: 0.1, Score2: 0.1, Pips: 4, Key: positionid.Key{1}},
		{Score: 0.1, Score2: 0.1, Pips: 5, Key: positionid.Key{1}},
	}
	sortMoves(moves)

	var order []int
	for _, m := range moves {
		order = append(order, m.Pips)
	}
	assert.Equal(t, []int{3, 2, 4, 5, 1}, order, "full ties fall back to key order")
}

func TestPruneCount(t *testing.T) {
	tests := []struct{ n, want int }{
		{1, 5},
		{2, 6},
		{3, 6},
		{8, 8},
		{20, 9},
		{1 << 20, MaxPruneMoves},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pruneCount(tt.n), "n=%d", tt.n)
	}
}
