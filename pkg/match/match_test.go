package match

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgforge/gnubgcore/pkg/engine"
)

const sampleMAT = ` ; [Site "TestSite"]
 ; [Player 1 "Alice"]
 ; [Player 2 "Bob"]
 ; [EventDate "2024.01.15"]

 3 point match

 Game 1
 Alice : 0                          Bob : 0
  1) 31: 8/5 6/5                    52: 13/11 13/8
  2) 65: 24/13                      Doubles => 2
  3)  Drops                         Wins 1 point

 Game 2
 Alice : 0                          Bob : 1
  1)                                42: 8/4 6/4
  2) 64: 24/18 13/9
`

func importSample(t *testing.T) *Match {
	t.Helper()
	m, err := ImportMAT(strings.NewReader(sampleMAT))
	require.NoError(t, err)
	return m
}

func TestImportMAT(t *testing.T) {
	m := importSample(t)

	assert.Equal(t, [2]string{"Alice", "Bob"}, m.Players)
	assert.Equal(t, "TestSite", m.Place)
	assert.Equal(t, "2024.01.15", m.Date)
	assert.Equal(t, 3, m.MatchLength)
	require.Len(t, m.Games, 2)

	g1 := m.Games[0]
	assert.Equal(t, 1, g1.Number)
	assert.Equal(t, [2]int{0, 0}, g1.Score)
	assert.Equal(t, 1, g1.Winner)
	assert.Equal(t, 1, g1.Points)
	assert.Equal(t, []Action{
		{Type: ActionMove, Player: 0, Dice: [2]int{3, 1}, Move: "8/5 6/5"},
		{Type: ActionMove, Player: 1, Dice: [2]int{5, 2}, Move: "13/11 13/8"},
		{Type: ActionMove, Player: 0, Dice: [2]int{6, 5}, Move: "24/13"},
		{Type: ActionDouble, Player: 1, Value: 2},
		{Type: ActionPass, Player: 0},
		{Type: ActionWin, Player: 1, Value: 1},
	}, g1.Actions)

	g2 := m.Games[1]
	assert.Equal(t, [2]int{0, 1}, g2.Score)
	assert.Equal(t, -1, g2.Winner)
	require.Len(t, g2.Actions, 2)
	assert.Equal(t, 1, g2.Actions[0].Player, "empty left column")
	assert.Equal(t, 0, g2.Actions[1].Player)
}

func TestImportMATErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no games", " 5 point match\n"},
		{"move before score", " Game 1\n  1) 31: 8/5 6/5\n"},
		{"unrecognised entry", " Game 1\n A : 0     B : 0\n  1) Resigns\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ImportMAT(strings.NewReader(tc.content))
			assert.ErrorIs(t, err, ErrInvalidMatch)
		})
	}
}

func TestCrawford(t *testing.T) {
	m := NewMatch("Alice", "Bob", 5)
	m.NewGame(0, 0)
	m.NewGame(4, 2)
	m.NewGame(4, 3)

	assert.False(t, m.Games[0].Crawford)
	assert.True(t, m.Games[1].Crawford)
	assert.False(t, m.Games[2].Crawford, "post-Crawford")

	money := NewMatch("Alice", "Bob", 0)
	assert.False(t, money.NewGame(0, 0).Crawford)
}

func TestExportMATRoundTrip(t *testing.T) {
	m := importSample(t)

	var buf bytes.Buffer
	require.NoError(t, ExportMAT(&buf, m))
	out := buf.String()
	assert.Contains(t, out, `[Player 1 "Alice"]`)
	assert.Contains(t, out, "3 point match")
	assert.Contains(t, out, "Doubles => 2")

	again, err := ImportMAT(&buf)
	require.NoError(t, err, out)
	assert.Equal(t, m.Players, again.Players)
	require.Len(t, again.Games, len(m.Games))
	for i := range m.Games {
		assert.Equal(t, m.Games[i].Score, again.Games[i].Score)
		assert.Equal(t, m.Games[i].Actions, again.Games[i].Actions)
	}
}

func TestDecisions(t *testing.T) {
	m := importSample(t)
	ds, err := m.Decisions()
	require.NoError(t, err)
	require.Len(t, ds, 6)

	start := engine.StartingPosition(engine.VariantStandard)
	first := ds[0]
	assert.Equal(t, 1, first.Game)
	assert.Equal(t, 1, first.MoveNumber)
	assert.Equal(t, start, first.Board)
	assert.Equal(t, 0, first.Cube.Move)
	assert.Equal(t, 3, first.Cube.MatchTo)
	assert.Equal(t, [2]int{3, 1}, first.Dice)
	require.NotNil(t, first.Played)
	assert.Equal(t, engine.SwapSides(*first.Played), ds[1].Board)
	assert.Equal(t, 1, ds[1].Cube.Move)

	cube := ds[3]
	assert.True(t, cube.Doubled)
	assert.True(t, cube.Passed)
	assert.Equal(t, 1, cube.Cube.Move)
	assert.Equal(t, 1, cube.Cube.Cube)
	assert.Nil(t, cube.Played)

	g2 := ds[4]
	assert.Equal(t, 2, g2.Game)
	assert.Equal(t, 1, g2.MoveNumber)
	assert.Equal(t, start, g2.Board)
	assert.Equal(t, 1, g2.Cube.Move)
	assert.Equal(t, [2]int{0, 1}, g2.Cube.Score)
	assert.Equal(t, 0, ds[5].Cube.Move)
}

func TestDecisionsTakenDouble(t *testing.T) {
	m := NewMatch("Alice", "Bob", 0)
	g := m.NewGame(0, 0)
	g.AddMove(0, 3, 1, "8/5 6/5")
	g.AddDouble(1, 2)
	g.AddTake(0)
	g.AddMove(1, 4, 2, "8/4 6/4")
	g.AddMove(0, 6, 4, "24/18 13/9")

	ds, err := m.Decisions()
	require.NoError(t, err)
	require.Len(t, ds, 3)

	assert.True(t, ds[1].Doubled)
	assert.False(t, ds[1].Passed)
	assert.Equal(t, 1, ds[1].Cube.Cube, "cube before the double")
	assert.Equal(t, [2]int{4, 2}, ds[1].Dice)
	require.NotNil(t, ds[1].Played)

	assert.Equal(t, 2, ds[2].Cube.Cube)
	assert.Equal(t, 0, ds[2].Cube.Owner)
	assert.True(t, ds[2].Cube.IsMoney())
}

func TestDecisionsErrors(t *testing.T) {
	tests := []struct {
		name    string
		actions func(g *Game)
		illegal bool
	}{
		{"illegal play", func(g *Game) { g.AddMove(0, 3, 1, "24/20") }, true},
		{"missing play", func(g *Game) { g.AddMove(0, 3, 1, "") }, true},
		{"out of turn", func(g *Game) {
			g.AddMove(0, 3, 1, "8/5 6/5")
			g.AddMove(0, 4, 2, "8/4 6/4")
		}, false},
		{"take without double", func(g *Game) { g.AddTake(1) }, false},
		{"unanswered double", func(g *Game) {
			g.AddDouble(0, 2)
			g.AddMove(0, 3, 1, "8/5 6/5")
		}, false},
		{"double after taking", func(g *Game) {
			g.AddDouble(0, 2)
			g.AddTake(1)
			g.AddMove(0, 3, 1, "8/5 6/5")
			g.AddMove(1, 3, 1, "8/5 6/5")
			g.AddDouble(0, 4)
		}, false},
		{"play after pass", func(g *Game) {
			g.AddDouble(0, 2)
			g.AddPass(1)
			g.AddMove(1, 3, 1, "8/5 6/5")
		}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMatch("Alice", "Bob", 7)
			tc.actions(m.NewGame(0, 0))
			_, err := m.Decisions()
			require.ErrorIs(t, err, ErrInvalidMatch)
			if tc.illegal {
				assert.ErrorIs(t, err, engine.ErrIllegalMove)
			}
		})
	}
}

func TestApplyNotation(t *testing.T) {
	start := engine.StartingPosition(engine.VariantStandard)

	b, err := applyNotation(start, "8/5 6/5")
	require.NoError(t, err)
	assert.Equal(t, uint8(2), b[1][7])
	assert.Equal(t, uint8(4), b[1][5])
	assert.Equal(t, uint8(2), b[1][4])

	direct, err := applyNotation(start, "24/13")
	require.NoError(t, err)
	chained, err := applyNotation(start, "24/18/13")
	require.NoError(t, err)
	assert.Equal(t, direct, chained)

	b, err = applyNotation(start, "6/2(2)")
	require.NoError(t, err)
	assert.Equal(t, uint8(3), b[1][5])
	assert.Equal(t, uint8(2), b[1][1])

	var blot engine.Board
	blot[1][23] = 1
	blot[0][6] = 1 // on our 18 point
	b, err = applyNotation(blot, "24/18*")
	require.NoError(t, err)
	assert.Equal(t, uint8(1), b[1][17])
	assert.Equal(t, uint8(0), b[0][6])
	assert.Equal(t, uint8(1), b[0][24])

	for _, bad := range []string{"24/19", "bar/22", "13/18", "8", "25/20", "6/off(x)"} {
		_, err := applyNotation(start, bad)
		assert.Error(t, err, bad)
	}
}

func TestAnalyzeImportedMatch(t *testing.T) {
	ds, err := importSample(t).Decisions()
	require.NoError(t, err)

	e, err := engine.NewEngine(engine.EngineOptions{})
	require.NoError(t, err)
	res, err := e.AnalyzeGame(context.Background(), ds, engine.DefaultAnalysisOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Games)
	assert.Equal(t, [2]int{3, 2}, res.Stats.TotalMoves)
	assert.Equal(t, 1, res.Stats.Doubles[1])
	assert.Equal(t, 1, res.Stats.Passes[0])
}
