package met

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadXML(t *testing.T) {
	table, err := LoadXML("../../data/g11.xml")
	if err != nil {
		t.Skipf("MET file not found: %v", err)
	}
	sc := Score{MatchTo: 11}
	assert.InDelta(t, 0.5, table.ME(sc, 0), 0.01)

	sc.Points = [2]int{5, 0}
	assert.Greater(t, table.ME(sc, 0), float32(0.5))
}

func TestDefaultTableShape(t *testing.T) {
	table := Default()

	assert.InDelta(t, 0.5, table.PostCrawford[0][0], 1e-6)
	assert.InDelta(t, 0.485, table.PostCrawford[0][1], 1e-6)

	for i := 0; i < MaxScore; i++ {
		for j := 0; j < MaxScore; j++ {
			sum := table.PreCrawford[i][j] + table.PreCrawford[j][i]
			require.InDelta(t, 1.0, sum, 1e-4, "symmetry at %d,%d", i, j)
			require.GreaterOrEqual(t, table.PreCrawford[i][j], float32(0))
			require.LessOrEqual(t, table.PreCrawford[i][j], float32(1))
		}
	}

	// needing fewer points is better
	for i := 1; i < DefaultLength; i++ {
		assert.Greater(t, table.PreCrawford[i-1][5], table.PreCrawford[i][5], "row %d", i)
	}
}

func TestGetME(t *testing.T) {
	table := Default()

	tests := []struct {
		name    string
		score   Score
		player  int
		points  int
		winner  int
		wantMin float32
		wantMax float32
	}{
		{"level start", Score{MatchTo: 11}, 0, 0, 0, 0.49, 0.51},
		{"player 1 view", Score{MatchTo: 11}, 1, 0, 0, 0.49, 0.51},
		{"leader", Score{MatchTo: 11, Points: [2]int{8, 2}}, 0, 0, 0, 0.7, 0.95},
		{"winning the match", Score{MatchTo: 5, Points: [2]int{4, 2}}, 0, 1, 0, 1, 1},
		{"losing the match", Score{MatchTo: 5, Points: [2]int{4, 2}}, 0, 4, 1, 0, 0},
		{"gammon overshoots", Score{MatchTo: 3, Points: [2]int{1, 0}}, 1, 2, 0, 0, 0},
		{"Crawford game", Score{MatchTo: 5, Points: [2]int{4, 2}, Crawford: true}, 1, 0, 0, 0.1, 0.4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := table.GetME(tc.score, tc.player, tc.points, tc.winner)
			assert.GreaterOrEqual(t, got, tc.wantMin)
			assert.LessOrEqual(t, got, tc.wantMax)
			other := table.GetME(tc.score, 1-tc.player, tc.points, tc.winner)
			assert.InDelta(t, 1.0, got+other, 1e-6)
		})
	}
}

func TestPostCrawfordLookup(t *testing.T) {
	table := Default()
	// player 0 at 1-away post-Crawford, player 1 needs 2
	sc := Score{MatchTo: 5, Points: [2]int{4, 3}}
	assert.InDelta(t, 1-table.PostCrawford[1][1], table.ME(sc, 0), 1e-6)
	assert.True(t, sc.PostCrawford())

	sc.Crawford = true
	assert.False(t, sc.PostCrawford())
}

func TestEquityConversions(t *testing.T) {
	table := Default()
	sc := Score{MatchTo: 7, Points: [2]int{2, 4}}

	for _, eq := range []float32{-1, -0.5, 0, 0.3, 1} {
		mwc := table.Eq2Mwc(eq, sc, 0, 2)
		assert.InDelta(t, eq, table.Mwc2Eq(mwc, sc, 0, 2), 1e-5)
	}
	assert.InDelta(t, table.GetME(sc, 0, 2, 0), table.Eq2Mwc(1, sc, 0, 2), 1e-6)
	assert.InDelta(t, table.GetME(sc, 0, 2, 1), table.Eq2Mwc(-1, sc, 0, 2), 1e-6)
}

func TestGammonPrice(t *testing.T) {
	table := Default()

	// double match point: gammons are worthless
	gp := table.GammonPrice(Score{MatchTo: 5, Points: [2]int{4, 4}}, 1)
	assert.Equal(t, [4]float32{0, 0, 0, 0}, gp)

	// a long match at level score looks like money
	gp = table.GammonPrice(Score{MatchTo: 25}, 1)
	for i := 0; i < 2; i++ {
		assert.Greater(t, gp[i], float32(0.5), "gammon price %d", i)
		assert.Less(t, gp[i], float32(1.5), "gammon price %d", i)
	}

	// 2-away trailer with a 1-cube: winning a gammon wins the match
	gp = table.GammonPrice(Score{MatchTo: 5, Points: [2]int{3, 0}}, 2)
	assert.Equal(t, float32(0), gp[0])
}

func TestTakePoints(t *testing.T) {
	table := Default()
	cp := table.TakePoints(Score{MatchTo: 25}, 1, [2]float32{}, [2]float32{})
	for k := 0; k < 2; k++ {
		assert.Greater(t, cp[k], float32(0.6), "player %d", k)
		assert.Less(t, cp[k], float32(0.95), "player %d", k)
	}
	assert.InDelta(t, cp[0], cp[1], 1e-4)

	// at 2-away 4-away the trailer cashes earlier than the leader
	cp = table.TakePoints(Score{MatchTo: 5, Points: [2]int{3, 1}}, 1, [2]float32{}, [2]float32{})
	assert.Less(t, cp[1], cp[0])

	// gammons make the opponent's double easier to pass
	g := table.TakePoints(Score{MatchTo: 25}, 1, [2]float32{0.2, 0.2}, [2]float32{0.01, 0.01})
	assert.Less(t, g[0], float32(0.8))
}

const smallMET = `<?xml version="1.0"?>
<met>
  <info><name>small</name><description>test</description><length>3</length></info>
  <pre-crawford-table type="explicit">
    <row><me>0.5</me><me>0.68</me><me>0.75</me></row>
    <row><me>0.32</me><me>0.5</me><me>0.6</me></row>
    <row><me>0.25</me><me>0.4</me><me>0.5</me></row>
  </pre-crawford-table>
  <post-crawford-table player="both" type="explicit">
    <row><me>0.5</me><me>0.485</me></row>
  </post-crawford-table>
</met>`

func TestParseXML(t *testing.T) {
	table, err := ParseXML(strings.NewReader(smallMET))
	require.NoError(t, err)
	assert.Equal(t, "small", table.Name)
	assert.Equal(t, 3, table.Length)

	assert.InDelta(t, 0.68, table.ME(Score{MatchTo: 3, Points: [2]int{2, 1}, Crawford: true}, 0), 1e-6)
	assert.InDelta(t, 0.485, table.PostCrawford[1][1], 1e-6)

	// extended beyond the explicit rows
	assert.Greater(t, table.PostCrawford[0][2], float32(0))
	assert.InDelta(t, 1.0, table.PreCrawford[10][3]+table.PreCrawford[3][10], 1e-5)
}

func TestParseXMLErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"garbage", "not xml"},
		{"no length", "<met><info><name>x</name></info></met>"},
		{"short rows", strings.Replace(smallMET, "<me>0.75</me>", "", 1)},
		{"bad number", strings.Replace(smallMET, "0.68", "zero", 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseXML(strings.NewReader(tc.doc))
			assert.True(t, errors.Is(err, ErrInvalidTable), "got %v", err)
		})
	}
}
