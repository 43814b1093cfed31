package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickRollout(trials int) RolloutContext {
	rc := DefaultRolloutContext()
	rc.Trials = trials
	rc.Cubeful = false
	rc.Early = cubeless(0)
	rc.Late = cubeless(0)
	rc.VarianceReduction = false
	rc.Seed = 42
	return rc
}

// lostRace is a race the player on roll loses by a backgammon whatever
// the dice.
func lostRace() Board {
	var b Board
	b[1][20] = 15
	b[0][0] = 2
	return b
}

func TestRolloutRace(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Rollout(context.Background(), raceBoard(), MoneyCubeInfo(0), quickRollout(72), nil)
	require.NoError(t, err)

	assert.Equal(t, 72, res.Games)
	assert.False(t, res.Stopped)
	assertConsistent(t, res.Probs)
	assert.InDelta(t, res.Probs.Equity(), res.Equity, 1e-5)

	wins := 0
	for _, side := range res.Stats.Wins {
		for _, n := range side {
			wins += n
		}
	}
	assert.Equal(t, res.Games, wins)
	assert.Equal(t, 72, res.Stats.CubeValues[0])
}

func TestRolloutReproducible(t *testing.T) {
	e := newTestEngine(t)
	rc := quickRollout(72)
	rc.VarianceReduction = true

	a, err := e.Rollout(context.Background(), raceBoard(), MoneyCubeInfo(0), rc, nil)
	require.NoError(t, err)
	b, err := e.Rollout(context.Background(), raceBoard(), MoneyCubeInfo(0), rc, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Probs, b.Probs)
	assert.Equal(t, a.Equity, b.Equity)
	assert.Equal(t, a.Stats, b.Stats)

	rc.RNG = RNGFrand
	c, err := e.Rollout(context.Background(), raceBoard(), MoneyCubeInfo(0), rc, nil)
	require.NoError(t, err)
	d, err := e.Rollout(context.Background(), raceBoard(), MoneyCubeInfo(0), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, c.Probs, d.Probs)
}

func TestRolloutCubeful(t *testing.T) {
	e := newTestEngine(t)
	rc := quickRollout(36)
	rc.Cubeful = true
	rc.Early = DefaultEvalContext()
	rc.Late = DefaultEvalContext()

	res, err := e.Rollout(context.Background(), raceBoard(), MoneyCubeInfo(0), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, 36, res.Games)
	assert.GreaterOrEqual(t, res.CubefulEquity, float32(-6))
	assert.LessOrEqual(t, res.CubefulEquity, float32(6))
}

func TestRolloutLostGame(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Rollout(context.Background(), lostRace(), MoneyCubeInfo(0), quickRollout(36), nil)
	require.NoError(t, err)
	assert.Equal(t, Probabilities{0, 0, 0, 1, 1}, res.Probs)
	assert.InDelta(t, -3, res.Equity, 1e-6)
	assert.Equal(t, float32(0), res.EquityStdErr)
	assert.Equal(t, 36, res.Stats.Wins[1][2])
}

func TestRolloutCancelled(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Rollout(ctx, raceBoard(), MoneyCubeInfo(0), quickRollout(72), nil)
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Equal(t, 0, res.Games)
}

func TestRolloutProgress(t *testing.T) {
	e := newTestEngine(t)
	var got []RolloutProgress
	_, err := e.Rollout(context.Background(), raceBoard(), MoneyCubeInfo(0), quickRollout(72), func(p RolloutProgress) {
		got = append(got, p)
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 36, got[0].Trial)
	assert.Equal(t, 72, got[1].Trial)
	assert.Equal(t, 72, got[1].Trials)
	assert.Equal(t, 1, got[1].Rank)
}

func TestRolloutStopOnSTD(t *testing.T) {
	e := newTestEngine(t)
	rc := quickRollout(360)
	rc.StopOnSTD = true
	rc.MinGames = 36
	rc.STDLimit = 10

	res, err := e.Rollout(context.Background(), raceBoard(), MoneyCubeInfo(0), rc, nil)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 36, res.Games)
}

// statWith returns running statistics of n samples with the given mean
// and standard error.
func statWith(n int, mean, se float64) welford {
	return welford{n: n, mean: mean, m2: se * se * float64(n) * float64(n-1)}
}

func TestApplyStoppingRulesRelativeSTD(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		mean, se  float64
		cubefulSE float64
		cubeful   bool
		retired   bool
	}{
		{"noisy result near zero", 400, 0.002, 0.005, 0.005, false, false},
		{"settled large equity", 400, 2.0, 0.015, 0.015, false, true},
		{"tiny means are not checked", 400, 0.00005, 0.01, 0.01, false, true},
		{"too few games", 100, 2.0, 0.015, 0.015, false, false},
		{"cubeful equity ignored when cubeless", 400, 0.5, 0.004, 0.5, false, true},
		{"cubeful equity checked when cubeful", 400, 0.5, 0.004, 0.5, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := DefaultRolloutContext()
			rc.StopOnSTD = true
			rc.MinGames = 324
			rc.STDLimit = 0.01
			rc.Cubeful = tt.cubeful

			results := make([]RolloutResult, 1)
			for i := range results[0].stat {
				results[0].stat[i] = statWith(tt.n, tt.mean, tt.se)
			}
			results[0].stat[statCubeful] = statWith(tt.n, tt.mean, tt.cubefulSE)
			active := []bool{true}

			applyStoppingRules(results, active, rc)
			assert.Equal(t, tt.retired, !active[0])
			assert.Equal(t, tt.retired, results[0].Converged)
		})
	}
}

func TestRolloutGeneralStopOnJSD(t *testing.T) {
	e := newTestEngine(t)
	rc := quickRollout(360)
	rc.StopOnJSD = true
	rc.MinJSDGames = 36

	alts := []RolloutAlternative{
		{Board: raceBoard(), Cube: MoneyCubeInfo(0)},
		{Board: lostRace(), Cube: MoneyCubeInfo(0)},
	}
	res, err := e.RolloutGeneral(context.Background(), alts, rc, nil)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, 1, res[0].Rank)
	assert.Equal(t, 2, res[1].Rank)
	assert.True(t, res[1].Converged)
	assert.Equal(t, 36, res[1].Games)
	assert.Greater(t, res[1].JSD, rc.JSDLimit)
	assert.Equal(t, 36, res[0].Games, "the best alternative stops once nothing competes")
}

func TestRolloutTruncate(t *testing.T) {
	e := newTestEngine(t)
	rc := quickRollout(36)
	rc.Truncate = 4

	res, err := e.Rollout(context.Background(), StartingPosition(VariantStandard), MoneyCubeInfo(0), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, 36, res.Games)
	assert.Equal(t, 36, res.Stats.Truncated, "no game ends within four plies of the start")
	assert.Equal(t, 36, res.Stats.CubeValues[0])
	assert.Equal(t, [2][3]int{}, res.Stats.Wins)
	assertConsistent(t, res.Probs)

	rc.Truncate = 0
	res, err = e.Rollout(context.Background(), raceBoard(), MoneyCubeInfo(0), rc, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Stats.Truncated)
}

func TestTruncateSubstitutesEvaluation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	b := StartingPosition(VariantStandard)
	ci := MoneyCubeInfo(0)
	want, err := e.Evaluate(ctx, b, ci, cubeless(0))
	require.NoError(t, err)
	u := float64(e.Utility(want, ci))

	tests := []struct {
		name    string
		player  int
		probs   Probabilities
		cubeful float64
	}{
		{"player on roll", 0, want, u},
		{"opponent on roll", 1, want.Invert(), -u},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := e.newEvaluator(ctx, cubeless(0))
			var o trialOutcome
			require.NoError(t, ev.truncate(&o, b, ci, ci, tt.player, cubeless(0), false))
			for i := range tt.probs {
				assert.InDelta(t, tt.probs[i], o.probs[i], 1e-6, "output %d", i)
			}
			assert.InDelta(t, tt.cubeful, o.cubeful, 1e-6)
			assert.Equal(t, 1, o.stats.CubeValues[0])
		})
	}
}

func TestRolloutFailures(t *testing.T) {
	e := newTestEngine(t)
	hyper := MoneyCubeInfo(0)
	hyper.Variant = VariantHypergammon2
	alts := []RolloutAlternative{
		{Board: raceBoard(), Cube: MoneyCubeInfo(0)},
		// No hypergammon database is loaded, so every trial fails.
		{Board: StartingPosition(VariantHypergammon2), Cube: hyper},
	}

	t.Run("failed trials are excluded", func(t *testing.T) {
		rc := quickRollout(36)
		rc.Truncate = 1
		rc.FailureRate = 1
		res, err := e.RolloutGeneral(context.Background(), alts, rc, nil)
		require.NoError(t, err)
		assert.Equal(t, 36, res[0].Games)
		assert.Zero(t, res[0].Failures)
		assert.Zero(t, res[1].Games)
		assert.Equal(t, 36, res[1].Failures)
		assert.Equal(t, Probabilities{}, res[1].Probs)
	})

	t.Run("failure rate exceeded", func(t *testing.T) {
		rc := quickRollout(36)
		rc.Truncate = 1
		_, err := e.RolloutGeneral(context.Background(), alts, rc, nil)
		assert.ErrorIs(t, err, ErrRolloutFailureRate)

		_, err = e.Rollout(context.Background(), alts[1].Board, alts[1].Cube, rc, nil)
		assert.ErrorIs(t, err, ErrRolloutFailureRate)
	})
}

func TestRolloutLatePly(t *testing.T) {
	rc := quickRollout(36)
	rc.Early = cubeless(0)
	rc.Late = cubeless(2)

	tests := []struct {
		latePly int
		ply     int
		want    int
	}{
		{0, 0, 0},
		{0, 50, 0},
		{3, 0, 0},
		{3, 2, 0},
		{3, 3, 2},
		{3, 40, 2},
		{1, 1, 2},
	}
	for _, tt := range tests {
		rc.LatePly = tt.latePly
		assert.Equal(t, tt.want, rc.evalContext(tt.ply).Plies, "latePly %d at ply %d", tt.latePly, tt.ply)
	}
}

func TestRolloutVarianceReduction(t *testing.T) {
	e := newTestEngine(t)
	rc := quickRollout(144)
	rc.Truncate = 8

	b := StartingPosition(VariantStandard)
	plain, err := e.Rollout(context.Background(), b, MoneyCubeInfo(0), rc, nil)
	require.NoError(t, err)

	rc.VarianceReduction = true
	vr, err := e.Rollout(context.Background(), b, MoneyCubeInfo(0), rc, nil)
	require.NoError(t, err)

	assert.Less(t, vr.EquityStdErr, plain.EquityStdErr)
	spread := 4 * math.Hypot(float64(plain.EquityStdErr), float64(vr.EquityStdErr))
	assert.InDelta(t, plain.Equity, vr.Equity, spread)
}

func TestRolloutValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rc *RolloutContext)
	}{
		{"no trials", func(rc *RolloutContext) { rc.Trials = 0 }},
		{"negative truncation", func(rc *RolloutContext) { rc.Truncate = -1 }},
		{"failure rate", func(rc *RolloutContext) { rc.FailureRate = 2 }},
		{"unknown RNG", func(rc *RolloutContext) { rc.RNG = RNG(9) }},
		{"early plies", func(rc *RolloutContext) { rc.Early.Plies = MaxPlies + 1 }},
		{"late noise", func(rc *RolloutContext) { rc.Late.Noise = -1 }},
	}

	require.NoError(t, DefaultRolloutContext().Validate())
	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := DefaultRolloutContext()
			tt.mutate(&rc)
			assert.Error(t, rc.Validate())

			_, err := e.Rollout(context.Background(), raceBoard(), MoneyCubeInfo(0), rc, nil)
			assert.Error(t, err)
		})
	}

	_, err := e.RolloutGeneral(context.Background(), nil, DefaultRolloutContext(), nil)
	assert.Error(t, err)
}

func TestWelford(t *testing.T) {
	var w welford
	for _, x := range []float64{1, 2, 3, 4} {
		w.push(x)
	}
	assert.InDelta(t, 2.5, w.mean, 1e-12)
	// sample variance 5/3
	assert.InDelta(t, 0.6454972, w.stdErr(), 1e-6)
}
