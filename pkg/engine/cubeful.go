package engine

import (
	"context"

	"github.com/bgforge/gnubgcore/internal/neuralnet"
	"github.com/bgforge/gnubgcore/internal/positionid"
)

// CubeAnalysis is the result of a cube decision analysis.
type CubeAnalysis struct {
	Probs          Probabilities
	Equities       [4]float32 // indexed by EquityNoDouble .. EquityOptimal
	Decision       CubeDecision
	Recommendation string
	Plies          int
}

// EvaluateCubeful returns the no double, double/take, double/pass and
// optimal equities for the player on roll, normalised to the current
// cube.
func (e *Engine) EvaluateCubeful(ctx context.Context, b Board, ci CubeInfo, ec EvalContext) ([4]float32, error) {
	a, err := e.AnalyzeCube(ctx, b, ci, ec)
	if err != nil {
		return [4]float32{}, err
	}
	return a.Equities, nil
}

// AnalyzeCube evaluates the cube action of the player on roll.
func (e *Engine) AnalyzeCube(ctx context.Context, b Board, ci CubeInfo, ec EvalContext) (*CubeAnalysis, error) {
	if err := checkRequest(b, ci, ec); err != nil {
		return nil, err
	}
	ev := e.newEvaluator(ctx, ec)
	p, eq, cd, err := ev.cubeDecision(b, ci, ec)
	if err != nil {
		return nil, err
	}
	return &CubeAnalysis{
		Probs:          p,
		Equities:       eq,
		Decision:       cd,
		Recommendation: GetCubeRecommendation(cd),
		Plies:          ec.Plies,
	}, nil
}

// cubeDecision evaluates the no double and double/take cube positions
// together and classifies the result.
func (ev *evaluator) cubeDecision(b Board, ci CubeInfo, ec EvalContext) (Probabilities, [4]float32, CubeDecision, error) {
	take := ci
	take.Cube = 2 * ci.Cube
	take.Owner = 1 - ci.Move

	var eq [4]float32
	p, cf, err := ev.evaluatePositionCubeful3(b, []CubeInfo{ci, take}, ci, ec, ec.Plies, true)
	if err != nil {
		return p, eq, NotAvailable, err
	}

	_, dp := ev.GetDPEq(ci)
	if ci.MatchTo == 0 {
		eq[EquityNoDouble] = cf[0]
		eq[EquityDoubleTake] = 2 * cf[1]
		eq[EquityDoublePass] = dp
	} else {
		eq[EquityNoDouble] = ev.Mwc2Eq(cf[0], ci)
		eq[EquityDoubleTake] = ev.Mwc2Eq(cf[1], ci)
		eq[EquityDoublePass] = ev.Mwc2Eq(dp, ci)
	}
	cd := ev.FindBestCubeDecision(&eq, p, ci)
	return p, eq, cd, nil
}

// evaluatePositionCubeful3 is evaluatePositionCubeful4 through the cache.
// Only single cube positions below the root are cached.
func (ev *evaluator) evaluatePositionCubeful3(b Board, cis []CubeInfo, ciMove CubeInfo, ec EvalContext, nPlies int, top bool) (Probabilities, []float32, error) {
	if ev.cache == nil || ec.Noise > 0 || len(cis) != 1 || top {
		return ev.evaluatePositionCubeful4(b, cis, ciMove, ec, nPlies, top)
	}

	key := positionid.PositionKey(b)
	ctxKey := evalKey(ec, nPlies, cis[0], true)
	if out, ok := ev.cache.Lookup(key, ctxKey); ok {
		var p Probabilities
		copy(p[:], out[:NumOutputs])
		return p, []float32{out[NumOutputs]}, nil
	}

	p, cf, err := ev.evaluatePositionCubeful4(b, cis, ciMove, ec, nPlies, top)
	if err != nil {
		return p, cf, err
	}
	var out [NumOutputs + 1]float32
	copy(out[:], p[:])
	out[NumOutputs] = cf[0]
	ev.cache.Add(key, ctxKey, out)
	return p, cf, nil
}

// evaluatePositionCubeful4 returns the cubeless probabilities of b and
// the cubeful value of each cube position in cis: money equity or match
// winning chance for the player on roll. Every node lets the player on
// roll double where the cube allows it, except the root whose cube
// positions are given by the caller.
func (ev *evaluator) evaluatePositionCubeful4(b Board, cis []CubeInfo, ciMove CubeInfo, ec EvalContext, nPlies int, top bool) (Probabilities, []float32, error) {
	pc := ev.Classify(b, ciMove.Variant)

	if pc == neuralnet.ClassOver || nPlies == 0 {
		p, err := ev.evaluatePositionCache(b, ciMove, ec, 0, pc)
		if err != nil {
			return p, nil, err
		}
		x := evalEfficiency(b, pc)
		next := ev.makeCubePos(cis, top, false)
		cf := make([]float32, len(next))
		for i, c := range next {
			if c.Cube > 0 {
				cf[i] = ev.cl2cf(p, c, x)
			}
		}
		return p, ev.getECF3(cis, next, cf), nil
	}

	usePrune := ec.Prune && ec.Noise == 0 && ciMove.Variant == VariantStandard
	next := ev.makeCubePos(cis, top, true)
	ciOpp := ciMove.Flip()

	var sum [NumOutputs]float32
	sumCf := make([]float32, len(next))
	for _, r := range rolls21 {
		if err := ev.interrupted(); err != nil {
			return Probabilities{}, nil, err
		}

		nb, err := ev.bestMoveForRoll(b, r[0], r[1], ciMove, ec, usePrune)
		if err != nil {
			return Probabilities{}, nil, err
		}
		nb = SwapSides(nb)

		p, cf, err := ev.evaluatePositionCubeful3(nb, next, ciOpp, ec, nPlies-1, false)
		if err != nil {
			return Probabilities{}, nil, err
		}
		w := float32(r[2])
		for i := range sum {
			sum[i] += w * p[i]
		}
		for i := range next {
			if next[i].Cube > 0 {
				sumCf[i] += w * cf[i]
			}
		}
	}

	var p Probabilities
	for i := range sum {
		p[i] = sum[i] / 36
	}
	p = p.Invert()

	for i := range sumCf {
		if ciMove.MatchTo > 0 {
			sumCf[i] = 1 - sumCf[i]/36
		} else {
			sumCf[i] = -sumCf[i] / 36
		}
	}
	return p, ev.getECF3(cis, next, sumCf), nil
}

// makeCubePos expands every cube position into a no double and a double
// entry for the player on roll. Unreachable entries get cube -1. With
// invert the entries are for the opponent, who is on roll next.
func (e *Engine) makeCubePos(cis []CubeInfo, top, invert bool) []CubeInfo {
	out := make([]CubeInfo, 2*len(cis))
	for i, ci := range cis {
		nd := ci
		if ci.Cube <= 0 {
			nd.Cube = -1
		}

		dt := ci
		dt.Cube = -1
		if !top && ci.Cube > 0 {
			if ok, _ := e.GetDPEq(ci); ok {
				dt.Cube = 2 * ci.Cube
				dt.Owner = 1 - ci.Move
			}
		}

		if invert {
			nd.Move = 1 - nd.Move
			dt.Move = 1 - dt.Move
		}
		out[2*i], out[2*i+1] = nd, dt
	}
	return out
}

// getECF3 folds each no double/double pair of cf back into the value of
// the cube position it was made from: the player doubles when both the
// take and the pass are at least as good as not doubling, and the
// opponent then picks the smaller of the two.
func (e *Engine) getECF3(cis, next []CubeInfo, cf []float32) []float32 {
	out := make([]float32, len(cis))
	for ici, ci := range cis {
		i := 2 * ici
		if next[i+1].Cube <= 0 {
			out[ici] = cf[i]
			continue
		}

		nd := cf[i]
		dt := cf[i+1]
		if ci.MatchTo == 0 {
			dt *= 2
		}
		_, dp := e.GetDPEq(ci)

		if dt >= nd && dp >= nd {
			out[ici] = min(dt, dp)
		} else {
			out[ici] = nd
		}
	}
	return out
}
