package engine

import (
	"math/bits"

	"github.com/bgforge/gnubgcore/internal/neuralnet"
	"github.com/bgforge/gnubgcore/internal/positionid"
)

// Move pruning constants
const (
	MinPruneMoves = 5  // candidates kept for small move lists
	MaxPruneMoves = 16 // upper bound on candidates kept
)

// pruneCount returns how many of n moves survive pruning:
// MinPruneMoves + floor(log2 n).
func pruneCount(n int) int {
	return min(MinPruneMoves+bits.Len(uint(n))-1, MaxPruneMoves)
}

// findBestMoveInEval picks the best move of d0-d1 inside the search. The
// moves are ranked by the cheap pruning evaluation and only the best few
// are scored at 0 ply. Pruning is abandoned when the resulting positions
// do not all share a network class, or when they are bearoffs.
func (ev *evaluator) findBestMoveInEval(b Board, d0, d1 int, ci CubeInfo, ec EvalContext) (Board, error) {
	moves := GenerateMoves(b, d0, d1)
	switch len(moves) {
	case 0:
		return b, nil
	case 1:
		return moves[0].Board, nil
	}

	keep := pruneCount(len(moves))
	candidates := moves
	if len(moves) > keep {
		if kept, ok := ev.pruneMoves(moves, keep, ci); ok {
			candidates = kept
		}
	}

	ec0 := ec.withPlies(0)
	if err := ev.scoreMoves(candidates, ci, ec0, 0); err != nil {
		return b, err
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score > candidates[best].Score {
			best = i
		}
	}
	return candidates[best].Board, nil
}

// pruneMoves returns the keep moves whose resulting positions look best
// to the pruning networks. ok is false when pruning does not apply.
func (ev *evaluator) pruneMoves(moves []Move, keep int, ci CubeInfo) ([]Move, bool) {
	ciOpp := ci.Flip()

	type scored struct {
		index int
		score float32 // opponent's equity, lower is better
	}
	kept := make([]scored, 0, keep+1)

	var first Class
	for i := range moves {
		nb := SwapSides(moves[i].Board)
		pc := ev.Classify(nb, ci.Variant)
		if i == 0 {
			if pc < neuralnet.ClassRace {
				return nil, false
			}
			first = pc
		} else if pc != first {
			return nil, false
		}

		p := ev.evalPruneCached(nb, pc, ci.Variant)
		s := ev.UtilityME(p, ciOpp)

		// insertion into the sorted keep list
		j := len(kept)
		if j == keep && s >= kept[j-1].score {
			continue
		}
		kept = append(kept, scored{})
		for j > 0 && kept[j-1].score > s {
			kept[j] = kept[j-1]
			j--
		}
		kept[j] = scored{index: i, score: s}
		if len(kept) > keep {
			kept = kept[:keep]
		}
	}

	out := make([]Move, len(kept))
	for i, k := range kept {
		out[i] = moves[k.index]
	}
	return out, true
}

// evalPruneCached is evalPrune through the prune cache.
func (ev *evaluator) evalPruneCached(b Board, pc Class, v Variant) Probabilities {
	if ev.pruneCache == nil {
		return ev.evalPrune(b, pc, v)
	}
	key := positionid.PositionKey(b)
	ctxKey := uint32(v)
	if out, ok := ev.pruneCache.Lookup(key, ctxKey); ok {
		var p Probabilities
		copy(p[:], out[:NumOutputs])
		return p
	}
	p := ev.evalPrune(b, pc, v)
	var out [NumOutputs + 1]float32
	copy(out[:], p[:])
	ev.pruneCache.Add(key, ctxKey, out)
	return p
}
