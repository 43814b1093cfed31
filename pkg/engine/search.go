package engine

import (
	"bytes"
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/bgforge/gnubgcore/internal/positionid"
)

// MoveSearchOptions tunes FindNSaveBestMoves.
type MoveSearchOptions struct {
	// KeyMove is the position reached by the move actually played. That
	// move is evaluated as deep as the best move and always returned.
	KeyMove *positionid.Key

	// Threshold is the equity loss above which a played move that
	// stopped at a shallower ply is re-analysed at full depth.
	Threshold float32

	// MaxMoves caps the returned list. 0 returns every move. A played
	// move outside the cap replaces the last kept move, or follows the
	// best move when MaxMoves is 1.
	MaxMoves int
}

// DefaultMoveSearchOptions re-analyses played moves losing more than a
// doubtful move.
func DefaultMoveSearchOptions() MoveSearchOptions {
	return MoveSearchOptions{Threshold: 0.04}
}

// FindBestMove returns the best play of d0-d1 for the player on roll. The
// boolean is false when there is no legal play.
func (e *Engine) FindBestMove(ctx context.Context, b Board, d0, d1 int, ci CubeInfo, ec EvalContext) (Move, bool, error) {
	moves, _, err := e.FindNSaveBestMoves(ctx, b, d0, d1, ci, ec, MoveSearchOptions{})
	if err != nil || len(moves) == 0 {
		return Move{}, false, err
	}
	return moves[0], true, nil
}

// FindNSaveBestMoves generates the plays of d0-d1, filters them ply by
// ply with ec's move filters and returns them best first together with
// the index of opts.KeyMove (-1 when not given or not legal).
func (e *Engine) FindNSaveBestMoves(ctx context.Context, b Board, d0, d1 int, ci CubeInfo, ec EvalContext, opts MoveSearchOptions) ([]Move, int, error) {
	if err := checkRequest(b, ci, ec); err != nil {
		return nil, -1, err
	}
	if err := checkDice(d0, d1); err != nil {
		return nil, -1, err
	}
	moves := GenerateMoves(b, d0, d1)
	if len(moves) == 0 {
		return nil, -1, nil
	}

	ev := e.newEvaluator(ctx, ec)
	if err := ev.findnSaveBestMoves(moves, ci, ec, ec.filters(), opts.KeyMove, opts.Threshold); err != nil {
		return nil, -1, err
	}

	played := -1
	if opts.KeyMove != nil {
		for i := range moves {
			if moves[i].Key == *opts.KeyMove {
				played = i
				break
			}
		}
	}

	if n := opts.MaxMoves; n > 0 && len(moves) > n {
		switch {
		case played >= n && n == 1:
			moves = []Move{moves[0], moves[played]}
			played = 1
		case played >= n:
			// the played move displaces the last kept one
			moves[n-1] = moves[played]
			played = n - 1
			moves = moves[:n]
		default:
			moves = moves[:n]
		}
	}
	return moves, played, nil
}

// findnSaveBestMoves scores moves in place. Moves surviving every filter
// are scored at ec.Plies; the rest keep the score of the last ply they
// reached.
func (ev *evaluator) findnSaveBestMoves(moves []Move, ci CubeInfo, ec EvalContext, mf *MoveFilters, key *positionid.Key, threshold float32) error {
	plies := ec.Plies
	row := mf[MaxFilterPlies-1]
	if plies > 0 && plies <= MaxFilterPlies {
		row = mf[plies-1]
	}

	c := len(moves)
	maxPly := 0
	full := true

	for iPly := 0; iPly < plies; iPly++ {
		f := nullFilter
		if iPly < MaxFilterPlies {
			f = row[iPly]
		}
		if f.Accept < 0 {
			continue
		}

		if err := ev.scoreMoves(moves[:c], ci, ec, iPly); err != nil {
			return err
		}
		sortMoves(moves[:c])

		k := c
		c = max(min(f.Accept, c), 1)
		limit := min(k, c+f.Extra)
		for ; c < limit; c++ {
			if moves[c].Score < moves[0].Score-f.Threshold {
				break
			}
		}
		maxPly = iPly

		if c == 1 && f.Accept != 1 {
			// a single survivor needs no deeper look
			full = false
			break
		}
	}

	if full {
		if err := ev.scoreMoves(moves[:c], ci, ec, plies); err != nil {
			return err
		}
		maxPly = plies
		sortMoves(moves[:c])
	}

	if key == nil {
		return nil
	}
	return ev.promoteKeyMove(moves, c, maxPly, ci, ec, *key, threshold)
}

// promoteKeyMove makes sure the played move is scored as deep as the
// moves it competes with and moves it among them.
func (ev *evaluator) promoteKeyMove(moves []Move, scored, maxPly int, ci CubeInfo, ec EvalContext, key positionid.Key, threshold float32) error {
	i := -1
	for j := range moves {
		if moves[j].Key == key {
			i = j
			break
		}
	}
	if i < 0 {
		return nil
	}

	resort := false
	if i >= scored && moves[i].Plies < maxPly {
		if err := ev.scoreMove(&moves[i], ci, ec, maxPly); err != nil {
			return err
		}
		resort = true
	}

	if abs32(moves[i].Score-moves[0].Score) > threshold && maxPly < ec.Plies {
		// a likely error: compare both at full depth
		if err := ev.scoreMove(&moves[0], ci, ec, ec.Plies); err != nil {
			return err
		}
		if i != 0 {
			if err := ev.scoreMove(&moves[i], ci, ec, ec.Plies); err != nil {
				return err
			}
		}
		scored = 1
		resort = true
	}

	if !resort || ec.Plies == 0 {
		return nil
	}
	if i > scored {
		m := moves[i]
		copy(moves[scored+1:i+1], moves[scored:i])
		moves[scored] = m
	}
	sortMoves(moves[:min(scored+1, len(moves))])
	return nil
}

// scoreMoves scores moves at nPlies. Deeper searches run in parallel,
// each goroutine writing only its own slot.
func (ev *evaluator) scoreMoves(moves []Move, ci CubeInfo, ec EvalContext, nPlies int) error {
	if nPlies == 0 || len(moves) < 2 {
		for i := range moves {
			if err := ev.scoreMove(&moves[i], ci, ec, nPlies); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ev.ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range moves {
		child := ev.fork()
		child.ctx = gctx
		m := &moves[i]
		g.Go(func() error {
			return child.scoreMove(m, ci, ec, nPlies)
		})
	}
	return g.Wait()
}

// scoreMove evaluates the position after m from the opponent's side and
// turns the result around.
func (ev *evaluator) scoreMove(m *Move, ci CubeInfo, ec EvalContext, nPlies int) error {
	if err := ev.interrupted(); err != nil {
		return err
	}
	b := SwapSides(m.Board)
	ciOpp := ci.Flip()
	pc := ev.Classify(b, ci.Variant)

	var (
		p       Probabilities
		eq, cf  float32
		cubeful []float32
		err     error
	)
	if ec.Cubeful {
		p, cubeful, err = ev.evaluatePositionCubeful3(b, []CubeInfo{ciOpp}, ciOpp, ec, nPlies, false)
		if err != nil {
			return err
		}
		cf = cubeful[0]
		eq = ev.UtilityME(p, ciOpp)
	} else {
		p, err = ev.evaluatePositionCache(b, ciOpp, ec, nPlies, pc)
		if err != nil {
			return err
		}
		eq = ev.UtilityME(p, ciOpp)
		cf = eq
		if ci.MatchTo > 0 {
			cf = ev.Eq2Mwc(eq, ciOpp)
		}
	}

	m.Probs = p.Invert()
	eq = -eq
	if ci.MatchTo > 0 {
		cf = ev.Mwc2Eq(1-cf, ci)
	} else {
		cf = -cf
	}

	m.Score = cf
	m.Score2 = eq
	m.Plies = nPlies
	m.Class = pc
	return nil
}

// sortMoves orders moves by score, then cubeless score, then position
// key so the ranking does not depend on generation order.
func sortMoves(moves []Move) {
	sort.SliceStable(moves, func(i, j int) bool {
		if moves[i].Score != moves[j].Score {
			return moves[i].Score > moves[j].Score
		}
		if moves[i].Score2 != moves[j].Score2 {
			return moves[i].Score2 > moves[j].Score2
		}
		return bytes.Compare(moves[i].Key[:], moves[j].Key[:]) < 0
	})
}

// findBestMovePlied plays the best move of d0-d1 at nPlies and returns
// the resulting board, or b itself when no move is possible.
func (ev *evaluator) findBestMovePlied(b Board, d0, d1 int, ci CubeInfo, ec EvalContext, nPlies int, mf *MoveFilters) (Board, error) {
	moves := GenerateMoves(b, d0, d1)
	switch len(moves) {
	case 0:
		return b, nil
	case 1:
		return moves[0].Board, nil
	}
	if err := ev.findnSaveBestMoves(moves, ci, ec.withPlies(nPlies), mf, nil, 0); err != nil {
		return b, err
	}
	return moves[0].Board, nil
}

func abs32(x float32) float32 {
	return float32(math.Abs(float64(x)))
}
