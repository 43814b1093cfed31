package engine

import (
	"math"

	"github.com/bgforge/gnubgcore/internal/neuralnet"
	"github.com/bgforge/gnubgcore/internal/positionid"
)

// Value of a made point by index in the owner's frame. The 5-point is
// the most valuable, anchors deep in the opponent's board the least.
var pointValue = [24]float64{
	0.15, 0.35, 0.55, 0.8, 1.2, 1.1, // home board
	0.9, 0.6, 0.3, 0.25, 0.2, 0.2, // outfield
	0.15, 0.1, 0.1, 0.1, 0.1, 0.1, // opponent's outfield
	0.4, 0.6, 0.6, 0.45, 0.35, 0.3, // anchors
}

// Rolls (out of 36) hitting a blot at a distance, ignoring blocks.
var shotRolls = [25]int{
	0, 11, 12, 14, 15, 15, 17, 6, 6, 5, 3, 2, 3,
	0, 0, 1, 1, 0, 1, 0, 1, 0, 0, 0, 1,
}

// heuristicEvaluate is the evaluator used without network weights: a
// race formula adjusted by point structure, exposed blots, back chequers
// and chequers on the bar. It is deterministic and cheap.
func heuristicEvaluate(b Board, pc Class) Probabilities {
	pips := positionid.PipCount(b)
	total := float64(pips[0] + pips[1])

	// being on roll is worth about four pips
	lead := float64(pips[0]-pips[1]) + 4
	x := 2.2 * lead / math.Sqrt(total+16)

	if pc >= neuralnet.ClassCrashed {
		x += 0.35 * (structure(b[1]) - structure(b[0]))
		x += 0.9 * exposure(b[0], b[1])
		x -= 0.3 * exposure(b[1], b[0])
		x -= 0.25 * (float64(b[1][24]) - float64(b[0][24]))
		x -= 0.1 * float64(backChequers(b[1])-backChequers(b[0]))
	}

	var p Probabilities
	p[OutputWin] = float32(sigmoid(x))
	if pc >= neuralnet.ClassCrashed {
		w := float64(p[OutputWin])
		p[OutputWinGammon] = float32(0.25 * w * w * w)
		p[OutputWinBackgammon] = 0.05 * p[OutputWinGammon]
		l := 1 - w
		p[OutputLoseGammon] = float32(0.25 * l * l * l)
		p[OutputLoseBackgammon] = 0.05 * p[OutputLoseGammon]
	}
	return p
}

func structure(side [25]uint8) float64 {
	s := 0.0
	for i := 0; i < 24; i++ {
		if side[i] >= 2 {
			s += pointValue[i]
		}
	}
	return s
}

// backChequers counts the chequers of side still in the opponent's home
// board.
func backChequers(side [25]uint8) int {
	n := 0
	for i := 18; i < 24; i++ {
		n += int(side[i])
	}
	return n
}

// exposure estimates the chance that roller hits a blot of victim, scaled
// by the pips the blot loses when hit.
func exposure(victim, roller [25]uint8) float64 {
	risk := 0.0
	for i := 0; i < 24; i++ {
		if victim[i] != 1 {
			continue
		}
		// the blot in the roller's frame
		at := 23 - i
		rolls := 0
		for j := at + 1; j < 25; j++ {
			if roller[j] > 0 {
				rolls += shotRolls[j-at]
			}
		}
		if rolls == 0 {
			continue
		}
		hit := math.Min(float64(rolls), 36) / 36
		risk += hit * (0.2 + float64(23-i)/15)
	}
	return risk
}
