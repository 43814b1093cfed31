// Package engine is the backgammon core: position evaluation, cube
// decisions, move search and rollouts.
package engine

import (
	"github.com/bgforge/gnubgcore/internal/neuralnet"
	"github.com/bgforge/gnubgcore/internal/positionid"
)

// Board holds the chequers of both players, each in its own frame.
// Index 0-23 are the points (0 is the player's ace point), index 24 is
// the bar. Side 1 is the player on roll.
type Board = positionid.Board

// Variant selects the game being played.
type Variant = neuralnet.Variant

// Class is the evaluation phase of a position.
type Class = neuralnet.Class

const (
	VariantStandard     = neuralnet.VariantStandard
	VariantNackgammon   = neuralnet.VariantNackgammon
	VariantHypergammon1 = neuralnet.VariantHypergammon1
	VariantHypergammon2 = neuralnet.VariantHypergammon2
	VariantHypergammon3 = neuralnet.VariantHypergammon3
)

// Output slots of a probability vector, from the point of view of the
// player on roll.
const (
	OutputWin = iota
	OutputWinGammon
	OutputWinBackgammon
	OutputLoseGammon
	OutputLoseBackgammon

	NumOutputs = neuralnet.NumOutputs
)

// Probabilities are the cubeless outcome chances of a position. Gammon
// slots include backgammons.
type Probabilities [NumOutputs]float32

// Invert returns the probabilities from the opponent's point of view.
func (p Probabilities) Invert() Probabilities {
	return Probabilities{
		OutputWin:            1 - p[OutputWin],
		OutputWinGammon:      p[OutputLoseGammon],
		OutputWinBackgammon:  p[OutputLoseBackgammon],
		OutputLoseGammon:     p[OutputWinGammon],
		OutputLoseBackgammon: p[OutputWinBackgammon],
	}
}

// Lose returns the chance of losing.
func (p Probabilities) Lose() float32 {
	return 1 - p[OutputWin]
}

// Equity returns the cubeless money equity with every gammon worth one
// extra point.
func (p Probabilities) Equity() float32 {
	return 2*p[OutputWin] - 1 +
		p[OutputWinGammon] - p[OutputLoseGammon] +
		p[OutputWinBackgammon] - p[OutputLoseBackgammon]
}

// Evaluation is the serialisable form of an evaluation result.
type Evaluation struct {
	Equity  float64 `json:"equity"`
	WinProb float64 `json:"win"`
	WinG    float64 `json:"winGammon"`
	WinBG   float64 `json:"winBackgammon"`
	LoseG   float64 `json:"loseGammon"`
	LoseBG  float64 `json:"loseBackgammon"`
}

// NewEvaluation converts probabilities and an equity for output.
func NewEvaluation(p Probabilities, equity float32) Evaluation {
	return Evaluation{
		Equity:  float64(equity),
		WinProb: float64(p[OutputWin]),
		WinG:    float64(p[OutputWinGammon]),
		WinBG:   float64(p[OutputWinBackgammon]),
		LoseG:   float64(p[OutputLoseGammon]),
		LoseBG:  float64(p[OutputLoseBackgammon]),
	}
}

// StartingPosition returns the initial position of the variant. Both
// sides get the same setup in their own frame.
func StartingPosition(v Variant) Board {
	var side [25]uint8
	switch v {
	case VariantNackgammon:
		side[5] = 4  // 6-point
		side[7] = 3  // 8-point
		side[12] = 4 // mid-point
		side[22] = 2
		side[23] = 2
	case VariantHypergammon1:
		side[23] = 1
	case VariantHypergammon2:
		side[23], side[22] = 1, 1
	case VariantHypergammon3:
		side[23], side[22], side[21] = 1, 1, 1
	default:
		side[5] = 5
		side[7] = 3
		side[12] = 5
		side[23] = 2
	}
	return Board{side, side}
}

// EqualBoards reports whether two boards are identical.
func EqualBoards(b1, b2 Board) bool {
	return b1 == b2
}

// SwapSides turns the board around so the other player is on roll.
func SwapSides(b Board) Board {
	return positionid.SwapSides(b)
}

// PipCount returns the pips each side needs to bear off.
func PipCount(b Board) [2]int {
	return positionid.PipCount(b)
}

// PositionID returns the 14 character gnubg position ID of b.
func PositionID(b Board) string {
	return positionid.PositionID(b)
}

// BoardFromPositionID decodes a gnubg position ID.
func BoardFromPositionID(id string) (Board, error) {
	return positionid.BoardFromPositionID(id)
}

// ParseVariant accepts "standard", "nackgammon" and "hypergammon1" to
// "hypergammon3".
func ParseVariant(s string) (Variant, error) {
	return neuralnet.ParseVariant(s)
}
