// Package positionid encodes backgammon positions into the compact identities
// used for hashing, move deduplication and game records.
//
// A Board holds one 25-slot array per side, each in that side's own frame:
// index 0 is the side's ace point, 23 its 24-point and 24 the bar. Chequers
// borne off are implicit.
package positionid

import (
	"errors"
	"fmt"
)

// NumChequers is the number of chequers per side in the standard variant.
const NumChequers = 15

// Board is a backgammon position as seen by the side on roll (index 1).
type Board [2][25]uint8

var (
	// ErrIllegalPosition is returned when a board breaks a structural invariant.
	ErrIllegalPosition = errors.New("illegal position")
	// ErrInvalidKey is returned when a position key does not decode to a legal board.
	ErrInvalidKey = errors.New("invalid position key")
	// ErrInvalidPositionID is returned when a position ID string is malformed.
	ErrInvalidPositionID = errors.New("invalid position ID")
)

// SwapSides exchanges the two sides. Because each side is stored in its own
// frame this also mirrors every point i to 23-i from the other side's view.
func SwapSides(b Board) Board {
	return Board{b[1], b[0]}
}

// Chequers returns the number of chequers side has on the board (bar included).
func Chequers(b Board, side int) int {
	n := 0
	for _, c := range b[side] {
		n += int(c)
	}
	return n
}

// PipCount returns the pip counts of both sides.
func PipCount(b Board) (pips [2]int) {
	for side := 0; side < 2; side++ {
		for i := 0; i < 25; i++ {
			pips[side] += int(b[side][i]) * (i + 1)
		}
	}
	return pips
}

// CheckPosition validates a board. It fails when a side has more than
// NumChequers chequers, when both sides occupy the same point, or when both
// sides are on the bar against closed boards.
func CheckPosition(b Board) error {
	for side := 0; side < 2; side++ {
		if n := Chequers(b, side); n > NumChequers {
			return fmt.Errorf("%w: side %d has %d chequers", ErrIllegalPosition, side, n)
		}
	}

	for i := 0; i < 24; i++ {
		if b[0][i] > 0 && b[1][23-i] > 0 {
			return fmt.Errorf("%w: point %d occupied by both sides", ErrIllegalPosition, i+1)
		}
	}

	if b[0][24] == 0 || b[1][24] == 0 {
		return nil
	}
	for i := 0; i < 6; i++ {
		if b[0][i] < 2 || b[1][i] < 2 {
			return nil
		}
	}
	return fmt.Errorf("%w: both sides dancing against closed boards", ErrIllegalPosition)
}
