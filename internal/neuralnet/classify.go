package neuralnet

import (
	"fmt"
	"strings"

	"github.com/bgforge/gnubgcore/internal/positionid"
)

// Variant is the game variant. It decides the chequer count, the
// starting position and which evaluator family applies.
type Variant int

const (
	VariantStandard Variant = iota
	VariantNackgammon
	VariantHypergammon1
	VariantHypergammon2
	VariantHypergammon3
)

var variantNames = [...]string{"standard", "nackgammon", "hypergammon1", "hypergammon2", "hypergammon3"}

func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return fmt.Sprintf("Variant(%d)", int(v))
	}
	return variantNames[v]
}

// ParseVariant accepts the names produced by String.
func ParseVariant(s string) (Variant, error) {
	for i, name := range variantNames {
		if strings.EqualFold(s, name) {
			return Variant(i), nil
		}
	}
	return VariantStandard, fmt.Errorf("unknown variant %q", s)
}

// Chequers is the number of chequers each side starts with.
func (v Variant) Chequers() int {
	switch v {
	case VariantHypergammon1:
		return 1
	case VariantHypergammon2:
		return 2
	case VariantHypergammon3:
		return 3
	}
	return positionid.NumChequers
}

// IsHypergammon reports whether v is one of the hypergammon variants.
func (v Variant) IsHypergammon() bool {
	return v >= VariantHypergammon1 && v <= VariantHypergammon3
}

// Class is the evaluation phase of a position. The order matters: classes
// up to ClassPerfect are exact, classes above ClassGood need sanity checks.
type Class int

const (
	ClassOver Class = iota
	ClassHypergammon1
	ClassHypergammon2
	ClassHypergammon3
	ClassBearoffTS
	ClassBearoff1
	ClassRace
	ClassCrashed
	ClassContact

	NumClasses = int(ClassContact) + 1

	ClassPerfect = ClassBearoffTS
	ClassGood    = ClassBearoff1
)

var classNames = [NumClasses]string{
	"over", "hypergammon1", "hypergammon2", "hypergammon3",
	"bearoff-ts", "bearoff-1", "race", "crashed", "contact",
}

func (c Class) String() string {
	if c < 0 || int(c) >= NumClasses {
		return fmt.Sprintf("Class(%d)", int(c))
	}
	return classNames[c]
}

// Bearoff database shapes assumed by Classify. The engine downgrades to
// ClassRace when the matching database is not loaded.
const (
	TwoSidedPoints   = 6
	TwoSidedChequers = 6
	OneSidedPoints   = 6
	OneSidedChequers = 15
)

// crashedLimit is the number of active chequers at or below which a
// contact position counts as crashed.
const crashedLimit = 6

func backChequer(side [25]uint8) int {
	for i := 24; i >= 0; i-- {
		if side[i] > 0 {
			return i
		}
	}
	return -1
}

// Classify returns the evaluation phase of b with side 1 on roll.
func Classify(b positionid.Board, v Variant) Class {
	nOppBack := backChequer(b[0])
	nBack := backChequer(b[1])
	if nBack < 0 || nOppBack < 0 {
		return ClassOver
	}

	if v.IsHypergammon() {
		return ClassHypergammon1 + Class(v-VariantHypergammon1)
	}

	if nBack+nOppBack > 22 {
		for side := 0; side < 2; side++ {
			if crashed(b[side]) {
				return ClassCrashed
			}
		}
		return ClassContact
	}

	if positionid.IsBearoff(b, TwoSidedPoints, TwoSidedChequers) {
		return ClassBearoffTS
	}
	if positionid.IsBearoff(b, OneSidedPoints, OneSidedChequers) {
		return ClassBearoff1
	}
	return ClassRace
}

// crashed reports whether a side has few chequers left in play once the
// ones buried on its 1 and 2 points are discounted.
func crashed(side [25]uint8) bool {
	tot := 0
	for _, n := range side {
		tot += int(n)
	}
	if tot <= crashedLimit {
		return true
	}
	p1, p2 := int(side[0]), int(side[1])
	if p1 > 1 {
		if tot <= crashedLimit+p1 {
			return true
		}
		if 1+tot-(p1+p2) <= crashedLimit && p2 > 1 {
			return true
		}
		return false
	}
	return tot <= crashedLimit+p2-1
}
