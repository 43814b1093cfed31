package engine

import (
	"errors"
	"fmt"

	"github.com/bgforge/gnubgcore/internal/met"
)

// ErrInvalidCube is returned for a CubeInfo that cannot describe a game.
var ErrInvalidCube = errors.New("invalid cube information")

// CubeInfo describes the cube and score for one evaluation.
// Cube 0 or less marks a cube position that is not reachable; those only
// appear inside the cubeful search.
type CubeInfo struct {
	Cube     int     `json:"cube" yaml:"cube"`
	Owner    int     `json:"owner" yaml:"owner"` // -1 centered, else the player owning the cube
	Move     int     `json:"move" yaml:"move"`   // player the equity is calculated for
	MatchTo  int     `json:"matchTo" yaml:"matchTo"`
	Score    [2]int  `json:"score" yaml:"score"`
	Crawford bool    `json:"crawford" yaml:"crawford"`
	Jacoby   bool    `json:"jacoby" yaml:"jacoby"`
	Beavers  bool    `json:"beavers" yaml:"beavers"`
	Variant  Variant `json:"variant" yaml:"variant"`
}

// NewCubeInfo validates its arguments and returns the cube information.
// In match play Jacoby and beavers are ignored; in money play the score
// and Crawford flag are.
func NewCubeInfo(cube, owner, move, matchTo int, score [2]int, crawford, jacoby, beavers bool, v Variant) (CubeInfo, error) {
	ci := CubeInfo{
		Cube:    cube,
		Owner:   owner,
		Move:    move,
		MatchTo: matchTo,
		Variant: v,
	}
	if matchTo > 0 {
		ci.Score = score
		ci.Crawford = crawford
	} else {
		ci.MatchTo = 0
		ci.Jacoby = jacoby
		ci.Beavers = beavers
	}
	if err := ci.Validate(); err != nil {
		return CubeInfo{}, err
	}
	return ci, nil
}

// MoneyCubeInfo returns a centered 1-cube money game with player move
// on roll.
func MoneyCubeInfo(move int) CubeInfo {
	return CubeInfo{Cube: 1, Owner: -1, Move: move}
}

// Validate checks the invariants of ci.
func (ci CubeInfo) Validate() error {
	switch {
	case ci.Cube < 1 || ci.Cube&(ci.Cube-1) != 0:
		return fmt.Errorf("%w: cube %d is not a power of two", ErrInvalidCube, ci.Cube)
	case ci.Owner < -1 || ci.Owner > 1:
		return fmt.Errorf("%w: owner %d", ErrInvalidCube, ci.Owner)
	case ci.Move < 0 || ci.Move > 1:
		return fmt.Errorf("%w: player on roll %d", ErrInvalidCube, ci.Move)
	case ci.MatchTo < 0 || ci.MatchTo >= met.MaxScore:
		return fmt.Errorf("%w: match length %d", ErrInvalidCube, ci.MatchTo)
	case ci.Variant < VariantStandard || ci.Variant > VariantHypergammon3:
		return fmt.Errorf("%w: variant %d", ErrInvalidCube, int(ci.Variant))
	}
	if ci.MatchTo == 0 {
		return nil
	}
	for p, s := range ci.Score {
		if s < 0 || s >= ci.MatchTo {
			return fmt.Errorf("%w: score %d for player %d in a %d point match", ErrInvalidCube, s, p, ci.MatchTo)
		}
	}
	if ci.Crawford && ci.Score[0] != ci.MatchTo-1 && ci.Score[1] != ci.MatchTo-1 {
		return fmt.Errorf("%w: Crawford game with nobody at match point", ErrInvalidCube)
	}
	if ci.Crawford && ci.Cube != 1 {
		return fmt.Errorf("%w: cube turned in the Crawford game", ErrInvalidCube)
	}
	return nil
}

// IsMoney reports whether ci describes a money game.
func (ci CubeInfo) IsMoney() bool {
	return ci.MatchTo == 0
}

// PostCrawford reports whether a player is 1-away after the Crawford game.
func (ci CubeInfo) PostCrawford() bool {
	return ci.score().PostCrawford()
}

// Flip returns ci with the other player on roll.
func (ci CubeInfo) Flip() CubeInfo {
	ci.Move = 1 - ci.Move
	return ci
}

func (ci CubeInfo) score() met.Score {
	return met.Score{MatchTo: ci.MatchTo, Points: ci.Score, Crawford: ci.Crawford}
}

func (ci CubeInfo) available() bool {
	return ci.Cube > 0
}

// logCube returns log2 of the cube value.
func logCube(n int) int {
	i := 0
	for n > 1 {
		n >>= 1
		i++
	}
	return i
}
