package engine

import (
	"context"
	"fmt"

	"github.com/bgforge/gnubgcore/internal/positionid"
)

// SkillType represents the skill rating of a move or cube decision.
type SkillType int

const (
	SkillVeryBad  SkillType = iota // blunder
	SkillBad                       // error
	SkillDoubtful                  // doubtful
	SkillNone                      // good or best

	numSkills
)

// String returns the display name of the skill type.
func (s SkillType) String() string {
	return [...]string{"Very Bad", "Bad", "Doubtful", "None"}[s]
}

// Abbr returns the annotation symbol (??, ?, ?!).
func (s SkillType) Abbr() string {
	return [...]string{"??", "?", "?!", ""}[s]
}

// LuckType represents the luck rating of a dice roll.
type LuckType int

const (
	LuckVeryBad LuckType = iota
	LuckBad
	LuckNone
	LuckGood
	LuckVeryGood

	numLucks
)

// String returns the display name of the luck type.
func (l LuckType) String() string {
	return [...]string{"Very Unlucky", "Unlucky", "None", "Lucky", "Very Lucky"}[l]
}

// SkillThresholds are the equity losses from which a decision is very
// bad, bad and doubtful.
var SkillThresholds = [3]float32{0.16, 0.08, 0.04}

// LuckThresholds are the equity swings from which a roll is very lucky
// (or unlucky) and lucky (or unlucky).
var LuckThresholds = [2]float32{0.6, 0.3}

// RatingType represents overall player rating level.
type RatingType int

const (
	RatingUndefined    RatingType = iota
	RatingAwful                   // > 0.035 EPM
	RatingBeginner                // 0.026-0.035 EPM
	RatingCasualPlayer            // 0.018-0.026 EPM
	RatingIntermediate            // 0.012-0.018 EPM
	RatingAdvanced                // 0.008-0.012 EPM
	RatingExpert                  // 0.005-0.008 EPM
	RatingWorldClass              // 0.002-0.005 EPM
	RatingSupernatural            // < 0.002 EPM
)

// RatingThresholds are the upper error-per-move bounds of each rating,
// indexed by RatingType.
var RatingThresholds = [9]float64{
	1e38, 1e38, 0.035, 0.026, 0.018, 0.012, 0.008, 0.005, 0.002,
}

// String returns the display name of the rating.
func (r RatingType) String() string {
	return [...]string{
		"Undefined", "Awful", "Beginner", "Casual Player",
		"Intermediate", "Advanced", "Expert", "World Class", "Supernatural",
	}[r]
}

// MoveSkill rates a decision losing loss equity against the best one.
func MoveSkill(loss float32) SkillType {
	switch {
	case loss >= SkillThresholds[0]:
		return SkillVeryBad
	case loss >= SkillThresholds[1]:
		return SkillBad
	case loss >= SkillThresholds[2]:
		return SkillDoubtful
	}
	return SkillNone
}

// LuckFor rates a roll that changed the equity of the player by swing.
func LuckFor(swing float32) LuckType {
	switch {
	case swing > LuckThresholds[0]:
		return LuckVeryGood
	case swing > LuckThresholds[1]:
		return LuckGood
	case swing < -LuckThresholds[0]:
		return LuckVeryBad
	case swing < -LuckThresholds[1]:
		return LuckBad
	}
	return LuckNone
}

// GetRating returns the player rating for an error rate per decision.
func GetRating(errorPerMove float64) RatingType {
	for r := RatingSupernatural; r > RatingAwful; r-- {
		if errorPerMove < RatingThresholds[r] {
			return r
		}
	}
	return RatingAwful
}

// CubeAction is what a player did at a cube decision.
type CubeAction int

const (
	NoDouble CubeAction = iota
	Double
	Take
	Pass
)

func (a CubeAction) String() string {
	return [...]string{"No double", "Double", "Take", "Pass"}[a]
}

// MoveSkillAnalysis is the tutor's verdict on one chequer play.
type MoveSkillAnalysis struct {
	Played      Move
	PlayedIndex int // index of Played in TopMoves
	Best        Move
	EquityLoss  float32
	Skill       SkillType
	Forced      bool
	TopMoves    []Move // up to five best moves, the played move included
}

// CubeSkillAnalysis is the tutor's verdict on one cube action.
type CubeSkillAnalysis struct {
	Analysis   *CubeAnalysis
	Actual     CubeAction
	EquityLoss float32
	Skill      SkillType
	Close      bool
}

// AnalyzeMoveSkill rates the play of d0-d1 that led to played (the
// position after the move, mover still on side 1).
func (e *Engine) AnalyzeMoveSkill(ctx context.Context, b Board, d0, d1 int, played Board, ci CubeInfo, ec EvalContext) (*MoveSkillAnalysis, error) {
	key := positionid.PositionKey(played)
	opts := DefaultMoveSearchOptions()
	opts.KeyMove = &key
	opts.MaxMoves = 5

	moves, idx, err := e.FindNSaveBestMoves(ctx, b, d0, d1, ci, ec, opts)
	if err != nil {
		return nil, fmt.Errorf("analyzing position: %w", err)
	}
	if len(moves) == 0 {
		// dancing is always right
		return &MoveSkillAnalysis{PlayedIndex: -1, Forced: true, Skill: SkillNone}, nil
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: played position is not reachable with %d-%d", ErrIllegalMove, d0, d1)
	}

	a := &MoveSkillAnalysis{
		Played:      moves[idx],
		PlayedIndex: idx,
		Best:        moves[0],
		Forced:      len(GenerateMoves(b, d0, d1)) == 1,
		TopMoves:    moves,
	}
	a.EquityLoss = max(moves[0].Score-moves[idx].Score, 0)
	a.Skill = MoveSkill(a.EquityLoss)
	return a, nil
}

// AnalyzeCubeSkill rates a cube action taken in b. For Take and Pass, ci
// describes the doubler on roll.
func (e *Engine) AnalyzeCubeSkill(ctx context.Context, b Board, ci CubeInfo, ec EvalContext, actual CubeAction) (*CubeSkillAnalysis, error) {
	ca, err := e.AnalyzeCube(ctx, b, ci, ec)
	if err != nil {
		return nil, fmt.Errorf("analyzing cube: %w", err)
	}
	loss := cubeError(ca.Equities, actual)
	return &CubeSkillAnalysis{
		Analysis:   ca,
		Actual:     actual,
		EquityLoss: loss,
		Skill:      MoveSkill(loss),
		Close:      isCloseCubeDecision(ca.Equities),
	}, nil
}

// cubeError returns the equity given up by actual. Doubler decisions are
// measured from the doubler's side, responses from the taker's.
func cubeError(eq [4]float32, actual CubeAction) float32 {
	doubled := min(eq[EquityDoubleTake], eq[EquityDoublePass])
	var loss float32
	switch actual {
	case NoDouble:
		loss = eq[EquityOptimal] - eq[EquityNoDouble]
	case Double:
		loss = eq[EquityOptimal] - doubled
	case Take:
		loss = eq[EquityDoubleTake] - doubled
	case Pass:
		loss = eq[EquityDoublePass] - doubled
	}
	return max(loss, 0)
}

// isCloseCubeDecision reports whether doubling and not doubling are
// within 0.16 of each other.
func isCloseCubeDecision(eq [4]float32) bool {
	const threshold = 0.16
	doubled := min(eq[EquityDoubleTake], eq[EquityDoublePass])
	return abs32(doubled-eq[EquityNoDouble]) < threshold
}
