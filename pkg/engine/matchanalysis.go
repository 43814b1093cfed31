package engine

import (
	"context"
	"fmt"
)

// GameDecision is one recorded turn: the cube action of the player on
// roll, the opponent's response and the chequer play.
type GameDecision struct {
	Game       int      `json:"game"`
	MoveNumber int      `json:"moveNumber"`
	Board      Board    `json:"board"` // before the turn, Cube.Move on roll
	Cube       CubeInfo `json:"cube"`

	Doubled bool `json:"doubled"`
	Passed  bool `json:"passed"` // the opponent passed the double

	Dice   [2]int `json:"dice"`             // zero when the game ended at the cube
	Played *Board `json:"played,omitempty"` // position after the move, nil on a dance
}

// MoveErrorDetail describes a chequer play rated below SkillNone.
type MoveErrorDetail struct {
	Game       int       `json:"game"`
	MoveNumber int       `json:"moveNumber"`
	Player     int       `json:"player"`
	Position   string    `json:"position"`
	Dice       [2]int    `json:"dice"`
	Played     string    `json:"played"`
	Best       string    `json:"best"`
	EquityLoss float32   `json:"equityLoss"`
	Skill      SkillType `json:"skill"`
}

// CubeErrorDetail describes a cube action rated below SkillNone.
type CubeErrorDetail struct {
	Game       int        `json:"game"`
	MoveNumber int        `json:"moveNumber"`
	Player     int        `json:"player"`
	Position   string     `json:"position"`
	Played     CubeAction `json:"played"`
	Best       string     `json:"best"`
	EquityLoss float32    `json:"equityLoss"`
	Skill      SkillType  `json:"skill"`
}

// MatchAnalysis is the analysis of a list of recorded decisions.
type MatchAnalysis struct {
	Games      int               `json:"games"`
	Stats      Statcontext       `json:"stats"`
	GameStats  []Statcontext     `json:"gameStats"`
	MoveErrors []MoveErrorDetail `json:"moveErrors"`
	CubeErrors []CubeErrorDetail `json:"cubeErrors"`
}

// AnalysisOptions configures AnalyzeGame.
type AnalysisOptions struct {
	Eval  EvalContext `json:"eval"`
	Moves bool        `json:"moves"`
	Cube  bool        `json:"cube"`
	Luck  bool        `json:"luck"`
}

// DefaultAnalysisOptions analyses every decision at 0 ply.
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		Eval:  DefaultEvalContext(),
		Moves: true,
		Cube:  true,
		Luck:  true,
	}
}

// AnalyzeGame rates the decisions of a game or match record. Decisions
// must be in playing order; a change of Game starts a new game.
func (e *Engine) AnalyzeGame(ctx context.Context, decisions []GameDecision, opts AnalysisOptions) (*MatchAnalysis, error) {
	if err := opts.Eval.Validate(); err != nil {
		return nil, fmt.Errorf("eval: %w", err)
	}

	res := &MatchAnalysis{}
	current := -1
	for i := range decisions {
		d := &decisions[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.Game != current || len(res.GameStats) == 0 {
			res.GameStats = append(res.GameStats, Statcontext{})
			current = d.Game
			res.Games++
		}
		game := &res.GameStats[len(res.GameStats)-1]
		if err := e.analyzeDecision(ctx, d, opts, game, res); err != nil {
			return nil, fmt.Errorf("game %d move %d: %w", d.Game, d.MoveNumber, err)
		}
	}
	for i := range res.GameStats {
		res.Stats.Merge(&res.GameStats[i])
	}
	return res, nil
}

func (e *Engine) analyzeDecision(ctx context.Context, d *GameDecision, opts AnalysisOptions, sc *Statcontext, res *MatchAnalysis) error {
	ci := d.Cube
	player := ci.Move

	if opts.Cube && e.IsCubeAvailable(ci) {
		ca, err := e.AnalyzeCube(ctx, d.Board, ci, opts.Eval)
		if err != nil {
			return err
		}
		action := NoDouble
		if d.Doubled {
			action = Double
		}
		e.recordCube(sc, res, d, player, ca, action)
		if d.Doubled {
			response := Take
			if d.Passed {
				response = Pass
			}
			e.recordCube(sc, res, d, 1-player, ca, response)
		}
	}
	if d.Passed {
		return nil
	}
	if d.Doubled {
		ci.Cube *= 2
		ci.Owner = 1 - player
	}
	if d.Dice[0] == 0 {
		return nil
	}
	d0, d1 := d.Dice[0], d.Dice[1]

	var luck float32
	if opts.Luck {
		ev := e.newEvaluator(ctx, opts.Eval)
		p, err := ev.rollLuck(d.Board, d0, d1, ci, opts.Eval)
		if err != nil {
			return err
		}
		luck = e.UtilityME(p, ci) + 1
	}

	if !opts.Moves || d.Played == nil {
		sc.AddMove(player, nil, -1, luck)
		return nil
	}

	a, err := e.AnalyzeMoveSkill(ctx, d.Board, d0, d1, *d.Played, ci, opts.Eval)
	if err != nil {
		return err
	}
	sc.AddMove(player, a.TopMoves, a.PlayedIndex, luck)
	if a.Skill != SkillNone {
		res.MoveErrors = append(res.MoveErrors, MoveErrorDetail{
			Game:       d.Game,
			MoveNumber: d.MoveNumber,
			Player:     player,
			Position:   PositionID(d.Board),
			Dice:       d.Dice,
			Played:     FormatMove(d.Board, a.Played),
			Best:       FormatMove(d.Board, a.Best),
			EquityLoss: a.EquityLoss,
			Skill:      a.Skill,
		})
	}
	return nil
}

func (e *Engine) recordCube(sc *Statcontext, res *MatchAnalysis, d *GameDecision, player int, ca *CubeAnalysis, action CubeAction) {
	sc.AddCube(player, ca.Equities, action)
	loss := cubeError(ca.Equities, action)
	if skill := MoveSkill(loss); skill != SkillNone {
		res.CubeErrors = append(res.CubeErrors, CubeErrorDetail{
			Game:       d.Game,
			MoveNumber: d.MoveNumber,
			Player:     player,
			Position:   PositionID(d.Board),
			Played:     action,
			Best:       ca.Recommendation,
			EquityLoss: loss,
			Skill:      skill,
		})
	}
}

// rollLuck returns the cubeless 0-ply luck of rolling d0-d1 for the
// player on roll: the probabilities after the best play of the roll minus
// their average over all rolls.
func (ev *evaluator) rollLuck(b Board, d0, d1 int, ci CubeInfo, ec EvalContext) (Probabilities, error) {
	ec0 := ec.withPlies(0)
	ec0.Cubeful = false
	ec0.Noise = 0
	usePrune := ec0.Prune && ci.Variant == VariantStandard
	ciOpp := ci.Flip()

	var mean, actual Probabilities
	for _, r := range rolls21 {
		nb, err := ev.bestMoveForRoll(b, r[0], r[1], ci, ec0, usePrune)
		if err != nil {
			return Probabilities{}, err
		}
		nb = SwapSides(nb)
		p, err := ev.evaluatePositionCache(nb, ciOpp, ec0, 0, ev.Classify(nb, ci.Variant))
		if err != nil {
			return Probabilities{}, err
		}
		p = p.Invert()
		for i := range mean {
			mean[i] += float32(r[2]) * p[i] / 36
		}
		if (r[0] == d0 && r[1] == d1) || (r[0] == d1 && r[1] == d0) {
			actual = p
		}
	}

	var d Probabilities
	for i := range d {
		d[i] = actual[i] - mean[i]
	}
	return d, nil
}
