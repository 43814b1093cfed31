package match

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bgforge/gnubgcore/pkg/engine"
)

// Decisions replays every game of m from the starting position and
// returns one decision per turn, ready for Engine.AnalyzeGame. Each play
// is checked against the legal moves of its roll.
func (m *Match) Decisions() ([]engine.GameDecision, error) {
	var out []engine.GameDecision
	for _, g := range m.Games {
		r := &replayer{
			match:  m,
			game:   g,
			board:  engine.StartingPosition(engine.VariantStandard),
			onRoll: -1,
			cube:   1,
			owner:  -1,
		}
		for i, a := range g.Actions {
			if err := r.apply(a); err != nil {
				return nil, fmt.Errorf("game %d, action %d: %w", g.Number, i+1, err)
			}
		}
		if r.turn != nil {
			r.out = append(r.out, *r.turn)
		}
		out = append(out, r.out...)
	}
	return out, nil
}

// replayer follows one game. board is always seen from the player on
// roll.
type replayer struct {
	match *Match
	game  *Game

	board  engine.Board
	onRoll int
	cube   int
	owner  int
	over   bool

	turn     *engine.GameDecision
	answered bool
	out      []engine.GameDecision
}

func (r *replayer) apply(a Action) error {
	if a.Player != 0 && a.Player != 1 {
		return fmt.Errorf("%w: player %d", ErrInvalidMatch, a.Player)
	}
	if r.over && a.Type != ActionWin {
		return fmt.Errorf("%w: action after the game ended", ErrInvalidMatch)
	}
	switch a.Type {
	case ActionDouble:
		return r.double(a)
	case ActionTake, ActionPass:
		return r.respond(a)
	case ActionMove:
		return r.move(a)
	case ActionWin:
		r.over = true
	}
	return nil
}

// begin returns the decision of player's turn, starting it if needed.
func (r *replayer) begin(player int) (*engine.GameDecision, error) {
	if r.turn != nil {
		if r.turn.Cube.Move != player {
			return nil, fmt.Errorf("%w: player %d acted during the turn of player %d", ErrInvalidMatch, player+1, r.turn.Cube.Move+1)
		}
		return r.turn, nil
	}
	if r.onRoll >= 0 && player != r.onRoll {
		return nil, fmt.Errorf("%w: player %d acted out of turn", ErrInvalidMatch, player+1)
	}
	ci, err := engine.NewCubeInfo(r.cube, r.owner, player, r.match.MatchLength, r.game.Score,
		r.game.Crawford, false, false, engine.VariantStandard)
	if err != nil {
		return nil, err
	}
	r.onRoll = player
	r.answered = false
	r.turn = &engine.GameDecision{
		Game:       r.game.Number,
		MoveNumber: len(r.out) + 1,
		Board:      r.board,
		Cube:       ci,
	}
	return r.turn, nil
}

func (r *replayer) double(a Action) error {
	t, err := r.begin(a.Player)
	if err != nil {
		return err
	}
	switch {
	case t.Doubled:
		return fmt.Errorf("%w: doubled twice in one turn", ErrInvalidMatch)
	case r.owner == 1-a.Player:
		return fmt.Errorf("%w: player %d doubled without access to the cube", ErrInvalidMatch, a.Player+1)
	case a.Value != 0 && a.Value != 2*r.cube:
		return fmt.Errorf("%w: double to %d with the cube on %d", ErrInvalidMatch, a.Value, r.cube)
	}
	t.Doubled = true
	return nil
}

func (r *replayer) respond(a Action) error {
	t := r.turn
	if t == nil || !t.Doubled || r.answered || a.Player == t.Cube.Move {
		return fmt.Errorf("%w: response without a double", ErrInvalidMatch)
	}
	r.answered = true
	if a.Type == ActionPass {
		t.Passed = true
		r.out = append(r.out, *t)
		r.turn = nil
		r.over = true
		return nil
	}
	r.cube *= 2
	r.owner = a.Player
	return nil
}

func (r *replayer) move(a Action) error {
	t, err := r.begin(a.Player)
	if err != nil {
		return err
	}
	if t.Doubled && !r.answered {
		return fmt.Errorf("%w: play before the double was answered", ErrInvalidMatch)
	}
	d0, d1 := a.Dice[0], a.Dice[1]
	if d0 < 1 || d0 > 6 || d1 < 1 || d1 > 6 {
		return fmt.Errorf("%w: dice %d%d", ErrInvalidMatch, d0, d1)
	}
	t.Dice = a.Dice

	legal := engine.GenerateMoves(r.board, d0, d1)
	next := r.board
	switch {
	case a.Move == "" && len(legal) > 0:
		return fmt.Errorf("%w: no play recorded for %d%d: %w", ErrInvalidMatch, d0, d1, engine.ErrIllegalMove)
	case a.Move != "":
		nb, err := applyNotation(r.board, a.Move)
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrInvalidMatch, a.Move, err)
		}
		found := false
		for _, m := range legal {
			if engine.EqualBoards(m.Board, nb) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %q is not a legal %d%d play: %w", ErrInvalidMatch, a.Move, d0, d1, engine.ErrIllegalMove)
		}
		played := nb
		t.Played = &played
		next = nb
	}

	r.out = append(r.out, *t)
	r.turn = nil
	r.board = engine.SwapSides(next)
	r.onRoll = 1 - a.Player
	return nil
}

// applyNotation plays a move written as "24/18* 13/8", "bar/20/16" or
// "6/off(2)" for the player on roll without checking the dice.
func applyNotation(b engine.Board, notation string) (engine.Board, error) {
	for _, tok := range strings.Fields(notation) {
		count := 1
		if i := strings.IndexByte(tok, '('); i >= 0 {
			n, err := strconv.Atoi(strings.TrimSuffix(tok[i+1:], ")"))
			if err != nil || n < 1 || n > 4 {
				return b, fmt.Errorf("bad repeat count in %q", tok)
			}
			count = n
			tok = tok[:i]
		}
		parts := strings.Split(tok, "/")
		if len(parts) < 2 {
			return b, fmt.Errorf("bad sub-move %q", tok)
		}
		path := make([]int, len(parts))
		for i, p := range parts {
			pt, err := parsePoint(strings.TrimSuffix(p, "*"))
			if err != nil {
				return b, err
			}
			if i > 0 && pt >= path[i-1] {
				return b, fmt.Errorf("sub-move %q runs backwards", tok)
			}
			path[i] = pt
		}
		for c := 0; c < count; c++ {
			for i := 1; i < len(path); i++ {
				if err := hop(&b, path[i-1], path[i]); err != nil {
					return b, err
				}
			}
		}
	}
	return b, nil
}

var errNoChequer = errors.New("no chequer to move")

// hop moves a chequer of the player on roll from one point index to
// another (24 is the bar, -1 off), hitting a blot.
func hop(b *engine.Board, from, to int) error {
	if b[1][from] == 0 {
		return fmt.Errorf("%w on %s", errNoChequer, formatPoint(from))
	}
	b[1][from]--
	if to < 0 {
		return nil
	}
	switch opp := &b[0][23-to]; {
	case *opp > 1:
		return fmt.Errorf("point %s is blocked", formatPoint(to))
	case *opp == 1:
		*opp = 0
		b[0][24]++
	}
	b[1][to]++
	return nil
}

// parsePoint converts point notation from the mover's perspective to a
// point index: "bar" is 24, "off" is -1 and n is n-1.
func parsePoint(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bar":
		return 24, nil
	case "off":
		return -1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 24 {
		return 0, fmt.Errorf("bad point %q", s)
	}
	return n - 1, nil
}

func formatPoint(p int) string {
	switch {
	case p >= 24:
		return "bar"
	case p < 0:
		return "off"
	}
	return strconv.Itoa(p + 1)
}
