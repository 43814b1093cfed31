// Package match reads and writes match records in the Jellyfish MAT
// format and replays them into the decisions analysed by the engine.
package match

import "errors"

// ErrInvalidMatch is returned for records that cannot be parsed or
// replayed.
var ErrInvalidMatch = errors.New("invalid match record")

// Match represents a complete backgammon match.
type Match struct {
	// Match metadata
	Players     [2]string // Player 1 (left column) and player 2
	MatchLength int       // Match length (0 = money game)
	Date        string    // Match date
	Event       string    // Event name
	Round       string    // Round number
	Place       string    // Location
	Annotator   string    // Who transcribed the match
	Games       []*Game   // List of games in the match
}

// Game represents a single game within a match.
type Game struct {
	Number   int      // Game number (1-indexed)
	Score    [2]int   // Score of each player at the start of the game
	Crawford bool     // True if this is the Crawford game
	Actions  []Action // Sequence of game actions
	Winner   int      // 0 = player 1, 1 = player 2, -1 = not finished
	Points   int      // Points won
}

// ActionType represents the type of game action.
type ActionType int

const (
	ActionMove   ActionType = iota // Roll and chequer play
	ActionDouble                   // Cube double
	ActionTake                     // Take the cube
	ActionPass                     // Pass (decline the cube)
	ActionWin                      // Game won
)

// Action represents a single game action.
type Action struct {
	Type   ActionType // Type of action
	Player int        // 0 = player 1, 1 = player 2
	Dice   [2]int     // Dice values (for ActionMove)
	Move   string     // Play in standard notation, empty for a dance
	Value  int        // New cube value (ActionDouble) or points (ActionWin)
}

// NewMatch creates a new empty match.
func NewMatch(player1, player2 string, matchLength int) *Match {
	return &Match{
		Players:     [2]string{player1, player2},
		MatchLength: matchLength,
	}
}

// NewGame appends a game starting at the given score. The Crawford flag
// is derived from the score and the earlier games.
func (m *Match) NewGame(score0, score1 int) *Game {
	g := &Game{
		Number: len(m.Games) + 1,
		Score:  [2]int{score0, score1},
		Winner: -1,
	}
	m.Games = append(m.Games, g)
	m.markCrawford()
	return g
}

// markCrawford flags the first game in which a player is one point away
// from winning the match.
func (m *Match) markCrawford() {
	if m.MatchLength == 0 {
		return
	}
	done := false
	for _, g := range m.Games {
		g.Crawford = false
		if !done && (g.Score[0] == m.MatchLength-1 || g.Score[1] == m.MatchLength-1) {
			g.Crawford = true
			done = true
		}
	}
}

// AddMove adds a roll and the play made with it.
func (g *Game) AddMove(player, die0, die1 int, move string) {
	g.Actions = append(g.Actions, Action{
		Type:   ActionMove,
		Player: player,
		Dice:   [2]int{die0, die1},
		Move:   move,
	})
}

// AddDouble adds a cube double action to the game.
func (g *Game) AddDouble(player int, value int) {
	g.Actions = append(g.Actions, Action{
		Type:   ActionDouble,
		Player: player,
		Value:  value,
	})
}

// AddTake adds a take action to the game.
func (g *Game) AddTake(player int) {
	g.Actions = append(g.Actions, Action{
		Type:   ActionTake,
		Player: player,
	})
}

// AddPass adds a pass (drop) action to the game.
func (g *Game) AddPass(player int) {
	g.Actions = append(g.Actions, Action{
		Type:   ActionPass,
		Player: player,
	})
}

// AddWin ends the game.
func (g *Game) AddWin(player, points int) {
	g.Actions = append(g.Actions, Action{
		Type:   ActionWin,
		Player: player,
		Value:  points,
	})
	g.Winner = player
	g.Points = points
}
