// Package met provides match equity tables and the match-play arithmetic
// built on them: match winning chances after a game, gammon prices, the
// conversion between money-style equity and MWC, and live-cube take points.
package met

import (
	"errors"
)

// MaxScore is the longest match the tables cover.
const MaxScore = 64

// MaxCubeLevel bounds the cube levels considered when computing take points.
const MaxCubeLevel = 7

// ErrInvalidTable is returned when a table file cannot be used.
var ErrInvalidTable = errors.New("invalid match equity table")

// Table is a match equity table.
//
// PreCrawford[i][j] is player 0's chance of winning the match when player 0
// needs i+1 points and player 1 needs j+1 points, before the Crawford game
// has been played. Row 0 and column 0 are the Crawford game scores.
//
// PostCrawford[p][n] is player p's chance of winning when player p needs n+1
// points and the opponent is 1-away, after the Crawford game.
type Table struct {
	Name        string
	Description string
	Length      int

	PreCrawford  [MaxScore][MaxScore]float32
	PostCrawford [2][MaxScore]float32
}

// Score is a match score: match length and points won by each player.
// MatchTo 0 is a money game.
type Score struct {
	MatchTo  int
	Points   [2]int
	Crawford bool
}

// Away returns how many points each player still needs.
func (s Score) Away() (int, int) {
	return s.MatchTo - s.Points[0], s.MatchTo - s.Points[1]
}

// PostCrawford reports whether a player is 1-away and the Crawford game is over.
func (s Score) PostCrawford() bool {
	return !s.Crawford && s.MatchTo > 0 &&
		(s.Points[0] == s.MatchTo-1 || s.Points[1] == s.MatchTo-1)
}

// GetME returns player's match winning chance if whoWins wins a game worth
// points at score s.
func (t *Table) GetME(s Score, player, points, whoWins int) float32 {
	n0 := s.MatchTo - (s.Points[0] + (1-whoWins)*points) - 1
	n1 := s.MatchTo - (s.Points[1] + whoWins*points) - 1

	if n0 < 0 {
		if player == 0 {
			return 1
		}
		return 0
	}
	if n1 < 0 {
		if player == 0 {
			return 0
		}
		return 1
	}

	n0 = min(n0, MaxScore-1)
	n1 = min(n1, MaxScore-1)

	var me0 float32
	if s.Crawford || s.MatchTo-s.Points[0] == 1 || s.MatchTo-s.Points[1] == 1 {
		// the next game is post-Crawford
		if n0 == 0 {
			me0 = 1 - t.PostCrawford[1][n1]
		} else {
			me0 = t.PostCrawford[0][n0]
		}
	} else {
		me0 = t.PreCrawford[n0][n1]
	}

	if player == 0 {
		return me0
	}
	return 1 - me0
}

// ME returns player's match winning chance at the current score. During the
// Crawford game the pre-Crawford row is used; afterwards the post-Crawford
// table.
func (t *Table) ME(s Score, player int) float32 {
	if s.MatchTo == 0 {
		return 0.5
	}
	n0 := min(s.MatchTo-s.Points[0]-1, MaxScore-1)
	n1 := min(s.MatchTo-s.Points[1]-1, MaxScore-1)
	if n0 < 0 || n1 < 0 {
		return t.GetME(s, player, 0, 0)
	}

	var me0 float32
	switch {
	case !s.PostCrawford():
		me0 = t.PreCrawford[n0][n1]
	case n0 == 0:
		me0 = 1 - t.PostCrawford[1][n1]
	default:
		me0 = t.PostCrawford[0][n0]
	}
	if player == 0 {
		return me0
	}
	return 1 - me0
}

// Eq2Mwc converts a normalised equity for player with the cube at cube into
// match winning chance: equity +1 is a single win of the cube value, -1 a
// single loss.
func (t *Table) Eq2Mwc(eq float32, s Score, player, cube int) float32 {
	w := t.GetME(s, player, cube, player)
	l := t.GetME(s, player, cube, 1-player)
	return 0.5 * (eq*(w-l) + (w + l))
}

// Mwc2Eq is the inverse of Eq2Mwc.
func (t *Table) Mwc2Eq(mwc float32, s Score, player, cube int) float32 {
	w := t.GetME(s, player, cube, player)
	l := t.GetME(s, player, cube, 1-player)
	if w == l {
		return 0
	}
	return (2*mwc - (w + l)) / (w - l)
}

// GammonPrice returns the gammon and backgammon prices at score s with the
// cube at cube: [0] gammon for player 0, [1] gammon for player 1,
// [2] backgammon for player 0, [3] backgammon for player 1.
func (t *Table) GammonPrice(s Score, cube int) [4]float32 {
	const epsilon = 1e-7
	var gp [4]float32

	s.Crawford = false
	win := t.GetME(s, 0, cube, 0)
	winG := t.GetME(s, 0, 2*cube, 0)
	winBG := t.GetME(s, 0, 3*cube, 0)
	lose := t.GetME(s, 0, cube, 1)
	loseG := t.GetME(s, 0, 2*cube, 1)
	loseBG := t.GetME(s, 0, 3*cube, 1)

	center := (win + lose) / 2
	if d := win - center; d > epsilon || d < -epsilon {
		gp[0] = (winG-center)/d - 1
		gp[1] = (center-loseG)/d - 1
		gp[2] = (winBG-center)/d - (gp[0] + 1)
		gp[3] = (center-loseBG)/d - (gp[1] + 1)
	}

	// a dead gammon can come out as a tiny negative number
	for i := range gp {
		if gp[i] < 0 {
			gp[i] = 0
		}
	}
	return gp
}

func cubePrimeValue(i, j, cube int) int {
	if i < 2*cube && j >= 2*cube {
		return 2 * cube
	}
	return cube
}

// TakePoints returns each player's live-cube cash point at score s with the
// cube at cube. gammonRatio[p] and bgRatio[p] are the fractions of player p's
// wins that are gammons (excluding backgammons) and backgammons.
func (t *Table) TakePoints(s Score, cube int, gammonRatio, bgRatio [2]float32) [2]float32 {
	i := s.MatchTo - s.Points[0] - 1
	j := s.MatchTo - s.Points[1] - 1

	dead, nMax := cube, 0
	for i >= 2*dead && j >= 2*dead {
		nMax++
		dead *= 2
	}

	live := [2][]float32{make([]float32, nMax+2), make([]float32, nMax+2)}

	won := func(k, pts int) float32 { return t.GetME(s, k, pts, k) }
	lost := func(k, pts int) float32 { return t.GetME(s, k, pts, 1-k) }

	for cv, n := dead, nMax; n >= 0; cv, n = cv>>1, n-1 {
		for k := 0; k < 2; k++ {
			dp := won(k, cv)
			if i < 2*cv || j < 2*cv {
				// the doubled cube is dead
				var cp int
				if k == 0 {
					cp = cubePrimeValue(i, j, cv)
				} else {
					cp = cubePrimeValue(j, i, cv)
				}
				gl, bl := gammonRatio[1-k], bgRatio[1-k]
				gw, bw := gammonRatio[k], bgRatio[k]
				dtl := (1-gl-bl)*lost(k, 2*cp) + gl*lost(k, 4*cp) + bl*lost(k, 6*cp)
				dtw := (1-gw-bw)*won(k, 2*cp) + gw*won(k, 4*cp) + bw*won(k, 6*cp)
				live[k][n] = (dtl - dp) / (dtl - dtw)
			} else {
				rdp := lost(k, 2*cv)
				gw, bw := gammonRatio[k], bgRatio[k]
				dtw := (1-gw-bw)*won(k, 2*cv) + gw*won(k, 4*cv) + bw*won(k, 6*cv)
				live[k][n] = 1 - live[1-k][n+1]*(dp-dtw)/(rdp-dtw)
			}
		}
	}
	return [2]float32{live[0][0], live[1][0]}
}
