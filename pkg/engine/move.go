package engine

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bgforge/gnubgcore/internal/positionid"
)

var (
	// ErrIllegalMove is returned when a move cannot be played on a board.
	ErrIllegalMove = errors.New("illegal move")
	// ErrInvalidDice is returned for a die outside 1 to 6.
	ErrInvalidDice = errors.New("invalid dice")
)

func checkDice(d0, d1 int) error {
	if d0 < 1 || d0 > 6 || d1 < 1 || d1 > 6 {
		return fmt.Errorf("%w: %d-%d", ErrInvalidDice, d0, d1)
	}
	return nil
}

// Move is one legal play for a roll together with its scores.
// From and To hold up to four sub-moves in the mover's frame; From -1
// ends the list, From 24 is the bar and To -1 bears the chequer off.
type Move struct {
	From [4]int8
	To   [4]int8

	Key      positionid.Key // resulting position
	Board    Board          // resulting position, mover still on side 1
	NumMoves int            // sub-moves played
	Pips     int            // pips played

	Probs  Probabilities // for the mover, after the move
	Score  float32       // ranking score: cubeful equity when searching cubefully
	Score2 float32       // cubeless equity
	Plies  int           // depth the scores come from
	Class  Class         // class of the resulting position
}

// SubMoves returns the (from, to) pairs of the play.
func (m Move) SubMoves() [][2]int {
	var out [][2]int
	for i := 0; i < 4 && m.From[i] >= 0; i++ {
		out = append(out, [2]int{int(m.From[i]), int(m.To[i])})
	}
	return out
}

type moveList struct {
	moves    []Move
	index    map[positionid.Key]int
	maxMoves int
	maxPips  int
}

// GenerateMoves returns every legal play of d0-d1 for the player on roll
// (side 1). A play must use as many dice as possible and, when only one
// die can be used, the larger one if possible. Plays leading to the same
// position are merged. An empty result means the player cannot move.
func GenerateMoves(b Board, d0, d1 int) []Move {
	if checkDice(d0, d1) != nil {
		return nil
	}
	ml := &moveList{
		moves: make([]Move, 0, 32),
		index: make(map[positionid.Key]int, 32),
	}

	roll := [4]int{d0, d1}
	if d0 == d1 {
		roll[2], roll[3] = d0, d0
	}
	var subs [8]int

	generateMovesSub(ml, roll, 0, 23, 0, b, &subs)
	if d0 != d1 {
		roll[0], roll[1] = roll[1], roll[0]
		generateMovesSub(ml, roll, 0, 23, 0, b, &subs)
	}
	return ml.moves
}

// generateMovesSub plays die depth from every point at or below iPip and
// recurses. It reports whether no chequer could move, in which case the
// caller saves the play made so far.
func generateMovesSub(ml *moveList, roll [4]int, depth, iPip, pips int, b Board, subs *[8]int) bool {
	if depth > 3 || roll[depth] == 0 {
		return true
	}
	die := roll[depth]

	if b[1][24] > 0 {
		if b[0][die-1] >= 2 {
			return true
		}
		subs[depth*2] = 24
		subs[depth*2+1] = 24 - die

		nb := b
		_ = applySubMove(&nb, 24, die)
		if generateMovesSub(ml, roll, depth+1, 23, pips+die, nb, subs) {
			ml.save(depth+1, pips+die, subs, nb)
		}
		return false
	}

	used := false
	for i := iPip; i >= 0; i-- {
		if b[1][i] == 0 || !legalMove(b, i, die) {
			continue
		}
		subs[depth*2] = i
		subs[depth*2+1] = i - die

		nb := b
		_ = applySubMove(&nb, i, die)

		next := 23
		if roll[0] == roll[1] {
			next = i
		}
		if generateMovesSub(ml, roll, depth+1, next, pips+die, nb, subs) {
			ml.save(depth+1, pips+die, subs, nb)
		}
		used = true
	}
	return !used
}

// legalMove reports whether a chequer on src can move die pips. Moves
// beyond the ace point are legal only when all chequers are home, and
// with a larger die only from the furthest point.
func legalMove(b Board, src, die int) bool {
	dest := src - die
	if dest >= 0 {
		return b[0][23-dest] < 2
	}

	back := 24
	for ; back > 0; back-- {
		if b[1][back] > 0 {
			break
		}
	}
	return back <= 5 && (src == back || dest == -1)
}

// applySubMove moves one chequer of side 1 from src by die pips,
// hitting a blot on the destination.
func applySubMove(b *Board, src, die int) error {
	dest := src - die
	if die < 1 || die > 6 {
		return fmt.Errorf("%w: die %d", ErrIllegalMove, die)
	}
	if src < 0 || src > 24 || b[1][src] < 1 {
		return fmt.Errorf("%w: no chequer on point %d", ErrIllegalMove, src+1)
	}

	b[1][src]--
	if dest < 0 {
		return nil
	}

	switch opp := b[0][23-dest]; {
	case opp > 1:
		b[1][src]++
		return fmt.Errorf("%w: point %d is made by the opponent", ErrIllegalMove, dest+1)
	case opp == 1:
		b[0][23-dest] = 0
		b[0][24]++
	}
	b[1][dest]++
	return nil
}

// save records a complete play. Plays using fewer dice or pips than one
// already found are dropped; finding a longer play drops the shorter
// ones.
func (ml *moveList) save(nMoves, pips int, subs *[8]int, b Board) {
	if nMoves < ml.maxMoves || pips < ml.maxPips {
		return
	}
	if nMoves > ml.maxMoves || pips > ml.maxPips {
		ml.moves = ml.moves[:0]
		clear(ml.index)
	}
	ml.maxMoves = nMoves
	ml.maxPips = pips

	key := positionid.PositionKey(b)
	if i, ok := ml.index[key]; ok {
		m := &ml.moves[i]
		if nMoves > m.NumMoves || pips > m.Pips {
			m.setSubMoves(nMoves, subs)
			m.NumMoves = nMoves
			m.Pips = pips
		}
		return
	}

	m := Move{Key: key, Board: b, NumMoves: nMoves, Pips: pips}
	m.setSubMoves(nMoves, subs)
	ml.index[key] = len(ml.moves)
	ml.moves = append(ml.moves, m)
}

func (m *Move) setSubMoves(n int, subs *[8]int) {
	for i := 0; i < 4; i++ {
		if i < n {
			m.From[i] = int8(subs[2*i])
			m.To[i] = int8(max(subs[2*i+1], -1))
		} else {
			m.From[i], m.To[i] = -1, -1
		}
	}
}

// ApplyMove plays m on b and returns the resulting board with the mover
// still on side 1.
func ApplyMove(b Board, m Move) (Board, error) {
	for i := 0; i < 4 && m.From[i] >= 0; i++ {
		src := int(m.From[i])
		die := src - int(m.To[i])
		if m.To[i] < 0 {
			die = src + 1
			if die > 6 {
				return b, fmt.Errorf("%w: cannot bear off from point %d", ErrIllegalMove, src+1)
			}
		}
		if err := applySubMove(&b, src, die); err != nil {
			return b, err
		}
	}
	return b, nil
}

// CountHits returns the number of opponent chequers m sends to the bar.
func CountHits(b Board, m Move) int {
	hits := 0
	for i := 0; i < 4 && m.From[i] >= 0; i++ {
		dest := int(m.To[i])
		if dest >= 0 && b[0][23-dest] == 1 {
			hits++
			b[0][23-dest] = 0
		}
		if dest >= 0 {
			b[1][dest]++
		}
		b[1][m.From[i]]--
	}
	return hits
}

type subMove struct {
	from, to int
	hit      bool
	count    int
}

// FormatMove renders m played from b in standard notation, e.g.
// "bar/22* 13/11" or "6/off(2)". Sub-moves of one chequer are joined
// unless an intermediate point is a hit.
func FormatMove(b Board, m Move) string {
	var subs []subMove
	for i := 0; i < 4 && m.From[i] >= 0; i++ {
		s := subMove{from: int(m.From[i]), to: int(m.To[i]), count: 1}
		if s.to >= 0 && b[0][23-s.to] == 1 {
			s.hit = true
			b[0][23-s.to] = 0
		}
		subs = append(subs, s)
	}
	if len(subs) == 0 {
		return ""
	}

	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].from != subs[j].from {
			return subs[i].from > subs[j].from
		}
		return subs[i].to > subs[j].to
	})

	// join chains
	for i := 0; i < len(subs); i++ {
		for !subs[i].hit {
			j := i + 1
			for ; j < len(subs); j++ {
				if subs[j].from == subs[i].to {
					break
				}
			}
			if j == len(subs) {
				break
			}
			subs[i].to = subs[j].to
			subs[i].hit = subs[j].hit
			subs = append(subs[:j], subs[j+1:]...)
		}
	}

	// collapse identical sub-moves
	out := subs[:1]
	for _, s := range subs[1:] {
		last := &out[len(out)-1]
		if s.from == last.from && s.to == last.to && s.hit == last.hit {
			last.count++
			continue
		}
		out = append(out, s)
	}

	var sb strings.Builder
	for i, s := range out {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(formatPoint(s.from))
		sb.WriteByte('/')
		sb.WriteString(formatPoint(s.to))
		if s.hit {
			sb.WriteByte('*')
		}
		if s.count > 1 {
			sb.WriteString("(" + strconv.Itoa(s.count) + ")")
		}
	}
	return sb.String()
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
