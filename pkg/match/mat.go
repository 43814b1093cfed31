package match

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// MAT format is the Jellyfish/gnubg match format.
// Example format:
//
//	; [Site "GamesGrid"]
//	; [Player 1 "name1"]
//	; [Player 2 "name2"]
//	7 point match
//
//	Game 1
//	name1 : 0            name2 : 0
//	1) 31: 8/5 6/5       52: 24/22 13/8
//	2) 43: 24/20 13/10   Doubles => 2
//	3)  Takes            ...

var (
	matchLengthRE = regexp.MustCompile(`(?i)^(\d+)\s+point\s+match`)
	gameHeaderRE  = regexp.MustCompile(`(?i)^Game\s+(\d+)`)
	scoreLineRE   = regexp.MustCompile(`^(.+?)\s*:\s*(\d+)\s+(.+?)\s*:\s*(\d+)\s*$`)
	moveLineRE    = regexp.MustCompile(`^\s*(\d+)\)(.*)$`)
	tagRE         = regexp.MustCompile(`\[(\w+(?:\s+\d)?)\s+"([^"]*)"\]`)
	rollRE        = regexp.MustCompile(`^([1-6])([1-6]):\s*(.*)$`)
	doubleRE      = regexp.MustCompile(`(?i)^doubles(?:\s*=>\s*(\d+))?$`)
	winsRE        = regexp.MustCompile(`(?i)^wins\s+(\d+)\s+points?`)
	columnSepRE   = regexp.MustCompile(`\s{3,}`)
)

// emptyLeftColumn is the indentation after "n)" from which a move line
// only has an entry for player 2.
const emptyLeftColumn = 8

// ImportMAT reads a match from MAT format.
func ImportMAT(r io.Reader) (*Match, error) {
	scanner := bufio.NewScanner(r)
	match := &Match{}

	var currentGame *Game
	gameHeader := false
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		// Skip empty lines
		if line == "" {
			continue
		}

		// Parse metadata comments
		if strings.HasPrefix(line, ";") {
			if m := tagRE.FindStringSubmatch(line); m != nil {
				parseTag(match, strings.ToLower(strings.Join(strings.Fields(m[1]), " ")), m[2])
			}
			continue
		}

		if m := matchLengthRE.FindStringSubmatch(line); m != nil {
			match.MatchLength, _ = strconv.Atoi(m[1])
			continue
		}

		if gameHeaderRE.MatchString(line) {
			gameHeader = true
			continue
		}

		if m := moveLineRE.FindStringSubmatch(raw); m != nil {
			if currentGame == nil || gameHeader {
				return nil, fmt.Errorf("%w: line %d: move before the score line", ErrInvalidMatch, lineNo)
			}
			if err := parseMoveLineMAT(m[2], currentGame); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidMatch, lineNo, err)
			}
			continue
		}

		// Parse score line (name : score   name : score)
		if m := scoreLineRE.FindStringSubmatch(line); m != nil && gameHeader {
			if match.Players[0] == "" {
				match.Players[0] = strings.TrimSpace(m[1])
			}
			if match.Players[1] == "" {
				match.Players[1] = strings.TrimSpace(m[3])
			}
			s0, _ := strconv.Atoi(m[2])
			s1, _ := strconv.Atoi(m[4])
			currentGame = match.NewGame(s0, s1)
			gameHeader = false
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading MAT file: %w", err)
	}
	if len(match.Games) == 0 {
		return nil, fmt.Errorf("%w: no games", ErrInvalidMatch)
	}
	return match, nil
}

func parseTag(match *Match, key, value string) {
	switch key {
	case "player 1", "player1":
		match.Players[0] = value
	case "player 2", "player2":
		match.Players[1] = value
	case "site", "place":
		match.Place = value
	case "event":
		match.Event = value
	case "round":
		match.Round = value
	case "date", "eventdate":
		match.Date = value
	case "annotator", "transcriber":
		match.Annotator = value
	}
}

// parseMoveLineMAT parses what follows "n)" on a move line: the entry of
// player 1 and, separated by a wide gap, the entry of player 2.
func parseMoveLineMAT(rest string, game *Game) error {
	text := strings.TrimSpace(rest)
	if text == "" {
		return nil
	}
	indent := len(rest) - len(strings.TrimLeft(rest, " \t"))
	if indent >= emptyLeftColumn {
		return parsePlayerMoveMAT(text, 1, game)
	}

	halves := columnSepRE.Split(text, 2)
	for playerIdx, half := range halves {
		if err := parsePlayerMoveMAT(strings.TrimSpace(half), playerIdx, game); err != nil {
			return err
		}
	}
	return nil
}

// parsePlayerMoveMAT parses a single player's entry.
// Format: "31: 8/5 6/5", "52:", "Doubles => 2", "Takes", "Drops" or
// "Wins 2 points".
func parsePlayerMoveMAT(text string, player int, game *Game) error {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	if m := doubleRE.FindStringSubmatch(text); m != nil {
		value, _ := strconv.Atoi(m[1])
		game.AddDouble(player, value)
		return nil
	}
	switch lower {
	case "takes", "accepts":
		game.AddTake(player)
		return nil
	case "drops", "passes", "rejects":
		game.AddPass(player)
		return nil
	}
	if m := winsRE.FindStringSubmatch(text); m != nil {
		points, _ := strconv.Atoi(m[1])
		game.AddWin(player, points)
		return nil
	}

	m := rollRE.FindStringSubmatch(text)
	if m == nil {
		return fmt.Errorf("unrecognised entry %q", text)
	}
	d0, _ := strconv.Atoi(m[1])
	d1, _ := strconv.Atoi(m[2])
	move := strings.TrimSpace(m[3])
	if strings.Contains(strings.ToLower(move), "cannot") {
		move = ""
	}
	game.AddMove(player, d0, d1, move)
	return nil
}

// ExportMAT writes a match in MAT format.
func ExportMAT(w io.Writer, match *Match) error {
	bw := bufio.NewWriter(w)

	// Write metadata
	tags := []struct{ key, value string }{
		{"Site", match.Place},
		{"Event", match.Event},
		{"Round", match.Round},
		{"Date", match.Date},
		{"Player 1", match.Players[0]},
		{"Player 2", match.Players[1]},
		{"Annotator", match.Annotator},
	}
	for _, t := range tags {
		if t.value != "" {
			fmt.Fprintf(bw, " ; [%s \"%s\"]\n", t.key, t.value)
		}
	}

	fmt.Fprintf(bw, "\n %d point match\n\n", match.MatchLength)

	for _, game := range match.Games {
		exportGameMAT(bw, match, game)
	}
	return bw.Flush()
}

// exportGameMAT writes a single game in MAT format, one row per pair of
// entries with player 1 on the left.
func exportGameMAT(w io.Writer, match *Match, game *Game) {
	fmt.Fprintf(w, " Game %d\n", game.Number)
	left := fmt.Sprintf("%s : %d", match.Players[0], game.Score[0])
	fmt.Fprintf(w, " %-34s %s : %d\n", left, match.Players[1], game.Score[1])

	type row struct{ cells [2]string }
	var rows []row
	for _, a := range game.Actions {
		text := formatActionMAT(a)
		if a.Player == 0 || len(rows) == 0 || rows[len(rows)-1].cells[1] != "" {
			rows = append(rows, row{})
		}
		rows[len(rows)-1].cells[a.Player] = text
	}

	for i, r := range rows {
		line := fmt.Sprintf("%3d) %s", i+1, r.cells[0])
		if r.cells[1] != "" {
			pad := max(31-len(r.cells[0]), 3)
			line += strings.Repeat(" ", pad) + r.cells[1]
		}
		fmt.Fprintf(w, " %s\n", line)
	}
	fmt.Fprintln(w)
}

func formatActionMAT(a Action) string {
	switch a.Type {
	case ActionMove:
		s := fmt.Sprintf("%d%d:", a.Dice[0], a.Dice[1])
		if a.Move != "" {
			s += " " + a.Move
		}
		return s
	case ActionDouble:
		return fmt.Sprintf("Doubles => %d", a.Value)
	case ActionTake:
		return "Takes"
	case ActionPass:
		return "Drops"
	case ActionWin:
		if a.Value == 1 {
			return "Wins 1 point"
		}
		return fmt.Sprintf("Wins %d points", a.Value)
	}
	return ""
}
