package engine

// Statcontext accumulates the decisions and luck of both players over a
// game or match. Equity errors are normalised to a 1-cube.
type Statcontext struct {
	TotalMoves    [2]int            `json:"totalMoves"`
	UnforcedMoves [2]int            `json:"unforcedMoves"`
	MoveSkills    [2][numSkills]int `json:"moveSkills"`
	CheckerError  [2]float64        `json:"checkerError"`

	CubeDecisions [2]int     `json:"cubeDecisions"`
	CloseCube     [2]int     `json:"closeCube"`
	Doubles       [2]int     `json:"doubles"`
	Takes         [2]int     `json:"takes"`
	Passes        [2]int     `json:"passes"`
	MissedDoubles [2]int     `json:"missedDoubles"`
	WrongDoubles  [2]int     `json:"wrongDoubles"`
	WrongTakes    [2]int     `json:"wrongTakes"`
	WrongPasses   [2]int     `json:"wrongPasses"`
	CubeError     [2]float64 `json:"cubeError"`

	Rolls     [2]int           `json:"rolls"`
	Luck      [2][numLucks]int `json:"luck"`
	LuckTotal [2]float64       `json:"luckTotal"`
}

// AddMove records a chequer play of player. moves is the ranked list from
// FindNSaveBestMoves and played the index of the move made; an empty list
// is a dance. luck is the equity swing of the roll for player.
func (sc *Statcontext) AddMove(player int, moves []Move, played int, luck float32) {
	sc.TotalMoves[player]++
	sc.addLuck(player, luck)

	if len(moves) < 2 || played < 0 || played >= len(moves) {
		return
	}
	sc.UnforcedMoves[player]++
	loss := max(moves[0].Score-moves[played].Score, 0)
	sc.MoveSkills[player][MoveSkill(loss)]++
	sc.CheckerError[player] += float64(loss)
}

// AddRoll records the luck of a roll without a move decision.
func (sc *Statcontext) AddRoll(player int, luck float32) {
	sc.addLuck(player, luck)
}

func (sc *Statcontext) addLuck(player int, luck float32) {
	sc.Rolls[player]++
	sc.Luck[player][LuckFor(luck)]++
	sc.LuckTotal[player] += float64(luck)
}

// AddCube records a cube action by player. For NoDouble and Double the
// player is the one on roll; for Take and Pass the one responding, with
// eq the doubler's equities.
func (sc *Statcontext) AddCube(player int, eq [4]float32, actual CubeAction) {
	sc.CubeDecisions[player]++
	if isCloseCubeDecision(eq) {
		sc.CloseCube[player]++
	}

	loss := cubeError(eq, actual)
	sc.CubeError[player] += float64(loss)

	switch actual {
	case NoDouble:
		if loss > 0 {
			sc.MissedDoubles[player]++
		}
	case Double:
		sc.Doubles[player]++
		if loss > 0 {
			sc.WrongDoubles[player]++
		}
	case Take:
		sc.Takes[player]++
		if loss > 0 {
			sc.WrongTakes[player]++
		}
	case Pass:
		sc.Passes[player]++
		if loss > 0 {
			sc.WrongPasses[player]++
		}
	}
}

// Merge adds the counts of o.
func (sc *Statcontext) Merge(o *Statcontext) {
	for p := 0; p < 2; p++ {
		sc.TotalMoves[p] += o.TotalMoves[p]
		sc.UnforcedMoves[p] += o.UnforcedMoves[p]
		for s := range sc.MoveSkills[p] {
			sc.MoveSkills[p][s] += o.MoveSkills[p][s]
		}
		sc.CheckerError[p] += o.CheckerError[p]

		sc.CubeDecisions[p] += o.CubeDecisions[p]
		sc.CloseCube[p] += o.CloseCube[p]
		sc.Doubles[p] += o.Doubles[p]
		sc.Takes[p] += o.Takes[p]
		sc.Passes[p] += o.Passes[p]
		sc.MissedDoubles[p] += o.MissedDoubles[p]
		sc.WrongDoubles[p] += o.WrongDoubles[p]
		sc.WrongTakes[p] += o.WrongTakes[p]
		sc.WrongPasses[p] += o.WrongPasses[p]
		sc.CubeError[p] += o.CubeError[p]

		sc.Rolls[p] += o.Rolls[p]
		for l := range sc.Luck[p] {
			sc.Luck[p][l] += o.Luck[p][l]
		}
		sc.LuckTotal[p] += o.LuckTotal[p]
	}
}

// ErrorRate returns player's average error per unforced move and close
// cube decision.
func (sc *Statcontext) ErrorRate(player int) float64 {
	n := sc.UnforcedMoves[player] + sc.CloseCube[player]
	if n == 0 {
		return 0
	}
	return (sc.CheckerError[player] + sc.CubeError[player]) / float64(n)
}

// Rating returns player's rating from the error rate, undefined before
// any decision that counts.
func (sc *Statcontext) Rating(player int) RatingType {
	if sc.UnforcedMoves[player]+sc.CloseCube[player] == 0 {
		return RatingUndefined
	}
	return GetRating(sc.ErrorRate(player))
}
