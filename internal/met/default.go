package met

import "math"

const (
	// DefaultLength is the match length up to which Default computes the
	// table explicitly; longer scores are extrapolated.
	DefaultLength = 25

	gammonRate = 0.25
	freeDrop2  = 0.015
	freeDrop4  = 0.004
)

var stddevTable = [...]float64{0, 1.24, 1.27, 1.47, 1.50, 1.60, 1.61, 1.66, 1.68, 1.70, 1.72, 1.77}

// Default returns a table computed from a cubeless recurrence with a 25%
// gammon rate, used when no table file is configured.
func Default() *Table {
	t := &Table{
		Name:        "Default",
		Description: "cubeless recurrence, gammon rate 0.25",
		Length:      DefaultLength,
	}
	for p := 0; p < 2; p++ {
		initPostCrawford(&t.PostCrawford[p], 0, gammonRate, freeDrop2, freeDrop4)
	}

	me := func(i, j int) float32 {
		switch {
		case i < 0:
			return 1
		case j < 0:
			return 0
		}
		return t.PreCrawford[i][j]
	}
	// player 0 leads at 1-away, so player 1 trails in the post-Crawford games
	pc := func(n int) float32 {
		if n < 0 {
			return 0
		}
		return 1 - t.PostCrawford[1][n]
	}

	for i := 0; i < DefaultLength; i++ {
		for j := 0; j < DefaultLength; j++ {
			switch {
			case i == 0 && j == 0:
				t.PreCrawford[0][0] = 0.5
			case i == 0:
				// Crawford game
				t.PreCrawford[0][j] = 0.5 + 0.5*((1-gammonRate)*pc(j-1)+gammonRate*pc(j-2))
			case j == 0:
				t.PreCrawford[i][0] = 1 - t.PreCrawford[0][i]
			default:
				t.PreCrawford[i][j] = 0.5*((1-gammonRate)*me(i-1, j)+gammonRate*me(i-2, j)) +
					0.5*((1-gammonRate)*me(i, j-1)+gammonRate*me(i, j-2))
			}
		}
	}

	t.extend(DefaultLength)
	return t
}

// initPostCrawford fills pc from index start with the post-Crawford
// recurrence: the trailer doubles at once so each game is worth 2 or 4
// points. Free drops at 2-away and 4-away are subtracted.
func initPostCrawford(pc *[MaxScore]float32, start int, g, fd2, fd4 float32) {
	at := func(i int) float32 {
		if i < 0 {
			return 1
		}
		return pc[i]
	}
	for i := start; i < MaxScore; i++ {
		pc[i] = g*0.5*at(i-4) + (1-g)*0.5*at(i-2)
		switch i {
		case 1:
			pc[i] -= fd2
		case 3:
			pc[i] -= fd4
		}
	}
}

// extend fills scores beyond n by a normal approximation of the score
// difference, then the upper triangle by symmetry.
func (t *Table) extend(n int) {
	sd := func(score int) float64 {
		if score > 10 {
			return 1.77
		}
		return stddevTable[score]
	}

	for i := n; i < MaxScore; i++ {
		s0 := i + 1
		for j := 0; j <= i; j++ {
			s1 := j + 1
			games := float64(s0+s1) / 2
			sigma := math.Sqrt(sd(s0)*sd(s0)+sd(s1)*sd(s1)) * math.Sqrt(games)
			if 6*sigma > float64(s0-s1) {
				t.PreCrawford[i][j] = float32(normalDistArea(float64(s0-s1), 6*sigma, 0, sigma))
			} else {
				t.PreCrawford[i][j] = 0
			}
		}
	}

	for i := 0; i < MaxScore; i++ {
		from := i + 1
		if i < n {
			from = n
		}
		for j := from; j < MaxScore; j++ {
			t.PreCrawford[i][j] = 1 - t.PreCrawford[j][i]
		}
	}
}

func normalDistArea(lo, hi, mu, sigma float64) float64 {
	a := (math.Erf((lo-mu)/sigma/math.Sqrt2) + 1) / 2
	b := (math.Erf((hi-mu)/sigma/math.Sqrt2) + 1) / 2
	return b - a
}
