package main

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/bgforge/gnubgcore/pkg/engine"
)

// printer colours analysis output when the terminal supports it.
type printer struct {
	*termenv.Output
}

func newPrinter(w io.Writer) *printer {
	return &printer{termenv.NewOutput(w)}
}

func (p *printer) header(format string, args ...any) {
	fmt.Fprintln(p, p.String(fmt.Sprintf(format, args...)).Bold())
}

// equity renders eq green when positive and red when negative.
func (p *printer) equity(eq float32) string {
	s := p.String(fmt.Sprintf("%+.3f", eq))
	switch {
	case eq > 0:
		s = s.Foreground(p.Color("2"))
	case eq < 0:
		s = s.Foreground(p.Color("1"))
	}
	return s.String()
}

// cubeEquity renders eq with its loss against the best cube action.
func (p *printer) cubeEquity(eq, best float32) string {
	if eq >= best {
		return p.equity(eq)
	}
	return fmt.Sprintf("%s  %s", p.equity(eq), p.String(fmt.Sprintf("(%+.3f)", eq-best)).Faint())
}

func (p *printer) evaluation(e engine.Evaluation) {
	fmt.Fprintf(p, "  Equity:  %s\n", p.equity(float32(e.Equity)))
	fmt.Fprintf(p, "  Win:     %.1f%% (G: %.1f%%, BG: %.1f%%)\n",
		e.WinProb*100, e.WinG*100, e.WinBG*100)
	fmt.Fprintf(p, "  Lose:    %.1f%% (G: %.1f%%, BG: %.1f%%)\n",
		(1-e.WinProb)*100, e.LoseG*100, e.LoseBG*100)
}

// move prints one ranked play; reference plays from the opening book are
// marked with a star.
func (p *printer) move(i int, notation string, m engine.Move, best float32, reference bool) {
	name := p.String(fmt.Sprintf("%-20s", notation))
	if i == 0 {
		name = name.Bold()
	}
	mark := " "
	if reference {
		mark = p.String("*").Foreground(p.Color("3")).String()
	}
	diff := ""
	if i > 0 {
		diff = p.String(fmt.Sprintf("(%+.3f)", m.Score-best)).Faint().String()
	}
	fmt.Fprintf(p, "  %d.%s %s  Eq: %s %s\n", i+1, mark, name, p.equity(m.Score), diff)
}

// player prints the summary of one player's decisions.
func (p *printer) player(name string, sc *engine.Statcontext, i int, luck bool) {
	fmt.Fprintln(p, p.String(name).Underline())
	fmt.Fprintf(p, "  Moves:         %d (%d unforced)\n", sc.TotalMoves[i], sc.UnforcedMoves[i])
	fmt.Fprintf(p, "  Errors:        %d doubtful, %d bad, %d very bad\n",
		sc.MoveSkills[i][engine.SkillDoubtful], sc.MoveSkills[i][engine.SkillBad], sc.MoveSkills[i][engine.SkillVeryBad])
	fmt.Fprintf(p, "  Cube:          %d decisions, %d doubles, %d takes, %d passes\n",
		sc.CubeDecisions[i], sc.Doubles[i], sc.Takes[i], sc.Passes[i])
	fmt.Fprintf(p, "  Error rate:    %.4f per decision\n", sc.ErrorRate(i))
	fmt.Fprintf(p, "  Rating:        %s\n", p.String(sc.Rating(i).String()).Bold())
	if luck {
		fmt.Fprintf(p, "  Luck:          %s\n", p.equity(float32(sc.LuckTotal[i])))
	}
}

func (p *printer) skill(s engine.SkillType) string {
	st := p.String(fmt.Sprintf("%-3s", s.Abbr()))
	if s == engine.SkillVeryBad {
		st = st.Foreground(p.Color("1")).Bold()
	}
	return st.String()
}

func (p *printer) moveError(name string, e engine.MoveErrorDetail) {
	fmt.Fprintf(p, "%s game %d move %d, %s %d%d: %s played %s, best %s (%+.3f)\n",
		p.skill(e.Skill), e.Game, e.MoveNumber, name, e.Dice[0], e.Dice[1],
		e.Position, e.Played, e.Best, -e.EquityLoss)
}

func (p *printer) cubeError(name string, e engine.CubeErrorDetail) {
	fmt.Fprintf(p, "%s game %d move %d, %s: %s %s, correct is %s (%+.3f)\n",
		p.skill(e.Skill), e.Game, e.MoveNumber, name, e.Position, e.Played, e.Best, -e.EquityLoss)
}
