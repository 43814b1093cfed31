package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CubeDecision is the recommended cube action for the player on roll
// and the response of the opponent.
type CubeDecision int

const (
	DoubleTake CubeDecision = iota
	DoublePass
	NoDoubleTake
	TooGoodTake
	TooGoodPass
	DoubleBeaver
	NoDoubleBeaver
	RedoubleTake
	RedoublePass
	NoRedoubleTake
	TooGoodRedoubleTake
	TooGoodRedoublePass
	NoRedoubleBeaver
	NoDoubleDeadCube   // match play only
	NoRedoubleDeadCube // match play only
	NotAvailable
	OptionalDoubleTake
	OptionalRedoubleTake
	OptionalDoubleBeaver
	OptionalDoublePass
	OptionalRedoublePass

	numCubeDecisions
)

var cubeRecommendations = [numCubeDecisions]string{
	"Double, take",
	"Double, pass",
	"No double, take",
	"Too good to double, take",
	"Too good to double, pass",
	"Double, beaver",
	"No double, beaver",
	"Redouble, take",
	"Redouble, pass",
	"No redouble, take",
	"Too good to redouble, take",
	"Too good to redouble, pass",
	"No redouble, beaver",
	"Never double, take",
	"Never redouble, take",
	"Cube not available",
	"Optional double, take",
	"Optional redouble, take",
	"Optional double, beaver",
	"Optional double, pass",
	"Optional redouble, pass",
}

// GetCubeRecommendation returns the human readable form of a decision.
func GetCubeRecommendation(cd CubeDecision) string {
	if cd < 0 || cd >= numCubeDecisions {
		return "Unknown cube decision"
	}
	return cubeRecommendations[cd]
}

func (cd CubeDecision) String() string {
	return GetCubeRecommendation(cd)
}

// Slug returns the decision as a lower case identifier, e.g.
// "too-good-to-double-pass".
func (cd CubeDecision) Slug() string {
	r := strings.NewReplacer(",", "", " ", "-")
	return r.Replace(strings.ToLower(GetCubeRecommendation(cd)))
}

// ParseCubeDecision accepts a decision number or slug.
func ParseCubeDecision(s string) (CubeDecision, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n >= int(numCubeDecisions) {
			return 0, fmt.Errorf("cube decision %d out of range", n)
		}
		return CubeDecision(n), nil
	}
	for cd := CubeDecision(0); cd < numCubeDecisions; cd++ {
		if cd.Slug() == strings.ToLower(s) {
			return cd, nil
		}
	}
	return 0, fmt.Errorf("unknown cube decision %q", s)
}

// IsDouble reports whether the decision is to (re)double.
func (cd CubeDecision) IsDouble() bool {
	switch cd {
	case DoubleTake, DoublePass, DoubleBeaver, RedoubleTake, RedoublePass,
		OptionalDoubleTake, OptionalRedoubleTake, OptionalDoubleBeaver,
		OptionalDoublePass, OptionalRedoublePass:
		return true
	}
	return false
}

// IsTake reports whether the opponent should accept a double.
func (cd CubeDecision) IsTake() bool {
	switch cd {
	case DoublePass, TooGoodPass, RedoublePass, TooGoodRedoublePass,
		OptionalDoublePass, OptionalRedoublePass:
		return false
	}
	return true
}

// Indices of cube decision equities.
const (
	EquityNoDouble = iota
	EquityDoubleTake
	EquityDoublePass
	EquityOptimal
)

// GammonPrices returns the values of gammons and backgammons in units of
// the cube: [0] gammon for player 0, [1] gammon for player 1,
// [2] backgammon for player 0, [3] backgammon for player 1.
func (e *Engine) GammonPrices(ci CubeInfo) [4]float32 {
	if ci.MatchTo == 0 {
		gp := float32(1)
		if ci.Jacoby && ci.Owner == -1 {
			gp = 0
		}
		return [4]float32{gp, gp, gp, gp}
	}
	return e.met.GammonPrice(ci.score(), max(ci.Cube, 1))
}

// Utility returns the cubeless equity of p for ci.Move, pricing gammons
// at the current score and cube.
func (e *Engine) Utility(p Probabilities, ci CubeInfo) float32 {
	gp := e.GammonPrices(ci)
	if ci.MatchTo == 0 {
		return p[OutputWin]*2 - 1 +
			(p[OutputWinGammon]-p[OutputLoseGammon])*gp[0] +
			(p[OutputWinBackgammon]-p[OutputLoseBackgammon])*gp[2]
	}
	m := ci.Move
	return p[OutputWin]*2 - 1 +
		p[OutputWinGammon]*gp[m] -
		p[OutputLoseGammon]*gp[1-m] +
		p[OutputWinBackgammon]*gp[2+m] -
		p[OutputLoseBackgammon]*gp[3-m]
}

// UtilityME is Utility without the Jacoby rule in money games.
func (e *Engine) UtilityME(p Probabilities, ci CubeInfo) float32 {
	if ci.MatchTo == 0 {
		return p.Equity()
	}
	return e.Utility(p, ci)
}

// Eq2Mwc converts an equity normalised to ci's cube into a match winning
// chance for ci.Move.
func (e *Engine) Eq2Mwc(eq float32, ci CubeInfo) float32 {
	return e.met.Eq2Mwc(eq, ci.score(), ci.Move, ci.Cube)
}

// Mwc2Eq converts a match winning chance for ci.Move into an equity
// normalised to ci's cube.
func (e *Engine) Mwc2Eq(mwc float32, ci CubeInfo) float32 {
	return e.met.Mwc2Eq(mwc, ci.score(), ci.Move, ci.Cube)
}

// GetDPEq reports whether ci.Move may double and returns the value of a
// double/pass: 1 in money play, the match winning chance after winning
// the current cube in match play.
func (e *Engine) GetDPEq(ci CubeInfo) (bool, float32) {
	if ci.MatchTo == 0 {
		return ci.Owner == -1 || ci.Owner == ci.Move, 1
	}
	return e.IsCubeAvailable(ci), e.met.GetME(ci.score(), ci.Move, ci.Cube, ci.Move)
}

// IsCubeAvailable reports whether ci.Move has access to a live cube.
func (e *Engine) IsCubeAvailable(ci CubeInfo) bool {
	if ci.Cube <= 0 {
		return false
	}
	if ci.MatchTo == 0 {
		return ci.Owner == -1 || ci.Owner == ci.Move
	}
	own := ci.Score[ci.Move]
	return !ci.Crawford &&
		own+ci.Cube < ci.MatchTo &&
		!(ci.PostCrawford() && own == ci.MatchTo-1) &&
		(ci.Owner == -1 || ci.Owner == ci.Move)
}

// cl2cf converts cubeless probabilities into a cubeful value with cube
// efficiency x: an equity in money play, a match winning chance in match
// play.
func (e *Engine) cl2cf(p Probabilities, ci CubeInfo, x float32) float32 {
	if ci.MatchTo == 0 {
		return e.cl2cfMoney(p, ci, x)
	}
	return e.cl2cfMatch(p, ci, x)
}

func (e *Engine) cl2cfMoney(p Probabilities, ci CubeInfo, x float32) float32 {
	const epsilon = 0.0000001
	const omepsilon = 0.9999999

	win := p[OutputWin]
	if win <= epsilon || win >= omepsilon {
		// dead cube
		return e.Utility(p, ci)
	}
	rW := 1 + (p[OutputWinGammon]+p[OutputWinBackgammon])/win
	rL := 1 + (p[OutputLoseGammon]+p[OutputLoseBackgammon])/(1-win)

	dead := e.Utility(p, ci)
	live := moneyLive(rW, rL, win, ci)
	return dead*(1-x) + live*x
}

// moneyLive is the fully live cube equity: linear between the take and
// cash points.
func moneyLive(rW, rL, p float32, ci CubeInfo) float32 {
	switch {
	case ci.Owner == -1:
		tp := (rL - 0.5) / (rW + rL + 0.5)
		cp := (rL + 1) / (rW + rL + 0.5)
		switch {
		case p < tp:
			if ci.Jacoby {
				return -1
			}
			return -rL + (-1+rL)*p/tp
		case p < cp:
			return -1 + 2*(p-tp)/(cp-tp)
		default:
			if ci.Jacoby {
				return 1
			}
			return 1 + (rW-1)*(p-cp)/(1-cp)
		}

	case ci.Owner == ci.Move:
		cp := (rL + 1) / (rW + rL + 0.5)
		if p < cp {
			return -rL + (1+rL)*p/cp
		}
		return 1 + (rW-1)*(p-cp)/(1-cp)

	default:
		tp := (rL - 0.5) / (rW + rL + 0.5)
		if p < tp {
			return -rL + (-1+rL)*p/tp
		}
		return -1 + (rW+1)*(p-tp)/(1-tp)
	}
}

// cubeIsLive reports whether the cube still matters at this score.
func cubeIsLive(ci CubeInfo) bool {
	switch {
	case ci.Score[0]+ci.Cube >= ci.MatchTo && ci.Score[1]+ci.Cube >= ci.MatchTo:
		return false
	case ci.Score[0] == ci.MatchTo-2 && ci.Score[1] == ci.MatchTo-2:
		return false
	case ci.Crawford:
		return false
	}
	return true
}

func (e *Engine) cl2cfMatch(p Probabilities, ci CubeInfo, x float32) float32 {
	dead := e.Eq2Mwc(e.Utility(p, ci), ci)
	if !cubeIsLive(ci) {
		return dead
	}

	win := p[OutputWin]
	var g0, bg0, g1, bg1 float32
	if win > 0 {
		g0 = (p[OutputWinGammon] - p[OutputWinBackgammon]) / win
		bg0 = p[OutputWinBackgammon] / win
	}
	if win < 1 {
		g1 = (p[OutputLoseGammon] - p[OutputLoseBackgammon]) / (1 - win)
		bg1 = p[OutputLoseBackgammon] / (1 - win)
	}

	m := ci.Move
	var gammonRatio, bgRatio [2]float32
	gammonRatio[m], bgRatio[m] = g0, bg0
	gammonRatio[1-m], bgRatio[1-m] = g1, bg1
	cp := e.met.TakePoints(ci.score(), ci.Cube, gammonRatio, bgRatio)

	s := ci.score()
	me := func(points, whoWins int) float32 { return e.met.GetME(s, m, points, whoWins) }
	cash := me(ci.Cube, m)
	oppCash := me(ci.Cube, 1-m)
	mwcWin := (1-g0-bg0)*cash + g0*me(2*ci.Cube, m) + bg0*me(3*ci.Cube, m)
	mwcLose := (1-g1-bg1)*oppCash + g1*me(2*ci.Cube, 1-m) + bg1*me(3*ci.Cube, 1-m)

	oppTG := 1 - cp[1-m]
	tg := cp[m]

	var live float32
	switch {
	case ci.Owner == -1:
		switch {
		case win <= oppTG:
			live = mwcLose
			if oppTG > 0 {
				live = mwcLose + (oppCash-mwcLose)*win/oppTG
			}
		case win < tg:
			live = oppCash + (cash-oppCash)*(win-oppTG)/(tg-oppTG)
		default:
			live = mwcWin
			if tg < 1 {
				live = cash + (mwcWin-cash)*(win-tg)/(1-tg)
			}
		}

	case ci.Owner == m:
		if win <= tg {
			live = mwcLose
			if tg > 0 {
				live = mwcLose + (cash-mwcLose)*win/tg
			}
		} else {
			live = mwcWin
			if tg < 1 {
				live = cash + (mwcWin-cash)*(win-tg)/(1-tg)
			}
		}

	default:
		if win <= oppTG {
			live = mwcLose
			if oppTG > 0 {
				live = mwcLose + (oppCash-mwcLose)*win/oppTG
			}
		} else {
			live = oppCash + (mwcWin-oppCash)*(win-oppTG)/(1-oppTG)
		}
	}

	return dead*(1-x) + live*x
}

// CubefulEquity returns the no double, double/take and double/pass
// equities of p for the player on roll, using a live cube model with the
// cube efficiency of the position class. Equities are normalised to the
// current cube.
func (e *Engine) CubefulEquity(p Probabilities, ci CubeInfo, x float32) [3]float32 {
	var out [3]float32
	_, dp := e.GetDPEq(ci)

	nd := e.cl2cf(p, ci, x)
	dtci := ci
	dtci.Cube *= 2
	dtci.Owner = 1 - ci.Move
	dt := e.cl2cf(p, dtci, x)

	if ci.MatchTo == 0 {
		out[EquityNoDouble] = nd
		out[EquityDoubleTake] = 2 * dt
		out[EquityDoublePass] = dp
		return out
	}
	out[EquityNoDouble] = e.Mwc2Eq(nd, ci)
	out[EquityDoubleTake] = e.Mwc2Eq(dt, ci)
	out[EquityDoublePass] = e.Mwc2Eq(dp, ci)
	return out
}

func isOptional(r1, r2 float32) bool {
	const epsilon = 1.0e-5
	return math.Abs(float64(r1-r2)) <= epsilon
}

// FindBestCubeDecision classifies the cube action from the no double,
// double/take and double/pass equities in eq and stores the optimal
// equity in eq[EquityOptimal]. p are the cubeless probabilities of the
// position.
func (e *Engine) FindBestCubeDecision(eq *[4]float32, p Probabilities, ci CubeInfo) CubeDecision {
	centered := ci.Owner == -1
	pick := func(double, redouble CubeDecision) CubeDecision {
		if centered {
			return double
		}
		return redouble
	}
	winGammon := p[OutputWinGammon] > 0
	winAny := p[OutputWin] > 0

	nd, dt, dp := eq[EquityNoDouble], eq[EquityDoubleTake], eq[EquityDoublePass]

	if !e.IsCubeAvailable(ci) {
		eq[EquityOptimal] = nd
		if ci.MatchTo > 0 && (centered || ci.Owner == ci.Move) {
			return pick(NoDoubleDeadCube, NoRedoubleDeadCube)
		}
		return NotAvailable
	}

	beaverable := ci.MatchTo == 0 && ci.Beavers && dt >= -2 && dt <= 0

	if dt >= nd && dp >= nd {
		if dp > dt {
			// double, take
			eq[EquityOptimal] = dt
			optional := isOptional(dt, nd)
			switch {
			case beaverable:
				if dt*2 < nd {
					return NoDoubleBeaver
				}
				if optional {
					return OptionalDoubleBeaver
				}
				return DoubleBeaver
			case !winAny:
				// sure to lose: no point in doubling
				return pick(NoDoubleTake, NoRedoubleTake)
			case optional:
				return pick(OptionalDoubleTake, OptionalRedoubleTake)
			}
			return pick(DoubleTake, RedoubleTake)
		}

		// double, pass
		eq[EquityOptimal] = dp
		if isOptional(nd, dp) && winGammon && (ci.MatchTo > 0 || !centered || !ci.Jacoby) {
			return pick(OptionalDoublePass, OptionalRedoublePass)
		}
		return pick(DoublePass, RedoublePass)
	}

	eq[EquityOptimal] = nd
	switch {
	case nd > dt && dt > dp:
		// too good, pass
		if winGammon {
			return pick(TooGoodPass, TooGoodRedoublePass)
		}
		return pick(DoublePass, RedoublePass)
	case nd > dt && nd > dp:
		// too good, take
		if winGammon {
			return pick(TooGoodTake, TooGoodRedoubleTake)
		}
		return pick(NoDoubleTake, NoRedoubleTake)
	case nd > dt:
		// no double, take
		if beaverable {
			return pick(NoDoubleBeaver, NoRedoubleBeaver)
		}
		return pick(NoDoubleTake, NoRedoubleTake)
	}

	// DT >= ND > DP: too good, pass
	if winGammon {
		return pick(TooGoodPass, TooGoodRedoublePass)
	}
	return pick(DoublePass, RedoublePass)
}
