package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/bgforge/gnubgcore/internal/neuralnet"
	"github.com/bgforge/gnubgcore/internal/positionid"
)

// ErrRolloutFailureRate is returned when too many trials of a rollout
// could not be completed.
var ErrRolloutFailureRate = errors.New("rollout trial failure rate exceeded")

// maxRolloutPlies ends a trial that does not finish.
const maxRolloutPlies = 1000

// RolloutContext controls a rollout.
type RolloutContext struct {
	Trials   int  `json:"trials" yaml:"trials"`
	Truncate int  `json:"truncate" yaml:"truncate"` // plies, 0 plays to the end
	Cubeful  bool `json:"cubeful" yaml:"cubeful"`

	// Early is used for chequer play and cube decisions before LatePly,
	// Late from then on. LatePly 0 uses Early throughout.
	Early   EvalContext `json:"early" yaml:"early"`
	Late    EvalContext `json:"late" yaml:"late"`
	LatePly int         `json:"latePly" yaml:"latePly"`

	VarianceReduction bool   `json:"varianceReduction" yaml:"varianceReduction"`
	RNG               RNG    `json:"rng" yaml:"rng"`
	Seed              uint64 `json:"seed" yaml:"seed"` // 0 picks a random seed
	RotateFirst       bool   `json:"rotateFirst" yaml:"rotateFirst"`

	StopOnSTD bool    `json:"stopOnSTD" yaml:"stopOnSTD"`
	MinGames  int     `json:"minGames" yaml:"minGames"`
	STDLimit  float32 `json:"stdLimit" yaml:"stdLimit"` // standard error over |mean|

	StopOnJSD   bool    `json:"stopOnJSD" yaml:"stopOnJSD"`
	MinJSDGames int     `json:"minJSDGames" yaml:"minJSDGames"`
	JSDLimit    float32 `json:"jsdLimit" yaml:"jsdLimit"`

	FailureRate   float64 `json:"failureRate" yaml:"failureRate"`
	CheckInterval int     `json:"checkInterval" yaml:"checkInterval"`
	Workers       int     `json:"workers" yaml:"workers"` // 0 = GOMAXPROCS
}

// DefaultRolloutContext returns a cubeful 1296 trial rollout at 0 ply
// with variance reduction.
func DefaultRolloutContext() RolloutContext {
	ec := DefaultEvalContext()
	return RolloutContext{
		Trials:            1296,
		Cubeful:           true,
		Early:             ec,
		Late:              ec,
		VarianceReduction: true,
		RNG:               RNGPCG,
		RotateFirst:       true,
		MinGames:          324,
		STDLimit:          0.01,
		MinJSDGames:       144,
		JSDLimit:          2.33,
		FailureRate:       0.01,
		CheckInterval:     36,
	}
}

// Validate checks the rollout context.
func (rc RolloutContext) Validate() error {
	switch {
	case rc.Trials < 1:
		return fmt.Errorf("trials must be positive, got %d", rc.Trials)
	case rc.Truncate < 0:
		return fmt.Errorf("truncation must not be negative, got %d", rc.Truncate)
	case rc.LatePly < 0:
		return fmt.Errorf("late ply must not be negative, got %d", rc.LatePly)
	case rc.FailureRate < 0 || rc.FailureRate > 1:
		return fmt.Errorf("failure rate must be between 0 and 1, got %g", rc.FailureRate)
	case rc.CheckInterval < 0 || rc.Workers < 0:
		return errors.New("check interval and workers must not be negative")
	case rc.RNG != RNGPCG && rc.RNG != RNGFrand:
		return fmt.Errorf("unknown RNG %d", int(rc.RNG))
	}
	if err := rc.Early.Validate(); err != nil {
		return fmt.Errorf("early: %w", err)
	}
	if err := rc.Late.Validate(); err != nil {
		return fmt.Errorf("late: %w", err)
	}
	return nil
}

func (rc RolloutContext) evalContext(ply int) EvalContext {
	if rc.LatePly > 0 && ply >= rc.LatePly {
		return rc.Late
	}
	return rc.Early
}

// RolloutAlternative is one position to roll out. With ChequerPlayed the
// board is the position after Cube.Move has played, still from that
// player's side, and the opponent rolls first.
type RolloutAlternative struct {
	Board         Board    `json:"board"`
	Cube          CubeInfo `json:"cube"`
	ChequerPlayed bool     `json:"chequerPlayed"`
}

// RolloutStats are the detailed counts of a rollout. Index 0 of the
// pairs is the alternative's player, index 1 the opponent.
type RolloutStats struct {
	Wins            [2][3]int `json:"wins"` // single, gammon, backgammon
	Doubles         [2]int    `json:"doubles"`
	Takes           [2]int    `json:"takes"`
	Passes          [2]int    `json:"passes"`
	CubeValues      [8]int    `json:"cubeValues"` // final cube by log2
	FirstHitSum     int       `json:"firstHitSum"`
	FirstHitGames   int       `json:"firstHitGames"`
	BearoffPipsLost [2]int    `json:"bearoffPipsLost"`
	Truncated       int       `json:"truncated"`
}

// FirstHitMean returns the average ply of the first hit in games with a
// hit.
func (s RolloutStats) FirstHitMean() float64 {
	if s.FirstHitGames == 0 {
		return 0
	}
	return float64(s.FirstHitSum) / float64(s.FirstHitGames)
}

func (s *RolloutStats) merge(o RolloutStats) {
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			s.Wins[i][j] += o.Wins[i][j]
		}
		s.Doubles[i] += o.Doubles[i]
		s.Takes[i] += o.Takes[i]
		s.Passes[i] += o.Passes[i]
		s.BearoffPipsLost[i] += o.BearoffPipsLost[i]
	}
	for i := range s.CubeValues {
		s.CubeValues[i] += o.CubeValues[i]
	}
	s.FirstHitSum += o.FirstHitSum
	s.FirstHitGames += o.FirstHitGames
	s.Truncated += o.Truncated
}

// RolloutResult is the outcome of rolling out one alternative, from the
// point of view of the alternative's player. Equities are normalised to
// the starting cube.
type RolloutResult struct {
	Probs         Probabilities           `json:"probs"`
	Equity        float32                 `json:"equity"`
	CubefulEquity float32                 `json:"cubefulEquity"`
	ProbsStdErr   [NumOutputs]float32     `json:"probsStdErr"`
	EquityStdErr  float32                 `json:"equityStdErr"`
	CubefulStdErr float32                 `json:"cubefulStdErr"`
	Games         int                     `json:"games"`
	Failures      int                     `json:"failures"`
	Stopped       bool                    `json:"stopped"`   // cancelled
	Converged     bool                    `json:"converged"` // ended by a stopping rule
	Rank          int                     `json:"rank"`
	JSD           float32                 `json:"jsd"`
	Stats         RolloutStats            `json:"stats"`
	stat          [NumOutputs + 2]welford
}

// RolloutProgress is reported for every alternative each CheckInterval
// trials.
type RolloutProgress struct {
	Trial       int           `json:"trial"`
	Trials      int           `json:"trials"`
	Alternative int           `json:"alternative"`
	Probs       Probabilities `json:"probs"`
	Mean        float32       `json:"mean"`
	StdErr      float32       `json:"stdErr"`
	Rank        int           `json:"rank"`
	JSD         float32       `json:"jsd"`
	Stopped     bool          `json:"stopped"`
}

// welford keeps a running mean and variance.
type welford struct {
	n    int
	mean float64
	m2   float64
}

func (w *welford) push(x float64) {
	w.n++
	d := x - w.mean
	w.mean += d / float64(w.n)
	w.m2 += d * (x - w.mean)
}

// stdErr returns the standard error of the mean.
func (w welford) stdErr() float64 {
	if w.n < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.n-1) / float64(w.n))
}

const (
	statEquity  = NumOutputs
	statCubeful = NumOutputs + 1
)

func (r *RolloutResult) add(o trialOutcome, e *Engine, ci CubeInfo) {
	var adj Probabilities
	for i := range adj {
		adj[i] = o.probs[i] - float32(o.luck[i])
		r.stat[i].push(float64(adj[i]))
	}
	r.stat[statEquity].push(float64(e.UtilityME(adj, ci)))

	cf := o.cubeful - o.cubefulLuck
	if ci.MatchTo > 0 {
		cf = float64(e.Mwc2Eq(float32(cf), ci))
	}
	r.stat[statCubeful].push(cf)

	r.Stats.merge(o.stats)
	r.Games++
}

func (r *RolloutResult) target(cubeful bool) welford {
	if cubeful {
		return r.stat[statCubeful]
	}
	return r.stat[statEquity]
}

// minSettledMean is the mean below which an output is too small for a
// relative standard error and is not checked.
const minSettledMean = 1e-4

// settled reports whether the standard error of every output, relative to
// its mean, is at most limit. The cubeful equity is only checked for
// cubeful rollouts.
func (r *RolloutResult) settled(cubeful bool, limit float64) bool {
	outputs := r.stat[:statCubeful]
	if cubeful {
		outputs = r.stat[:]
	}
	for _, w := range outputs {
		mean := math.Abs(w.mean)
		if mean < minSettledMean {
			continue
		}
		if w.stdErr()/mean > limit {
			return false
		}
	}
	return true
}

func (r *RolloutResult) finish() {
	for i := range r.Probs {
		r.Probs[i] = float32(r.stat[i].mean)
		r.ProbsStdErr[i] = float32(r.stat[i].stdErr())
	}
	r.Equity = float32(r.stat[statEquity].mean)
	r.EquityStdErr = float32(r.stat[statEquity].stdErr())
	r.CubefulEquity = float32(r.stat[statCubeful].mean)
	r.CubefulStdErr = float32(r.stat[statCubeful].stdErr())
}

// trialOutcome is one game played out, for the alternative's player.
type trialOutcome struct {
	probs       Probabilities
	luck        [NumOutputs]float64
	cubeful     float64 // money: points per starting cube; match: MWC
	cubefulLuck float64
	stats       RolloutStats
	err         error
}

// Rollout rolls out a single position.
func (e *Engine) Rollout(ctx context.Context, b Board, ci CubeInfo, rc RolloutContext, progress func(RolloutProgress)) (*RolloutResult, error) {
	res, err := e.RolloutGeneral(ctx, []RolloutAlternative{{Board: b, Cube: ci}}, rc, progress)
	if err != nil {
		return nil, err
	}
	return &res[0], nil
}

// RolloutGeneral plays rc.Trials games from every alternative. Trial i
// uses the same dice for every alternative. The progress callback is
// called from the calling goroutine. Cancelling ctx ends the rollout with
// the trials completed so far and Stopped set.
func (e *Engine) RolloutGeneral(ctx context.Context, alts []RolloutAlternative, rc RolloutContext, progress func(RolloutProgress)) ([]RolloutResult, error) {
	if len(alts) == 0 {
		return nil, errors.New("no alternatives to roll out")
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	for i, alt := range alts {
		if err := positionid.CheckPosition(alt.Board); err != nil {
			return nil, fmt.Errorf("alternative %d: %w", i, err)
		}
		if err := alt.Cube.Validate(); err != nil {
			return nil, fmt.Errorf("alternative %d: %w", i, err)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	seed := rc.Seed
	if seed == 0 {
		seed = randomSeed()
	}
	workers := rc.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	interval := rc.CheckInterval
	if interval == 0 {
		interval = 36
	}

	log := e.log.With().Str("op", "rollout").Uint64("seed", seed).Logger()
	log.Debug().Int("alternatives", len(alts)).Int("trials", rc.Trials).Bool("cubeful", rc.Cubeful).Msg("rollout started")
	start := time.Now()

	results := make([]RolloutResult, len(alts))
	active := make([]bool, len(alts))
	for i := range active {
		active[i] = true
	}

	stopped := false
	failures := 0
	trial := 0
	for trial < rc.Trials && !stopped {
		if ctx.Err() != nil {
			stopped = true
			break
		}
		end := min(trial+interval, rc.Trials)

		batch := make([][]trialOutcome, end-trial)
		g := new(errgroup.Group)
		g.SetLimit(workers)
		for t := trial; t < end; t++ {
			row := make([]trialOutcome, len(alts))
			batch[t-trial] = row
			for a := range alts {
				if !active[a] {
					continue
				}
				t, a := t, a
				g.Go(func() error {
					row[a] = e.runTrial(ctx, alts[a], rc, seed, t)
					return nil
				})
			}
		}
		_ = g.Wait()

		for _, row := range batch {
			for a := range alts {
				if !active[a] {
					continue
				}
				o := row[a]
				switch {
				case o.err == nil:
					results[a].add(o, e, alts[a].Cube)
				case errors.Is(o.err, context.Canceled) || errors.Is(o.err, context.DeadlineExceeded):
					stopped = true
				default:
					results[a].Failures++
					failures++
					log.Warn().Err(o.err).Int("alternative", a).Msg("rollout trial failed")
				}
			}
		}
		trial = end

		games := 0
		for i := range results {
			games += results[i].Games
		}
		if failures > 0 && float64(failures) > rc.FailureRate*float64(games+failures) {
			log.Error().Int("failures", failures).Int("games", games).Msg("rollout aborted")
			return nil, fmt.Errorf("%w: %d of %d trials failed", ErrRolloutFailureRate, failures, games+failures)
		}

		applyStoppingRules(results, active, rc)
		rankResults(results, rc.Cubeful)

		if progress != nil {
			for a := range results {
				w := results[a].target(rc.Cubeful)
				p := RolloutProgress{
					Trial:       trial,
					Trials:      rc.Trials,
					Alternative: a,
					Mean:        float32(w.mean),
					StdErr:      float32(w.stdErr()),
					Rank:        results[a].Rank,
					JSD:         results[a].JSD,
					Stopped:     !active[a] || stopped,
				}
				for i := range p.Probs {
					p.Probs[i] = float32(results[a].stat[i].mean)
				}
				progress(p)
			}
		}

		done := true
		for _, on := range active {
			done = done && !on
		}
		if done {
			break
		}
	}

	for i := range results {
		results[i].Stopped = stopped
		results[i].finish()
	}
	log.Info().Int("trials", trial).Int("failures", failures).Bool("stopped", stopped).
		Dur("elapsed", time.Since(start)).Msg("rollout finished")
	return results, nil
}

// applyStoppingRules retires alternatives whose result is settled: by
// relative standard error once MinGames are played, or by being clearly
// worse than the best alternative once MinJSDGames are played.
func applyStoppingRules(results []RolloutResult, active []bool, rc RolloutContext) {
	if rc.StopOnSTD {
		for a := range results {
			n := results[a].stat[statEquity].n
			if active[a] && n >= rc.MinGames && n > 1 && results[a].settled(rc.Cubeful, float64(rc.STDLimit)) {
				active[a] = false
				results[a].Converged = true
			}
		}
	}

	if !rc.StopOnJSD || len(results) < 2 {
		return
	}
	best := bestResult(results, rc.Cubeful)
	wb := results[best].target(rc.Cubeful)
	remaining := 0
	for a := range results {
		if a == best || !active[a] {
			continue
		}
		w := results[a].target(rc.Cubeful)
		if w.n >= rc.MinJSDGames && wb.n >= rc.MinJSDGames && jsd(wb, w) >= float64(rc.JSDLimit) {
			active[a] = false
			results[a].Converged = true
			continue
		}
		remaining++
	}
	if remaining == 0 && active[best] && wb.n >= rc.MinJSDGames {
		active[best] = false
		results[best].Converged = true
	}
}

func bestResult(results []RolloutResult, cubeful bool) int {
	best := 0
	for a := range results {
		if results[a].target(cubeful).mean > results[best].target(cubeful).mean {
			best = a
		}
	}
	return best
}

// jsd is the distance between two means in joint standard errors.
func jsd(best, w welford) float64 {
	se := math.Hypot(best.stdErr(), w.stdErr())
	if se == 0 {
		if best.mean > w.mean {
			return math.Inf(1)
		}
		return 0
	}
	return (best.mean - w.mean) / se
}

// rankResults numbers the alternatives from 1 (best) and stores their
// distance to the best.
func rankResults(results []RolloutResult, cubeful bool) {
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return results[order[i]].target(cubeful).mean > results[order[j]].target(cubeful).mean
	})
	wb := results[order[0]].target(cubeful)
	for rank, a := range order {
		results[a].Rank = rank + 1
		results[a].JSD = float32(jsd(wb, results[a].target(cubeful)))
	}
}

// runTrial plays trial number trial of alt.
func (e *Engine) runTrial(ctx context.Context, alt RolloutAlternative, rc RolloutContext, seed uint64, trial int) trialOutcome {
	ev := e.newEvaluator(ctx, rc.Early)
	if ev.rng != nil || rc.Late.Noise > 0 {
		ev.rng = rand.New(rand.NewSource(splitmix64(seed + uint64(trial) + 1)))
	}
	dice := newDice(rc.RNG, seed, trial, rc.RotateFirst)
	o, err := ev.rolloutTrial(alt, rc, dice)
	o.err = err
	return o
}

// rolloutTrial plays one game from alt with dice.
func (ev *evaluator) rolloutTrial(alt RolloutAlternative, rc RolloutContext, dice diceSource) (trialOutcome, error) {
	var o trialOutcome

	player := alt.Cube.Move
	orig := alt.Cube
	b, ci := alt.Board, alt.Cube
	if alt.ChequerPlayed {
		b, ci = SwapSides(b), ci.Flip()
	}
	side := func() int {
		if ci.Move == player {
			return 0
		}
		return 1
	}

	for ply := 0; ; ply++ {
		if ply >= maxRolloutPlies {
			return o, fmt.Errorf("%w: game not finished after %d plies", ErrEvaluationFailure, maxRolloutPlies)
		}
		if err := ev.interrupted(); err != nil {
			return o, err
		}
		ec := rc.evalContext(ply)
		pc := ev.Classify(b, ci.Variant)

		if pc == neuralnet.ClassOver {
			ev.gameOver(&o, evalOver(b, ci.Variant), ci, orig, player)
			return o, nil
		}

		if rc.Truncate > 0 && ply >= rc.Truncate {
			if err := ev.truncate(&o, b, ci, orig, player, ec, rc.Cubeful); err != nil {
				return o, err
			}
			o.stats.Truncated++
			return o, nil
		}

		if rc.Cubeful && ev.IsCubeAvailable(ci) {
			p, _, cd, err := ev.cubeDecision(b, ci, ec)
			if err != nil {
				return o, err
			}
			if cd.IsDouble() {
				o.stats.Doubles[side()]++
				if !cd.IsTake() {
					o.stats.Passes[1-side()]++
					ev.passed(&o, p, ci, orig, player)
					return o, nil
				}
				o.stats.Takes[1-side()]++
				ci.Cube *= 2
				ci.Owner = 1 - ci.Move
			}
		}

		d0, d1 := dice.roll()

		if rc.VarianceReduction {
			if err := ev.addLuck(&o, b, d0, d1, ci, orig, player, ec); err != nil {
				return o, err
			}
		}

		moves := GenerateMoves(b, d0, d1)
		nb := b
		if len(moves) > 0 {
			if len(moves) > 1 {
				if err := ev.findnSaveBestMoves(moves, ci, ec, ec.filters(), nil, 0); err != nil {
					return o, err
				}
			}
			m := moves[0]
			if o.stats.FirstHitGames == 0 && CountHits(b, m) > 0 {
				o.stats.FirstHitSum = ply + 1
				o.stats.FirstHitGames = 1
			}
			if allHome(b[1]) {
				rolled := d0 + d1
				if d0 == d1 {
					rolled *= 2
				}
				moved := PipCount(b)[1] - PipCount(m.Board)[1]
				o.stats.BearoffPipsLost[side()] += max(rolled-moved, 0)
			}
			nb = m.Board
		}
		b, ci = SwapSides(nb), ci.Flip()
	}
}

func allHome(side [25]uint8) bool {
	for i := 6; i < 25; i++ {
		if side[i] > 0 {
			return false
		}
	}
	return true
}

// forPlayer turns probabilities of the player on roll into the rolled
// out player's view.
func forPlayer(p Probabilities, ci CubeInfo, player int) Probabilities {
	if ci.Move == player {
		return p
	}
	return p.Invert()
}

// settle records a game won by winner for points times the cube.
func (ev *evaluator) settle(o *trialOutcome, ci, orig CubeInfo, player, winner, points int) {
	if orig.MatchTo == 0 {
		v := float64(points*ci.Cube) / float64(orig.Cube)
		if winner != player {
			v = -v
		}
		o.cubeful = v
	} else {
		o.cubeful = float64(ev.met.GetME(orig.score(), player, points*ci.Cube, winner))
	}
	o.stats.CubeValues[min(logCube(ci.Cube), len(o.stats.CubeValues)-1)]++
}

func (ev *evaluator) gameOver(o *trialOutcome, p Probabilities, ci, orig CubeInfo, player int) {
	o.probs = forPlayer(p, ci, player)

	winner, w := ci.Move, p
	if p[OutputWin] == 0 {
		winner, w = 1-ci.Move, p.Invert()
	}
	points := 1
	switch {
	case w[OutputWinBackgammon] > 0:
		points = 3
	case w[OutputWinGammon] > 0:
		points = 2
	}
	rel := 0
	if winner != player {
		rel = 1
	}
	o.stats.Wins[rel][points-1]++

	if ci.MatchTo == 0 && ci.Jacoby && ci.Owner == -1 {
		points = 1
	}
	ev.settle(o, ci, orig, player, winner, points)
}

// passed ends the game after the opponent refused a double of the player
// on roll. The cubeless probabilities p are kept for the cubeless
// results.
func (ev *evaluator) passed(o *trialOutcome, p Probabilities, ci, orig CubeInfo, player int) {
	o.probs = forPlayer(p, ci, player)
	rel := 0
	if ci.Move != player {
		rel = 1
	}
	o.stats.Wins[rel][0]++
	ev.settle(o, ci, orig, player, ci.Move, 1)
}

// truncate ends the game with an evaluation of the position.
func (ev *evaluator) truncate(o *trialOutcome, b Board, ci, orig CubeInfo, player int, ec EvalContext, cubeful bool) error {
	var (
		p  Probabilities
		cf float32
	)
	if cubeful {
		var cfs []float32
		var err error
		p, cfs, err = ev.evaluatePositionCubeful3(b, []CubeInfo{ci}, ci, ec, ec.Plies, false)
		if err != nil {
			return err
		}
		cf = cfs[0]
	} else {
		var err error
		p, err = ev.evaluatePositionCache(b, ci, ec, ec.Plies, ev.Classify(b, ci.Variant))
		if err != nil {
			return err
		}
		cf = ev.Utility(p, ci)
		if ci.MatchTo > 0 {
			cf = ev.Eq2Mwc(cf, ci)
		}
	}

	o.probs = forPlayer(p, ci, player)
	if orig.MatchTo == 0 {
		v := float64(cf) * float64(ci.Cube) / float64(orig.Cube)
		if ci.Move != player {
			v = -v
		}
		o.cubeful = v
	} else {
		if ci.Move != player {
			cf = 1 - cf
		}
		o.cubeful = float64(cf)
	}
	o.stats.CubeValues[min(logCube(ci.Cube), len(o.stats.CubeValues)-1)]++
	return nil
}

// addLuck accumulates the 0-ply luck of rolling d0-d1. It has zero mean,
// so subtracting it from the result keeps the estimate unbiased while
// removing most of the dice noise.
func (ev *evaluator) addLuck(o *trialOutcome, b Board, d0, d1 int, ci, orig CubeInfo, player int, ec EvalContext) error {
	d, err := ev.rollLuck(b, d0, d1, ci, ec)
	if err != nil {
		return err
	}

	// in the rolled out player's view
	if ci.Move != player {
		d = Probabilities{
			OutputWin:            -d[OutputWin],
			OutputWinGammon:      d[OutputLoseGammon],
			OutputWinBackgammon:  d[OutputLoseBackgammon],
			OutputLoseGammon:     d[OutputWinGammon],
			OutputLoseBackgammon: d[OutputWinBackgammon],
		}
	}
	for i := range d {
		o.luck[i] += float64(d[i])
	}

	// the same luck in cubeful units at the current cube
	cp := ci
	cp.Move = player
	eqLuck := float64(ev.UtilityME(d, cp) + 1)
	if orig.MatchTo == 0 {
		o.cubefulLuck += eqLuck * float64(ci.Cube) / float64(orig.Cube)
	} else {
		win := ev.met.GetME(cp.score(), player, ci.Cube, player)
		lose := ev.met.GetME(cp.score(), player, ci.Cube, 1-player)
		o.cubefulLuck += eqLuck * float64(win-lose) / 2
	}
	return nil
}
