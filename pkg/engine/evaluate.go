package engine

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/bgforge/gnubgcore/internal/bearoff"
	"github.com/bgforge/gnubgcore/internal/met"
	"github.com/bgforge/gnubgcore/internal/neuralnet"
	"github.com/bgforge/gnubgcore/internal/positionid"
)

var (
	// ErrIllegalPosition is returned for boards breaking a structural
	// invariant.
	ErrIllegalPosition = positionid.ErrIllegalPosition

	// ErrEvaluationFailure is returned when no evaluator can produce a
	// result for a position.
	ErrEvaluationFailure = errors.New("evaluation failure")
)

// Cube efficiency per class.
const (
	oneSidedCubeX = 0.6
	twoSidedCubeX = 0.6
	hyperCubeX    = 0.6
	raceFactorX   = 0.00125
	raceCoeffX    = 0.55
	raceMaxX      = 0.7
	raceMinX      = 0.6
	contactX      = 0.68
	crashedX      = 0.68
)

// Engine evaluates positions. It is safe for concurrent use; the loaded
// networks, databases and match equity table are read-only.
type Engine struct {
	weights   *neuralnet.Weights
	bearoff1  *bearoff.Database
	bearoffTS *bearoff.Database
	hyper     [3]*bearoff.Database
	met       *met.Table

	cache      *EvalCache
	pruneCache *EvalCache

	log    zerolog.Logger
	inputs sync.Pool
}

// EngineOptions configures the engine. Every file is optional: without
// weights a built-in heuristic evaluator is used and without a match
// equity table the default table is generated.
type EngineOptions struct {
	WeightsFile      string    // gnubg weights, binary or text, optionally .zst
	BearoffFile      string    // one-sided bearoff database
	BearoffTSFile    string    // two-sided bearoff database
	HypergammonFiles [3]string // hypergammon databases for 1 to 3 chequers
	METFile          string    // match equity table in XML
	CacheSize        int       // evaluation cache entries (0 = default, negative = disabled)

	// Logger receives load events and fallbacks. Nil discards them.
	Logger *zerolog.Logger
}

// NewEngine loads the data files named in opts.
func NewEngine(opts EngineOptions) (*Engine, error) {
	e := &Engine{
		log: zerolog.Nop(),
		inputs: sync.Pool{
			New: func() any {
				b := make([]float32, neuralnet.NumContactInputs)
				return &b
			},
		},
	}
	if opts.Logger != nil {
		e.log = opts.Logger.With().Str("component", "engine").Logger()
	}

	if opts.WeightsFile != "" {
		w, err := neuralnet.LoadWeights(opts.WeightsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load weights: %w", err)
		}
		e.weights = w
		e.log.Info().Str("file", opts.WeightsFile).Int("contactHidden", w.Contact.Hidden).Msg("weights loaded")
	} else {
		e.log.Warn().Msg("no weights file, using heuristic evaluator")
	}

	if opts.BearoffFile != "" {
		db, err := bearoff.Load(opts.BearoffFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load one-sided bearoff database: %w", err)
		}
		if db.Type != bearoff.TypeOneSided {
			return nil, fmt.Errorf("%s: expected one-sided database, got %s", opts.BearoffFile, db.Type)
		}
		e.bearoff1 = db
		e.log.Info().Str("file", opts.BearoffFile).Int("points", db.NPoints).Int("chequers", db.NChequers).Msg("one-sided bearoff database loaded")
	}

	if opts.BearoffTSFile != "" {
		db, err := bearoff.Load(opts.BearoffTSFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load two-sided bearoff database: %w", err)
		}
		if db.Type != bearoff.TypeTwoSided {
			return nil, fmt.Errorf("%s: expected two-sided database, got %s", opts.BearoffTSFile, db.Type)
		}
		e.bearoffTS = db
		e.log.Info().Str("file", opts.BearoffTSFile).Int("points", db.NPoints).Int("chequers", db.NChequers).Msg("two-sided bearoff database loaded")
	}

	for i, name := range opts.HypergammonFiles {
		if name == "" {
			continue
		}
		db, err := bearoff.Load(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load hypergammon database: %w", err)
		}
		if db.Type != bearoff.TypeHypergammon {
			return nil, fmt.Errorf("%s: expected hypergammon database, got %s", name, db.Type)
		}
		e.hyper[i] = db
	}

	if opts.METFile != "" {
		table, err := met.LoadXML(opts.METFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MET: %w", err)
		}
		e.met = table
		e.log.Info().Str("file", opts.METFile).Str("name", table.Name).Msg("match equity table loaded")
	} else {
		e.met = met.Default()
	}

	cacheSize := opts.CacheSize
	if cacheSize == 0 {
		cacheSize = DefaultCacheSize
	}
	if cacheSize > 0 {
		e.cache = NewEvalCache(cacheSize)
		e.pruneCache = NewEvalCache(cacheSize / 4)
	}
	return e, nil
}

// Cache returns the evaluation cache, nil when disabled.
func (e *Engine) Cache() *EvalCache {
	return e.cache
}

// MET returns the match equity table in use.
func (e *Engine) MET() *met.Table {
	return e.met
}

// HasWeights reports whether neural network weights are loaded.
func (e *Engine) HasWeights() bool {
	return e.weights != nil
}

// Classify returns the evaluation class of b, taking the loaded bearoff
// databases into account.
func (e *Engine) Classify(b Board, v Variant) Class {
	c := neuralnet.Classify(b, v)
	switch c {
	case neuralnet.ClassBearoffTS:
		if e.bearoffTS != nil && e.bearoffTS.Covers(b) {
			return c
		}
		if e.bearoff1 != nil && e.bearoff1.Covers(b) {
			return neuralnet.ClassBearoff1
		}
		return neuralnet.ClassRace
	case neuralnet.ClassBearoff1:
		if e.bearoff1 != nil && e.bearoff1.Covers(b) {
			return c
		}
		return neuralnet.ClassRace
	}
	return c
}

// evaluator carries the state of one evaluation request through the
// search. It is not shared between goroutines.
type evaluator struct {
	*Engine
	ctx context.Context
	rng *rand.Rand // noise and dice; nil when not needed
}

func (e *Engine) newEvaluator(ctx context.Context, ec EvalContext) *evaluator {
	if ctx == nil {
		ctx = context.Background()
	}
	ev := &evaluator{Engine: e, ctx: ctx}
	if ec.Noise > 0 && !ec.Deterministic {
		ev.rng = rand.New(rand.NewSource(randomSeed()))
	}
	return ev
}

// fork returns an evaluator for another goroutine with its own random
// source derived from this one.
func (ev *evaluator) fork() *evaluator {
	child := &evaluator{Engine: ev.Engine, ctx: ev.ctx}
	if ev.rng != nil {
		child.rng = rand.New(rand.NewSource(ev.rng.Uint64()))
	}
	return child
}

func (ev *evaluator) interrupted() error {
	return ev.ctx.Err()
}

func checkRequest(b Board, ci CubeInfo, ec EvalContext) error {
	if err := positionid.CheckPosition(b); err != nil {
		return err
	}
	if err := ci.Validate(); err != nil {
		return err
	}
	return ec.Validate()
}

// Evaluate returns the cubeless outcome probabilities of b for the player
// on roll, searching ec.Plies deep.
func (e *Engine) Evaluate(ctx context.Context, b Board, ci CubeInfo, ec EvalContext) (Probabilities, error) {
	if err := checkRequest(b, ci, ec); err != nil {
		return Probabilities{}, err
	}
	ev := e.newEvaluator(ctx, ec)
	return ev.evaluatePositionCache(b, ci, ec, ec.Plies, e.Classify(b, ci.Variant))
}

// evaluatePositionCache looks the evaluation up in the cache before
// evaluating. Noisy evaluations are never cached.
func (ev *evaluator) evaluatePositionCache(b Board, ci CubeInfo, ec EvalContext, nPlies int, pc Class) (Probabilities, error) {
	if ev.cache == nil || ec.Noise != 0 {
		return ev.evaluatePositionFull(b, ci, ec, nPlies, pc)
	}

	key := positionid.PositionKey(b)
	ctxKey := evalKey(ec, nPlies, ci, false)
	if out, ok := ev.cache.Lookup(key, ctxKey); ok {
		var p Probabilities
		copy(p[:], out[:NumOutputs])
		return p, nil
	}

	p, err := ev.evaluatePositionFull(b, ci, ec, nPlies, pc)
	if err != nil {
		return p, err
	}
	var out [NumOutputs + 1]float32
	copy(out[:], p[:])
	ev.cache.Add(key, ctxKey, out)
	return p, nil
}

// evaluatePositionFull evaluates statically at the leaves and averages
// over the 21 rolls at internal nodes.
func (ev *evaluator) evaluatePositionFull(b Board, ci CubeInfo, ec EvalContext, nPlies int, pc Class) (Probabilities, error) {
	if pc > neuralnet.ClassPerfect && nPlies > 0 {
		return ev.evaluatePlied(b, ci, ec, nPlies)
	}

	p, err := ev.evalStatic(b, pc, ci.Variant)
	if err != nil {
		return p, err
	}

	if ec.Noise > 0 && pc != neuralnet.ClassOver {
		for i := range p {
			p[i] += ev.noise(ec, b, i)
			p[i] = min(max(p[i], 0), 1)
		}
	}

	if pc > neuralnet.ClassGood || ec.Noise > 0 {
		ev.sanityCheck(b, &p)
	}
	return p, nil
}

// evalStatic runs the class evaluator.
func (e *Engine) evalStatic(b Board, pc Class, v Variant) (Probabilities, error) {
	switch pc {
	case neuralnet.ClassOver:
		return evalOver(b, v), nil

	case neuralnet.ClassHypergammon1, neuralnet.ClassHypergammon2, neuralnet.ClassHypergammon3:
		db := e.hyper[pc-neuralnet.ClassHypergammon1]
		if db == nil {
			return Probabilities{}, fmt.Errorf("%w: no %s database loaded", ErrEvaluationFailure, pc)
		}
		return e.evalBearoff(db, b)

	case neuralnet.ClassBearoffTS:
		return e.evalBearoff(e.bearoffTS, b)

	case neuralnet.ClassBearoff1:
		return e.evalBearoff(e.bearoff1, b)

	case neuralnet.ClassRace:
		p, err := e.evalNet(b, pc)
		if err != nil {
			return p, err
		}
		e.evalRaceBG(b, &p, v)
		return p, nil

	case neuralnet.ClassCrashed, neuralnet.ClassContact:
		return e.evalNet(b, pc)
	}
	return Probabilities{}, fmt.Errorf("%w: unknown position class %d", ErrEvaluationFailure, int(pc))
}

func (e *Engine) evalBearoff(db *bearoff.Database, b Board) (Probabilities, error) {
	if db == nil {
		return Probabilities{}, fmt.Errorf("%w: bearoff database not loaded", ErrEvaluationFailure)
	}
	out, err := db.Evaluate(b)
	if err != nil {
		return Probabilities{}, fmt.Errorf("%w: %w", ErrEvaluationFailure, err)
	}
	return Probabilities(out), nil
}

// evalNet runs the class network, or the heuristic evaluator when no
// weights are loaded.
func (e *Engine) evalNet(b Board, pc Class) (Probabilities, error) {
	if e.weights == nil {
		return heuristicEvaluate(b, pc), nil
	}
	net, _ := e.weights.ForClass(pc)
	if net == nil {
		return Probabilities{}, fmt.Errorf("%w: no network for class %s", ErrEvaluationFailure, pc)
	}
	return e.runNet(net, b, pc), nil
}

// runNet encodes b for class pc and evaluates net on it.
func (e *Engine) runNet(net *neuralnet.Net, b Board, pc Class) Probabilities {
	buf := e.inputs.Get().(*[]float32)
	defer e.inputs.Put(buf)

	in := (*buf)[:net.Inputs]
	neuralnet.EncodeInto(b, pc, in)

	var p Probabilities
	net.EvaluateFast(in, p[:])
	return p
}

// evalPrune evaluates b with the pruning network of its class, on the 200
// base inputs.
func (e *Engine) evalPrune(b Board, pc Class, v Variant) Probabilities {
	if e.weights == nil {
		p := heuristicEvaluate(b, pc)
		if pc == neuralnet.ClassRace {
			e.evalRaceBG(b, &p, v)
		}
		return p
	}
	_, net := e.weights.ForClass(pc)
	if net == nil {
		p, err := e.evalNet(b, pc)
		if err != nil {
			p = heuristicEvaluate(b, pc)
		}
		return p
	}
	buf := e.inputs.Get().(*[]float32)
	defer e.inputs.Put(buf)

	in := (*buf)[:neuralnet.NumBaseInputs]
	neuralnet.BaseInputs(b, in)

	var p Probabilities
	net.EvaluateFast(in, p[:])
	if pc == neuralnet.ClassRace {
		e.evalRaceBG(b, &p, v)
	}
	return p
}

// evalOver scores a finished game from the point of view of side 1.
func evalOver(b Board, v Variant) Probabilities {
	n := v.Chequers()
	var p Probabilities

	if positionid.Chequers(b, 0) == 0 {
		// the opponent has borne off
		if positionid.Chequers(b, 1) == n {
			p[OutputLoseGammon] = 1
			for i := 18; i < 25; i++ {
				if b[1][i] > 0 {
					p[OutputLoseBackgammon] = 1
					break
				}
			}
		}
		return p
	}

	if positionid.Chequers(b, 1) == 0 {
		p[OutputWin] = 1
		if positionid.Chequers(b, 0) == n {
			p[OutputWinGammon] = 1
			for i := 18; i < 25; i++ {
				if b[0][i] > 0 {
					p[OutputWinBackgammon] = 1
					break
				}
			}
		}
	}
	return p
}

// evalRaceBG overrides the race network's backgammon outputs.
func (e *Engine) evalRaceBG(b Board, p *Probabilities, v Variant) {
	totMen0, totMen1 := 0, 0
	for i := 0; i < 24; i++ {
		totMen0 += int(b[0][i])
		totMen1 += int(b[1][i])
	}

	homeOccupied := func(side [25]uint8) bool {
		for i := 18; i < 24; i++ {
			if side[i] > 0 {
				return true
			}
		}
		return false
	}

	bg := totMen0 == positionid.NumChequers && homeOccupied(b[0])
	obg := totMen1 == positionid.NumChequers && homeOccupied(b[1])
	if !bg && !obg {
		return
	}

	side := 0
	if bg {
		side = 1
	}
	pr := e.raceBGprob(b, side, v)

	switch {
	case pr > 0 && side == 1:
		p[OutputWinBackgammon] = pr
		p[OutputWinGammon] = max(p[OutputWinGammon], pr)
	case pr > 0:
		p[OutputLoseBackgammon] = pr
		p[OutputLoseGammon] = max(p[OutputLoseGammon], pr)
	case side == 1:
		p[OutputWinBackgammon] = 0
	default:
		p[OutputLoseBackgammon] = 0
	}
}

// raceBGprob returns the chance that side wins a backgammon, estimated by
// moving the opponent's stragglers into a bearoff and looking the race up
// in the bearoff databases. Zero when no database covers it.
func (e *Engine) raceBGprob(b Board, side int, v Variant) float32 {
	totMenHome := 0
	for i := 0; i < 6; i++ {
		totMenHome += int(b[side][i])
	}
	totPipsOp := 0
	for i := 22; i >= 18; i-- {
		totPipsOp += int(b[1-side][i]) * (i - 17)
	}
	if (totMenHome+3)/4-side > (totPipsOp+2)/3 {
		return 0
	}

	var dummy Board
	dummy[side] = b[side]
	for i := 0; i < 6; i++ {
		dummy[1-side][i] = b[1-side][18+i]
	}

	var (
		out [5]float32
		err error
	)
	switch {
	case e.bearoffTS != nil && e.bearoffTS.Covers(dummy):
		out, err = e.bearoffTS.Evaluate(dummy)
	case e.bearoff1 != nil && e.bearoff1.Covers(dummy):
		out, err = e.bearoff1.Evaluate(dummy)
	default:
		return 0
	}
	if err != nil {
		e.log.Warn().Err(err).Msg("race backgammon lookup failed")
		return 0
	}

	p := 1 - out[OutputWin]
	if side == 1 {
		p = out[OutputWin]
	}
	return min(p, 1)
}

// sanityCheck applies the outcomes that are certain or impossible from
// the board and keeps the gammon outputs consistent with the win output.
func (e *Engine) sanityCheck(b Board, p *Probabilities) {
	var ac, back, cross, gammonCross, maxTurns [2]int
	gammonCross = [2]int{1, 1}

	for j := 0; j < 2; j++ {
		for q := 0; q < 4; q++ {
			n := 0
			for i := 6 * q; i < 6*q+6; i++ {
				if b[j][i] > 0 {
					back[j] = i
					n += int(b[j][i])
				}
			}
			ac[j] += n
			cross[j] += (q + 1) * n
			gammonCross[j] += q * n
		}
		if bar := int(b[j][24]); bar > 0 {
			back[j] = 24
			ac[j] += bar
			cross[j] += 5 * bar
			gammonCross[j] += 4 * bar
		}
	}

	contact := back[0]+back[1] >= 24

	if !contact {
		for i := 0; i < 2; i++ {
			maxTurns[i] = cross[i] * 2
			if back[i] < 6 && e.bearoff1 != nil {
				if n := e.bearoff1.MaxTurns(b[i][:6]); n >= 0 {
					maxTurns[i] = n
				}
			}
		}
		if maxTurns[1] == 0 {
			maxTurns[1] = 1
		}
	}

	if !contact && cross[0] > 4*(maxTurns[1]-1) {
		// certain win
		p[OutputWin] = 1
	}
	if ac[0] < positionid.NumChequers {
		p[OutputWinGammon] = 0
		p[OutputWinBackgammon] = 0
	} else if !contact {
		if cross[1] > 8*gammonCross[0] {
			p[OutputWinGammon] = 0
		} else if gammonCross[0] > 4*(maxTurns[1]-1) {
			p[OutputWinGammon] = 1
		}
		if back[0] < 18 {
			p[OutputWinBackgammon] = 0
		}
	}

	if !contact && cross[1] > 4*maxTurns[0] {
		// certain loss
		p[OutputWin] = 0
	}
	if ac[1] < positionid.NumChequers {
		p[OutputLoseGammon] = 0
		p[OutputLoseBackgammon] = 0
	} else if !contact {
		if cross[0] > 8*gammonCross[1]-4 {
			p[OutputLoseGammon] = 0
		} else if gammonCross[1] > 4*maxTurns[0] {
			p[OutputLoseGammon] = 1
		}
		if back[1] < 18 {
			p[OutputLoseBackgammon] = 0
		}
	}

	p[OutputWinGammon] = min(p[OutputWinGammon], p[OutputWin])
	p[OutputLoseGammon] = min(p[OutputLoseGammon], 1-p[OutputWin])
	p[OutputWinBackgammon] = min(p[OutputWinBackgammon], p[OutputWinGammon])
	p[OutputLoseBackgammon] = min(p[OutputLoseBackgammon], p[OutputLoseGammon])

	if contact {
		for i := OutputWinGammon; i < NumOutputs; i++ {
			if p[i] < 1e-4 {
				p[i] = 0
			}
		}
	}
}

// noise returns the perturbation of output i. Deterministic noise is a
// function of the board so that repeated evaluations agree.
func (ev *evaluator) noise(ec EvalContext, b Board, i int) float32 {
	var r float32
	if ec.Deterministic || ev.rng == nil {
		var raw [50]byte
		for k := 0; k < 25; k++ {
			raw[2*k] = b[0][k]
			raw[2*k+1] = b[1][k]
		}
		raw[0] += byte(i)
		sum := md5.Sum(raw[:])

		// the byte sum is close to normally distributed
		for _, c := range sum {
			r += float32(c)
		}
		r = (r - 2040) / 295.6
	} else {
		r = float32(ev.rng.NormFloat64())
	}

	r *= ec.Noise
	switch i {
	case OutputWinGammon, OutputLoseGammon:
		r *= 0.25
	case OutputWinBackgammon, OutputLoseBackgammon:
		r *= 0.01
	}
	return r
}

// evalEfficiency returns the cube efficiency used when converting
// cubeless to cubeful equity.
func evalEfficiency(b Board, pc Class) float32 {
	switch pc {
	case neuralnet.ClassOver:
		return 0
	case neuralnet.ClassHypergammon1, neuralnet.ClassHypergammon2, neuralnet.ClassHypergammon3:
		return hyperCubeX
	case neuralnet.ClassBearoff1:
		return oneSidedCubeX
	case neuralnet.ClassBearoffTS:
		return twoSidedCubeX
	case neuralnet.ClassRace:
		pips := positionid.PipCount(b)
		eff := float32(pips[1])*raceFactorX + raceCoeffX
		return min(max(eff, raceMinX), raceMaxX)
	case neuralnet.ClassCrashed:
		return crashedX
	}
	return contactX
}

// sigmoid is the logistic function.
func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
