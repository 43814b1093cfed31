// bgengine - command line front end of the backgammon analysis engine
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bgforge/gnubgcore/internal/logx"
	"github.com/bgforge/gnubgcore/pkg/engine"
	"github.com/bgforge/gnubgcore/pkg/match"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "eval":
		err = cmdEval(args)
	case "move":
		err = cmdMove(args)
	case "cube":
		err = cmdCube(args)
	case "rollout":
		err = cmdRollout(args)
	case "analyze":
		err = cmdAnalyze(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bgengine - Backgammon Analysis Engine

Usage: bgengine <command> [options]

Commands:
  eval      Evaluate a position
  move      Find the best moves for a dice roll
  cube      Analyze cube decisions
  rollout   Monte Carlo rollout
  analyze   Analyze a match file (Jellyfish .mat format)

Use "bgengine <command> -h" for command-specific help.

Common options:
  -config   YAML file with data file paths and evaluation defaults
  -level    Evaluation level (beginner ... grandmaster, 0ply ... 3ply)
  -match    Match length (0 for money), with -score and -crawford
  -cube     Cube value, with -owner (-1 centered, 0 or 1)

Position ID Format:
  The position is specified using gnubg's position ID format.
  Example: "4HPwATDgc/ABMA:cIkqAAAAAAAA" (position:match)
  Only the position part (before :) is required.`)
}

// options are the flags shared by every command.
type options struct {
	config   string
	position string
	level    string
	ply      int
	cubeless bool
	player   int
	match    int
	score    string
	crawford bool
	jacoby   bool
	cube     int
	owner    int
	variant  string
	logLevel string

	record bool // the command reads a match file instead of a position
}

func addOptions(fs *flag.FlagSet) *options {
	o := &options{}
	fs.StringVar(&o.config, "config", "", "YAML configuration file")
	fs.StringVar(&o.position, "position", "", "Position ID (gnubg format)")
	fs.StringVar(&o.position, "p", "", "Position ID (short form)")
	fs.StringVar(&o.level, "level", "", "Evaluation level")
	fs.IntVar(&o.ply, "ply", -1, "Evaluation depth, overrides the level")
	fs.BoolVar(&o.cubeless, "cubeless", false, "Ignore the cube when ranking moves")
	fs.IntVar(&o.player, "player", 0, "Player on roll (0 or 1)")
	fs.IntVar(&o.match, "match", 0, "Match length, 0 for money play")
	fs.StringVar(&o.score, "score", "0-0", "Match score, player 0 first (e.g. 2-4)")
	fs.BoolVar(&o.crawford, "crawford", false, "Crawford game")
	fs.BoolVar(&o.jacoby, "jacoby", false, "Jacoby rule in money play")
	fs.IntVar(&o.cube, "cube", 1, "Cube value")
	fs.IntVar(&o.owner, "owner", -1, "Cube owner (-1 centered)")
	fs.StringVar(&o.variant, "variant", "standard", "Variant (standard, nackgammon, hypergammon1-3)")
	fs.StringVar(&o.logLevel, "log-level", "warn", "Log level")
	return o
}

// session is everything a command needs to run an analysis.
type session struct {
	engine  *engine.Engine
	board   engine.Board
	cube    engine.CubeInfo
	eval    engine.EvalContext
	rollout engine.RolloutContext
	log     zerolog.Logger
}

func (o *options) session() (*session, error) {
	if o.position == "" && !o.record {
		return nil, fmt.Errorf("position required")
	}
	log, err := logx.NewLogger(os.Stderr, o.logLevel)
	if err != nil {
		return nil, err
	}

	cfg := engine.DefaultConfig()
	if o.config != "" {
		if cfg, err = engine.LoadConfig(o.config); err != nil {
			return nil, err
		}
	}
	ec, err := cfg.EvalContext()
	if err != nil {
		return nil, err
	}
	if o.level != "" {
		if ec, err = engine.LevelContext(o.level); err != nil {
			return nil, err
		}
	}
	if o.ply >= 0 {
		ec.Plies = o.ply
	}
	if o.cubeless {
		ec.Cubeful = false
	}
	if err := ec.Validate(); err != nil {
		return nil, err
	}

	var (
		b  engine.Board
		ci engine.CubeInfo
	)
	if !o.record {
		if b, err = parsePosition(o.position); err != nil {
			return nil, err
		}
		if ci, err = o.cubeInfo(); err != nil {
			return nil, err
		}
	}

	e, err := engine.NewEngine(cfg.EngineOptions(&log))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if !e.HasWeights() {
		log.Warn().Msg("no neural net weights loaded, using the heuristic evaluator")
	}
	return &session{engine: e, board: b, cube: ci, eval: ec, rollout: cfg.Rollout, log: log}, nil
}

func (o *options) cubeInfo() (engine.CubeInfo, error) {
	v, err := engine.ParseVariant(o.variant)
	if err != nil {
		return engine.CubeInfo{}, err
	}
	var score [2]int
	if o.match > 0 {
		if score, err = parseScore(o.score); err != nil {
			return engine.CubeInfo{}, err
		}
	}
	return engine.NewCubeInfo(o.cube, o.owner, o.player, o.match, score, o.crawford, o.jacoby, false, v)
}

func parsePosition(posStr string) (engine.Board, error) {
	// Handle gnubg format "positionID:matchID" - we only need the position part
	if idx := strings.Index(posStr, ":"); idx >= 0 {
		posStr = posStr[:idx]
	}

	b, err := engine.BoardFromPositionID(posStr)
	if err != nil {
		return engine.Board{}, fmt.Errorf("invalid position ID: %w", err)
	}
	return b, nil
}

func parsePair(s, what string) ([2]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		parts = strings.Split(s, "-")
	}
	if len(parts) != 2 {
		return [2]int{}, fmt.Errorf("%s should be in format '3,1' or '3-1'", what)
	}

	a, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return [2]int{}, fmt.Errorf("%s values must be numbers", what)
	}
	return [2]int{a, b}, nil
}

func parseDice(diceStr string) ([2]int, error) {
	d, err := parsePair(diceStr, "dice")
	if err != nil {
		return d, err
	}
	if d[0] < 1 || d[0] > 6 || d[1] < 1 || d[1] > 6 {
		return [2]int{}, fmt.Errorf("dice values must be 1-6")
	}
	return d, nil
}

func parseScore(s string) ([2]int, error) {
	return parsePair(s, "score")
}

func cmdEval(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	o := addOptions(fs)
	fs.Parse(args)

	s, err := o.session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := s.engine.Evaluate(ctx, s.board, s.cube, s.eval)
	if err != nil {
		return fmt.Errorf("evaluating position: %w", err)
	}
	eq, err := s.engine.EvaluateCubeful(ctx, s.board, s.cube, s.eval)
	if err != nil {
		return fmt.Errorf("evaluating position: %w", err)
	}

	out := newPrinter(os.Stdout)
	out.header("%s, %s, %d-ply", engine.PositionID(s.board), s.engine.Classify(s.board, s.cube.Variant), s.eval.Plies)
	out.evaluation(engine.NewEvaluation(p, s.engine.Utility(p, s.cube)))
	fmt.Fprintf(out, "  Cubeful: %s\n", out.equity(eq[engine.EquityOptimal]))
	pips := engine.PipCount(s.board)
	fmt.Fprintf(out, "  Pips:    %d - %d\n", pips[1], pips[0])
	return nil
}

func cmdMove(args []string) error {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	o := addOptions(fs)
	diceFlag := fs.String("dice", "", "Dice roll (e.g., 3,1 or 3-1)")
	diceShort := fs.String("d", "", "Dice roll (short form)")
	numMoves := fs.Int("n", 5, "Number of moves to show")
	fs.Parse(args)

	dice := *diceFlag
	if dice == "" {
		dice = *diceShort
	}
	if dice == "" {
		return fmt.Errorf("dice required\nUsage: bgengine move -position <positionID> -dice <roll>")
	}
	roll, err := parseDice(dice)
	if err != nil {
		return err
	}
	s, err := o.session()
	if err != nil {
		return err
	}

	opts := engine.DefaultMoveSearchOptions()
	opts.MaxMoves = *numMoves
	moves, _, err := s.engine.FindNSaveBestMoves(context.Background(), s.board, roll[0], roll[1], s.cube, s.eval, opts)
	if err != nil {
		return fmt.Errorf("analyzing moves: %w", err)
	}

	out := newPrinter(os.Stdout)
	if len(moves) == 0 {
		fmt.Fprintln(out, "No legal moves (forced to pass)")
		return nil
	}

	out.header("Best moves for roll %d-%d:", roll[0], roll[1])
	for i, m := range moves {
		out.move(i, engine.FormatMove(s.board, m), m, moves[0].Score, engine.IsReferencePlay(s.board, roll[0], roll[1], m))
	}
	return nil
}

func cmdCube(args []string) error {
	fs := flag.NewFlagSet("cube", flag.ExitOnError)
	o := addOptions(fs)
	fs.Parse(args)

	s, err := o.session()
	if err != nil {
		return err
	}

	analysis, err := s.engine.AnalyzeCube(context.Background(), s.board, s.cube, s.eval)
	if err != nil {
		return fmt.Errorf("analyzing cube: %w", err)
	}

	out := newPrinter(os.Stdout)
	out.header("Cube Decision: %s", analysis.Recommendation)
	out.evaluation(engine.NewEvaluation(analysis.Probs, s.engine.Utility(analysis.Probs, s.cube)))
	best := analysis.Equities[engine.EquityOptimal]
	fmt.Fprintf(out, "  No double:    %s\n", out.cubeEquity(analysis.Equities[engine.EquityNoDouble], best))
	fmt.Fprintf(out, "  Double/Take:  %s\n", out.cubeEquity(analysis.Equities[engine.EquityDoubleTake], best))
	fmt.Fprintf(out, "  Double/Pass:  %s\n", out.cubeEquity(analysis.Equities[engine.EquityDoublePass], best))
	return nil
}

func cmdRollout(args []string) error {
	fs := flag.NewFlagSet("rollout", flag.ExitOnError)
	o := addOptions(fs)
	trials := fs.Int("trials", 0, "Number of games to simulate (0 = configured)")
	workers := fs.Int("workers", 0, "Number of worker goroutines (0 = auto)")
	truncate := fs.Int("truncate", -1, "Truncate rollout at N plies (0 = play to end)")
	seed := fs.Uint64("seed", 0, "Random seed (0 = random)")
	rng := fs.String("rng", "", "Dice generator (pcg or frand)")
	quiet := fs.Bool("q", false, "Do not show progress")
	fs.Parse(args)

	s, err := o.session()
	if err != nil {
		return err
	}

	rc := s.rollout
	rc.Early, rc.Late = s.eval, s.eval
	if *trials > 0 {
		rc.Trials = *trials
	}
	if *truncate >= 0 {
		rc.Truncate = *truncate
	}
	if *seed != 0 {
		rc.Seed = *seed
	}
	if *rng != "" {
		if rc.RNG, err = engine.ParseRNG(*rng); err != nil {
			return err
		}
	}
	rc.Workers = *workers
	if err := rc.Validate(); err != nil {
		return err
	}

	// Ctrl-C stops the rollout and shows what was played so far
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := newPrinter(os.Stdout)
	var progress func(engine.RolloutProgress)
	if !*quiet {
		progress = func(p engine.RolloutProgress) {
			fmt.Fprintf(os.Stderr, "\r  %d/%d games, equity %+.3f ± %.3f", p.Trial, p.Trials, p.Mean, p.StdErr)
		}
	}

	start := time.Now()
	result, err := s.engine.Rollout(ctx, s.board, s.cube, rc, progress)
	elapsed := time.Since(start)
	if progress != nil {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("rollout: %w", err)
	}

	status := ""
	if result.Stopped {
		status = ", stopped"
	} else if result.Converged {
		status = ", converged"
	}
	out.header("Rollout (%d trials, %.1fs%s):", result.Games, elapsed.Seconds(), status)
	out.evaluation(engine.NewEvaluation(result.Probs, result.Equity))
	fmt.Fprintf(out, "  Cubeless: %s ± %.3f\n", out.equity(result.Equity), result.EquityStdErr)
	if rc.Cubeful {
		fmt.Fprintf(out, "  Cubeful:  %s ± %.3f\n", out.equity(result.CubefulEquity), result.CubefulStdErr)
	}
	if result.Failures > 0 {
		fmt.Fprintf(out, "  Failed trials: %d\n", result.Failures)
	}
	if fh := result.Stats.FirstHitMean(); fh > 0 {
		fmt.Fprintf(out, "  First hit on average at move %.1f\n", fh)
	}
	return nil
}

func cmdAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	o := addOptions(fs)
	file := fs.String("f", "", "Match file")
	noLuck := fs.Bool("no-luck", false, "Skip luck analysis")
	fs.Parse(args)
	o.record = true

	if *file == "" {
		return fmt.Errorf("match file required\nUsage: bgengine analyze -f <match.mat>")
	}
	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := match.ImportMAT(f)
	if err != nil {
		return err
	}
	decisions, err := m.Decisions()
	if err != nil {
		return err
	}
	s, err := o.session()
	if err != nil {
		return err
	}

	opts := engine.DefaultAnalysisOptions()
	opts.Eval = s.eval
	opts.Luck = !*noLuck
	s.log.Info().Str("file", filepath.Base(*file)).Int("games", len(m.Games)).Int("decisions", len(decisions)).Msg("analyzing match")

	res, err := s.engine.AnalyzeGame(context.Background(), decisions, opts)
	if err != nil {
		return fmt.Errorf("analyzing match: %w", err)
	}

	out := newPrinter(os.Stdout)
	length := "money session"
	if m.MatchLength > 0 {
		length = fmt.Sprintf("%d point match", m.MatchLength)
	}
	out.header("%s vs %s, %s, %d games", m.Players[0], m.Players[1], length, res.Games)
	for p := 0; p < 2; p++ {
		out.player(m.Players[p], &res.Stats, p, !*noLuck)
	}
	for _, e := range res.MoveErrors {
		out.moveError(m.Players[e.Player], e)
	}
	for _, e := range res.CubeErrors {
		out.cubeError(m.Players[e.Player], e)
	}
	return nil
}
