// Command bgserver runs the backgammon engine REST API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bgforge/gnubgcore/internal/logx"
	"github.com/bgforge/gnubgcore/pkg/api"
	"github.com/bgforge/gnubgcore/pkg/engine"
)

const version = "0.2.0"

func main() {
	// Command line flags
	configFile := flag.String("config", "", "YAML configuration file (data files, evaluation and rollout defaults)")
	host := flag.String("host", "localhost", "Host to bind to (use 0.0.0.0 for all interfaces)")
	port := flag.Int("port", 8080, "Port to listen on")
	readTimeout := flag.Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	writeTimeout := flag.Duration("write-timeout", 0, "HTTP write timeout (0 for none)")
	fastWorkers := flag.Int("fast-workers", 100, "Max concurrent evaluations")
	slowWorkers := flag.Int("slow-workers", 4, "Max concurrent rollouts and game analyses")
	maxQueued := flag.Int("max-queued", 256, "Requests allowed to wait for a worker (0 for no limit)")
	deepPly := flag.Int("deep-ply", 3, "Lookahead at which an evaluation counts as slow (0 to disable)")
	maxPly := flag.Int("max-ply", 3, "Deepest evaluation a request may ask for")
	maxTrials := flag.Int("max-trials", 46656, "Largest rollout a request may ask for")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("bgserver v%s\n", version)
		os.Exit(0)
	}

	log, err := logx.NewLogger(os.Stderr, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cfg := engine.DefaultConfig()
	if *configFile != "" {
		if cfg, err = engine.LoadConfig(*configFile); err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}
	}
	ec, err := cfg.EvalContext()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid evaluation settings")
	}

	log.Info().Str("version", version).Str("config", *configFile).Msg("loading engine data files")
	eng, err := engine.NewEngine(cfg.EngineOptions(&log))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create engine")
	}
	if !eng.HasWeights() {
		log.Warn().Msg("no neural net weights loaded, using the heuristic evaluator")
	}

	config := api.DefaultConfig()
	config.Host = *host
	config.Port = *port
	config.ReadTimeout = *readTimeout
	config.WriteTimeout = *writeTimeout
	config.MaxFastWorkers = *fastWorkers
	config.MaxSlowWorkers = *slowWorkers
	config.MaxQueued = *maxQueued
	config.DeepPly = *deepPly
	config.MaxPly = *maxPly
	config.MaxTrials = *maxTrials
	config.Eval = ec
	config.Rollout = cfg.Rollout
	config.Logger = &log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(eng, config, version)
	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
