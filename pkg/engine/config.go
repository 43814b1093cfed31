package engine

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration shared by the binaries.
//
//	data:
//	  weights: gnubg.wd.zst
//	  bearoff: gnubg_os0.bd
//	eval:
//	  level: 2ply
//	  filter: large
//	rollout:
//	  trials: 1296
//	  rng: pcg
//	  seed: 42
type Config struct {
	Data    DataConfig     `yaml:"data"`
	Eval    EvalConfig     `yaml:"eval"`
	Rollout RolloutContext `yaml:"rollout"`
}

// DataConfig names the data files loaded by the engine.
type DataConfig struct {
	Weights     string   `yaml:"weights"`
	Bearoff     string   `yaml:"bearoff"`
	BearoffTS   string   `yaml:"bearoffTS"`
	Hypergammon []string `yaml:"hypergammon"`
	MET         string   `yaml:"met"`
	CacheSize   int      `yaml:"cacheSize"`
}

// EvalConfig is the default evaluation context. Level selects a named
// level as the base, explicit fields and Filter override it.
type EvalConfig struct {
	Level         string   `yaml:"level"`
	Filter        string   `yaml:"filter"`
	Plies         *int     `yaml:"plies"`
	Cubeful       *bool    `yaml:"cubeful"`
	Prune         *bool    `yaml:"prune"`
	Deterministic *bool    `yaml:"deterministic"`
	Noise         *float32 `yaml:"noise"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() Config {
	return Config{Rollout: DefaultRolloutContext()}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML configuration on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Data.Hypergammon) > 3 {
		return Config{}, fmt.Errorf("at most 3 hypergammon databases, got %d", len(cfg.Data.Hypergammon))
	}
	if _, err := cfg.EvalContext(); err != nil {
		return Config{}, err
	}
	if err := cfg.Rollout.Validate(); err != nil {
		return Config{}, fmt.Errorf("rollout: %w", err)
	}
	return cfg, nil
}

// EngineOptions returns the options to load the configured data files.
func (c Config) EngineOptions(log *zerolog.Logger) EngineOptions {
	opts := EngineOptions{
		WeightsFile:   c.Data.Weights,
		BearoffFile:   c.Data.Bearoff,
		BearoffTSFile: c.Data.BearoffTS,
		METFile:       c.Data.MET,
		CacheSize:     c.Data.CacheSize,
		Logger:        log,
	}
	copy(opts.HypergammonFiles[:], c.Data.Hypergammon)
	return opts
}

// EvalContext resolves the configured evaluation context.
func (c Config) EvalContext() (EvalContext, error) {
	ec := DefaultEvalContext()
	e := c.Eval
	if e.Level != "" {
		lc, err := LevelContext(e.Level)
		if err != nil {
			return EvalContext{}, fmt.Errorf("eval: %w", err)
		}
		ec = lc
	}
	if e.Filter != "" {
		f, err := FilterPreset(e.Filter)
		if err != nil {
			return EvalContext{}, fmt.Errorf("eval: %w", err)
		}
		ec.Filters = &f
	}
	if e.Plies != nil {
		ec.Plies = *e.Plies
	}
	if e.Cubeful != nil {
		ec.Cubeful = *e.Cubeful
	}
	if e.Prune != nil {
		ec.Prune = *e.Prune
	}
	if e.Deterministic != nil {
		ec.Deterministic = *e.Deterministic
	}
	if e.Noise != nil {
		ec.Noise = *e.Noise
	}
	if err := ec.Validate(); err != nil {
		return EvalContext{}, fmt.Errorf("eval: %w", err)
	}
	return ec, nil
}
