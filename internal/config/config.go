// Package config defines the solver's immutable run configuration
// (spec §6, §9 design note: "expose an immutable configuration object
// passed at construction; no process-wide mutable singletons").
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LossLogit and PenaltyL1 are the only values the two
// configuration-fatal preconditions of spec §4.1 accept: this core
// only ever runs LOGIT loss with L1 penalty.
const (
	LossLogit = "LOGIT"
	PenaltyL1 = "L1"
)

// RunConfig is the full set of options recognized by the core (spec
// §6) plus the ambient fields SPEC_FULL.md §6.5 adds for observability,
// transport, and persistence. It is built once by the CLI driver and
// passed down by reference; nothing in this repo mutates it after
// Validate succeeds.
type RunConfig struct {
	Loss    LossConfig    `yaml:"loss"`
	Penalty PenaltyConfig `yaml:"penalty"`

	LearningRate LearningRateConfig `yaml:"learning_rate"`
	BlockSolver  BlockSolverConfig  `yaml:"block_solver"`
	BCDL1LR      BCDL1LRConfig      `yaml:"bcd_l1lr"`

	NumThreads int `yaml:"num_threads"`

	// PriorBlockOrder names a configured subset of blocks (e.g. the
	// densest ones) prepended on iteration 0 with zero staleness
	// (spec §3 BlockOrder, §4.1 step 2.b). Empty means no warm start.
	PriorBlockOrder []int `yaml:"prior_block_order"`

	// Ambient (SPEC_FULL §6.5): logging, tracing, transport, storage.
	LogFormat      string `yaml:"log_format"`       // "text" | "json"
	LogLevel       string `yaml:"log_level"`        // "debug"|"info"|"warn"|"error"
	OTelEndpoint   string `yaml:"otel_endpoint"`
	NATSURL        string `yaml:"nats_url"`
	ProgressDBPath string `yaml:"progress_db_path"`
}

type LossConfig struct {
	Type string `yaml:"type"`
}

type PenaltyConfig struct {
	Type   string  `yaml:"type"`
	Lambda float64 `yaml:"lambda"`
}

type LearningRateConfig struct {
	Eta float64 `yaml:"eta"`
}

type BlockSolverConfig struct {
	MaxPassOfData           int     `yaml:"max_pass_of_data"`
	MaxBlockDelay           int64   `yaml:"max_block_delay"`
	Epsilon                 float64 `yaml:"epsilon"`
	RandomFeatureBlockOrder bool    `yaml:"random_feature_block_order"`
}

type BCDL1LRConfig struct {
	DeltaInitValue          float64 `yaml:"delta_init_value"`
	KKTFilterThresholdRatio float64 `yaml:"kkt_filter_threshold_ratio"`
}

// Load reads and validates a RunConfig from a YAML file.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration-fatal preconditions of spec §4.1
// and §7: wrong loss/penalty type or a non-positive thread count abort
// at start rather than being discovered mid-run.
func (c *RunConfig) Validate() error {
	if c.Loss.Type != LossLogit {
		return fmt.Errorf("config: loss.type must be %s, got %q", LossLogit, c.Loss.Type)
	}
	if c.Penalty.Type != PenaltyL1 {
		return fmt.Errorf("config: penalty.type must be %s, got %q", PenaltyL1, c.Penalty.Type)
	}
	if c.NumThreads <= 0 {
		return fmt.Errorf("config: num_threads must be > 0, got %d", c.NumThreads)
	}
	if c.BlockSolver.MaxPassOfData <= 0 {
		return fmt.Errorf("config: block_solver.max_pass_of_data must be > 0, got %d", c.BlockSolver.MaxPassOfData)
	}
	return nil
}
