package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable name, e.g. KNN_N_JOBS.
const EnvPrefix = "KNN"

// Config validation errors
var (
	ErrInvalidNJobs          = errors.New("n_jobs must be positive or -1 for all cores")
	ErrInvalidLogFormat      = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel       = errors.New("log_level must be debug, info, warn, error or disabled")
	ErrInvalidTreeEffort     = errors.New("tree_effort must be positive")
	ErrInvalidNNDescentDelta = errors.New("nndescent_delta must be in [0, 1)")
	ErrInvalidNNDescentRho   = errors.New("nndescent_rho must be in (0, 1]")
	ErrInvalidCandidates     = errors.New("nndescent_max_candidates must be positive")
	ErrInvalidEpsilon        = errors.New("nndescent_search_epsilon must be non-negative")
	ErrInvalidHNSWM          = errors.New("hnsw_m must be at least 2")
	ErrInvalidHNSWMl         = errors.New("hnsw_ml must be in (0, 1)")
	ErrInvalidHNSWEfConstr   = errors.New("hnsw_ef_construction must be positive")
	ErrInvalidHNSWEfSearch   = errors.New("hnsw_ef_search must be positive")
	ErrInvalidLSHTables      = errors.New("lsh_tables must be positive")
	ErrInvalidLSHProjections = errors.New("lsh_projections must be in [1, 64]")
	ErrInvalidLSHWidth       = errors.New("lsh_width must be non-negative")
)

// Config carries defaults for every index. Options passed to a constructor
// override the values loaded here.
type Config struct {
	// NJobs is the worker limit handed to backends; -1 means one per CPU.
	NJobs int `envconfig:"N_JOBS" default:"1"`
	// RandomState seeds backends and the repair stage; negative means unseeded.
	RandomState int64 `envconfig:"RANDOM_STATE" default:"-1"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	TreeEffort     int  `envconfig:"TREE_EFFORT" default:"4"`
	TreeBruteForce bool `envconfig:"TREE_BRUTE_FORCE" default:"false"`

	// NNDescentMaxIterations of 0 derives the count from the sample size.
	NNDescentMaxIterations int     `envconfig:"NNDESCENT_MAX_ITERATIONS" default:"0"`
	NNDescentDelta         float64 `envconfig:"NNDESCENT_DELTA" default:"0.001"`
	NNDescentRho           float64 `envconfig:"NNDESCENT_RHO" default:"1.0"`
	NNDescentMaxCandidates int     `envconfig:"NNDESCENT_MAX_CANDIDATES" default:"60"`
	NNDescentSearchEpsilon float64 `envconfig:"NNDESCENT_SEARCH_EPSILON" default:"0.1"`

	HNSWM              int     `envconfig:"HNSW_M" default:"16"`
	HNSWMl             float64 `envconfig:"HNSW_ML" default:"0.25"`
	HNSWEfConstruction int     `envconfig:"HNSW_EF_CONSTRUCTION" default:"200"`
	HNSWEfSearch       int     `envconfig:"HNSW_EF_SEARCH" default:"64"`

	LSHTables      int     `envconfig:"LSH_TABLES" default:"16"`
	LSHProjections int     `envconfig:"LSH_PROJECTIONS" default:"8"`
	LSHWidth       float64 `envconfig:"LSH_WIDTH" default:"0"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		NJobs:                  1,
		RandomState:            -1,
		LogLevel:               "info",
		LogFormat:              "json",
		TreeEffort:             4,
		NNDescentDelta:         0.001,
		NNDescentRho:           1.0,
		NNDescentMaxCandidates: 60,
		NNDescentSearchEpsilon: 0.1,
		HNSWM:                  16,
		HNSWMl:                 0.25,
		HNSWEfConstruction:     200,
		HNSWEfSearch:           64,
		LSHTables:              16,
		LSHProjections:         8,
	}
}

// Load reads an optional dotenv file, then the KNN_* environment, and
// validates the result. A missing envFile is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func Validate(cfg *Config) error {
	if cfg.NJobs == 0 || cfg.NJobs < -1 {
		return ErrInvalidNJobs
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "disabled":
	default:
		return ErrInvalidLogLevel
	}
	if cfg.TreeEffort <= 0 {
		return ErrInvalidTreeEffort
	}
	if cfg.NNDescentDelta < 0 || cfg.NNDescentDelta >= 1 {
		return ErrInvalidNNDescentDelta
	}
	if cfg.NNDescentRho <= 0 || cfg.NNDescentRho > 1 {
		return ErrInvalidNNDescentRho
	}
	if cfg.NNDescentMaxCandidates <= 0 {
		return ErrInvalidCandidates
	}
	if cfg.NNDescentSearchEpsilon < 0 {
		return ErrInvalidEpsilon
	}
	if cfg.HNSWM < 2 {
		return ErrInvalidHNSWM
	}
	if cfg.HNSWMl <= 0 || cfg.HNSWMl >= 1 {
		return ErrInvalidHNSWMl
	}
	if cfg.HNSWEfConstruction <= 0 {
		return ErrInvalidHNSWEfConstr
	}
	if cfg.HNSWEfSearch <= 0 {
		return ErrInvalidHNSWEfSearch
	}
	if cfg.LSHTables <= 0 {
		return ErrInvalidLSHTables
	}
	if cfg.LSHProjections < 1 || cfg.LSHProjections > 64 {
		return ErrInvalidLSHProjections
	}
	if cfg.LSHWidth < 0 {
		return ErrInvalidLSHWidth
	}
	return nil
}

// Seed reports the configured seed and whether one was set.
func (c Config) Seed() (uint64, bool) {
	if c.RandomState < 0 {
		return 0, false
	}
	return uint64(c.RandomState), true
}
