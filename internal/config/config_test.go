package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Default(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, Validate(&cfg))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero n_jobs", func(c *Config) { c.NJobs = 0 }, ErrInvalidNJobs},
		{"negative n_jobs", func(c *Config) { c.NJobs = -4 }, ErrInvalidNJobs},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidLogFormat},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, ErrInvalidLogLevel},
		{"tree effort", func(c *Config) { c.TreeEffort = 0 }, ErrInvalidTreeEffort},
		{"delta", func(c *Config) { c.NNDescentDelta = 1 }, ErrInvalidNNDescentDelta},
		{"rho", func(c *Config) { c.NNDescentRho = 0 }, ErrInvalidNNDescentRho},
		{"candidates", func(c *Config) { c.NNDescentMaxCandidates = 0 }, ErrInvalidCandidates},
		{"epsilon", func(c *Config) { c.NNDescentSearchEpsilon = -0.1 }, ErrInvalidEpsilon},
		{"hnsw m", func(c *Config) { c.HNSWM = 1 }, ErrInvalidHNSWM},
		{"hnsw ml", func(c *Config) { c.HNSWMl = 1 }, ErrInvalidHNSWMl},
		{"hnsw ef construction", func(c *Config) { c.HNSWEfConstruction = 0 }, ErrInvalidHNSWEfConstr},
		{"hnsw ef", func(c *Config) { c.HNSWEfSearch = 0 }, ErrInvalidHNSWEfSearch},
		{"lsh tables", func(c *Config) { c.LSHTables = 0 }, ErrInvalidLSHTables},
		{"lsh projections", func(c *Config) { c.LSHProjections = 65 }, ErrInvalidLSHProjections},
		{"lsh width", func(c *Config) { c.LSHWidth = -1 }, ErrInvalidLSHWidth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, Validate(&cfg), tt.want)
		})
	}
}

func TestValidate_AllCoresNJobs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NJobs = -1
	assert.NoError(t, Validate(&cfg))
}

func TestLoad_DefaultsMatchDefaultConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KNN_N_JOBS", "4")
	t.Setenv("KNN_RANDOM_STATE", "42")
	t.Setenv("KNN_HNSW_M", "32")
	t.Setenv("KNN_LSH_WIDTH", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NJobs)
	assert.Equal(t, int64(42), cfg.RandomState)
	assert.Equal(t, 32, cfg.HNSWM)
	assert.Equal(t, 2.5, cfg.LSHWidth)

	seed, ok := cfg.Seed()
	assert.True(t, ok)
	assert.Equal(t, uint64(42), seed)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KNN_TREE_EFFORT=9\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("KNN_TREE_EFFORT") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.TreeEffort)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_InvalidValueFailsValidation(t *testing.T) {
	t.Setenv("KNN_LOG_FORMAT", "yaml")
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidLogFormat)
}

func TestSeed_Unset(t *testing.T) {
	_, ok := DefaultConfig().Seed()
	assert.False(t, ok)
}
