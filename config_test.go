package shocktrack

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "shocktrack", cfg.RunID)
	require.Equal(t, 1, cfg.PoolSize)
	require.Equal(t, "dump", cfg.Source.BaseFile)
	require.Equal(t, VersusRadius, cfg.Output.Versus)
	require.Equal(t, 1e12, cfg.Detection.CoreThreshold)
	require.True(t, cfg.Detection.PostBounce)
	require.Equal(t, BounceCompute, cfg.Detection.BounceMode)
	require.Equal(t, 2*time.Millisecond, cfg.Detection.BounceDelay)
	require.Zero(t, cfg.Detection.ShockWindow)
	require.Equal(t, "shocktrack-assignment", cfg.Collective.AssignmentBucket)
	require.Equal(t, "shocktrack-progress", cfg.Progress.Bucket)
	require.Equal(t, 30*time.Second, cfg.Ranks.TTL)
	require.NoError(t, cfg.Validate())
}

func TestSetDefaults(t *testing.T) {
	t.Run("applies defaults to empty config", func(t *testing.T) {
		cfg := Config{Source: SourceConfig{BasePath: "/scratch/run"}}
		SetDefaults(&cfg)

		require.Equal(t, "shocktrack", cfg.RunID)
		require.Equal(t, 1, cfg.PoolSize)
		require.Equal(t, "/scratch/run", cfg.Output.BasePath)
		require.Equal(t, 1e12, cfg.Detection.CoreThreshold)
		require.Equal(t, BounceCompute, cfg.Detection.BounceMode)
		require.Equal(t, "shocktrack-barrier", cfg.Collective.BarrierBucket)
		require.Equal(t, time.Hour, cfg.Collective.TTL)
		require.NoError(t, cfg.Validate())
	})

	t.Run("preserves custom values", func(t *testing.T) {
		cfg := Config{
			RunID:    "custom",
			PoolSize: 8,
			Output:   OutputConfig{BasePath: "/out", Versus: VersusMass},
			Detection: DetectionConfig{
				CoreThreshold: 2e11,
				BounceMode:    BounceFixed,
				BounceIndex:   12,
			},
		}
		SetDefaults(&cfg)

		require.Equal(t, "custom", cfg.RunID)
		require.Equal(t, 8, cfg.PoolSize)
		require.Equal(t, "/out", cfg.Output.BasePath)
		require.Equal(t, VersusMass, cfg.Output.Versus)
		require.Equal(t, 2e11, cfg.Detection.CoreThreshold)
		require.Equal(t, BounceFixed, cfg.Detection.BounceMode)
		require.Equal(t, 12, cfg.Detection.BounceIndex)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"unknown versus", func(c *Config) { c.Output.Versus = "mach" }, ErrUnknownVersus},
		{"zero pool", func(c *Config) { c.PoolSize = 0 }, ErrInvalidConfig},
		{"negative threshold", func(c *Config) { c.Detection.CoreThreshold = -1 }, ErrInvalidConfig},
		{"unknown bounce mode", func(c *Config) { c.Detection.BounceMode = "guess" }, ErrInvalidConfig},
		{"negative window", func(c *Config) { c.Detection.ShockWindow = -2 }, ErrInvalidConfig},
		{"dotted run id", func(c *Config) { c.RunID = "run.1" }, ErrInvalidConfig},
		{"distinct datasets", func(c *Config) { c.Datasets = []string{"s12.0", "s13.0"} }, nil},
		{"duplicate dataset", func(c *Config) { c.Datasets = []string{"s12.0", "s13.0", "s12.0"} }, ErrInvalidConfig},
		{"zero-based override", func(c *Config) {
			c.Overrides = map[string]Override{"s12": {Bumps: map[int]int{0: 10}}}
		}, ErrInvalidConfig},
		{"negative bump", func(c *Config) {
			c.Overrides = map[string]Override{"s12": {Bumps: map[int]int{4: -1}}}
		}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_OverrideFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Overrides = map[string]Override{
		"s12":                {Bumps: map[int]int{3: 40}},
		"s12.swbj15":         {Bumps: map[int]int{3: 60}},
		"s9.swbj15.horo.3d":  {Bumps: map[int]int{1: 5}, WindowStart: 20},
		"s9.swbj15.horo.3dx": {Bumps: map[int]int{1: 7}},
	}

	t.Run("exact match", func(t *testing.T) {
		o := cfg.OverrideFor("s9.swbj15.horo.3d")
		require.Equal(t, 5, o.Bump(0))
		require.Equal(t, 20, o.WindowStart)
	})

	t.Run("longest contained key", func(t *testing.T) {
		o := cfg.OverrideFor("s12.swbj15.horo.3d")
		require.Equal(t, 60, o.Bump(2))
	})

	t.Run("no match", func(t *testing.T) {
		o := cfg.OverrideFor("s20.swbj15.horo.3d")
		require.Zero(t, o.Bump(2))
		require.True(t, o.Windowed(0))
	})
}

func TestOverride_OneBasedKeys(t *testing.T) {
	o := Override{Bumps: map[int]int{1: 11, 5: 55}, WindowStart: 3}

	require.Equal(t, 11, o.Bump(0))
	require.Equal(t, 55, o.Bump(4))
	require.Zero(t, o.Bump(5))

	require.False(t, o.Windowed(1))
	require.True(t, o.Windowed(2))
}

func TestConfig_PersistEvolution(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.PersistEvolution())

	cfg.Output.Versus = VersusDensity
	require.False(t, cfg.PersistEvolution())
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
runId: run42
poolSize: 4
datasets: [s12.swbj15.horo.3d, s13.swbj15.horo.3d]
source:
  basePath: /scratch/adam
  baseFile: dump
output:
  amend: v2_
  versus: r
detection:
  coreThreshold: 2e11
  postBounce: true
  bounceMode: fixed
  bounceIndex: 3
  bounceDelay: 5ms
  shockWindow: 4
overrides:
  s12:
    bumps:
      140: 300
      141: 310
    windowStart: 100
collective:
  ttl: 10m
`)

	cfg, err := ParseConfig(data)
	require.NoError(t, err)

	require.Equal(t, "run42", cfg.RunID)
	require.Equal(t, 4, cfg.PoolSize)
	require.Len(t, cfg.Datasets, 2)
	require.Equal(t, "/scratch/adam", cfg.Output.BasePath)
	require.Equal(t, "v2_", cfg.Output.Amend)
	require.Equal(t, 2e11, cfg.Detection.CoreThreshold)
	require.Equal(t, BounceFixed, cfg.Detection.BounceMode)
	require.Equal(t, 5*time.Millisecond, cfg.Detection.BounceDelay)
	require.Equal(t, 4, cfg.Detection.ShockWindow)
	require.Equal(t, 300, cfg.OverrideFor("s12.swbj15.horo.3d").Bump(139))
	require.Equal(t, 100, cfg.Overrides["s12"].WindowStart)
	require.Equal(t, 10*time.Minute, cfg.Collective.TTL)
	require.Equal(t, "shocktrack-result", cfg.Collective.ResultBucket)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte("poolSize: [1, 2]"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseConfig([]byte("output:\n  versus: mach\n"))
	require.ErrorIs(t, err, ErrUnknownVersus)
}

func TestLoadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RunID = "from-file"
	cfg.Datasets = []string{"s15.0"}

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "shocktrack.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", loaded.RunID)
	require.Equal(t, []string{"s15.0"}, loaded.Datasets)
	require.Equal(t, cfg.Detection.BounceDelay, loaded.Detection.BounceDelay)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
