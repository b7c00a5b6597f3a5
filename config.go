package shocktrack

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/shocktrack/detect"
	"github.com/arloliu/shocktrack/internal/collective"
)

// Bounce modes select how the reference bounce index of a dataset is found.
const (
	// BounceNone processes every snapshot from the first dump on.
	BounceNone = "none"

	// BounceFixed uses Detection.BounceIndex for every dataset.
	BounceFixed = "fixed"

	// BounceCompute scans snapshot densities with detect.ScanBounceFinder.
	BounceCompute = "compute"

	// BounceHeader derives the index from snapshot header bounce times.
	BounceHeader = "header"
)

// Versus axes accepted by Output.Versus.
const (
	VersusRadius  = "r"
	VersusDensity = "rho"
	VersusMass    = "encm"
)

// SourceConfig locates the snapshot dumps.
type SourceConfig struct {
	// BasePath holds one directory per dataset.
	BasePath string `yaml:"basePath"`

	// BaseFile is the dump name stem; dumps are "<BaseFile>.<n>".
	BaseFile string `yaml:"baseFile"`
}

// OutputConfig controls the persisted evolution file.
type OutputConfig struct {
	// BasePath is where "<dataset>/plots/" is created. Defaults to Source.BasePath.
	BasePath string `yaml:"basePath"`

	// Amend is prefixed to the evolution file name.
	Amend string `yaml:"amend"`

	// Versus is the profile abscissa ("r", "rho" or "encm"). The evolution
	// file is only written for "r".
	Versus string `yaml:"versus"`
}

// DetectionConfig tunes feature detection.
type DetectionConfig struct {
	// CoreThreshold is the density (g/cm^3) above which matter belongs to the
	// dense core.
	CoreThreshold float64 `yaml:"coreThreshold"`

	// PostBounce restricts processing to snapshots from the bounce index on.
	PostBounce bool `yaml:"postBounce"`

	// BounceMode is one of "none", "fixed", "compute" or "header".
	BounceMode string `yaml:"bounceMode"`

	// BounceIndex is the bounce index used by the "fixed" mode.
	BounceIndex int `yaml:"bounceIndex"`

	// BounceDelay is how long nuclear density must hold in "compute" mode.
	BounceDelay time.Duration `yaml:"bounceDelay"`

	// ShockWindow is the half width, in cells, of the shock search around
	// the previous shock index. Zero disables the windowed search.
	ShockWindow int `yaml:"shockWindow"`
}

// Override corrects known misdetections of one dataset.
type Override struct {
	// Bumps maps a 1-based snapshot number to the first cell of its shock search.
	Bumps map[int]int `yaml:"bumps"`

	// WindowStart is the 1-based snapshot number from which the windowed
	// shock search applies. Zero means every snapshot when ShockWindow > 0.
	WindowStart int `yaml:"windowStart"`
}

// Bump returns the shock search offset for 0-based snapshot index i.
func (o Override) Bump(i int) int {
	return o.Bumps[i+1]
}

// Windowed reports whether 0-based snapshot index i uses the windowed search.
func (o Override) Windowed(i int) bool {
	return i+1 >= o.WindowStart
}

// ProgressConfig configures progress reporting over NATS.
type ProgressConfig struct {
	Bucket          string        `yaml:"bucket"`
	Prefix          string        `yaml:"prefix"`
	Interval        time.Duration `yaml:"interval"`
	SummaryInterval time.Duration `yaml:"summaryInterval"`
}

// RankConfig configures rank claiming over NATS.
type RankConfig struct {
	Bucket string        `yaml:"bucket"`
	TTL    time.Duration `yaml:"ttl"`
}

// MetricsConfig configures the Prometheus endpoint of the CLI.
type MetricsConfig struct {
	// Addr is the listen address of /metrics; empty disables the endpoint.
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Config is the configuration of a Runner.
//
// All duration fields accept standard Go duration strings like "2ms", "30s".
type Config struct {
	// RunID scopes the collective keys of one run. Every process of a run
	// must use the same value.
	RunID string `yaml:"runId"`

	// PoolSize is the number of workers.
	PoolSize int `yaml:"poolSize"`

	// Datasets lists the datasets processed in order.
	Datasets []string `yaml:"datasets"`

	Source    SourceConfig    `yaml:"source"`
	Output    OutputConfig    `yaml:"output"`
	Detection DetectionConfig `yaml:"detection"`

	// Overrides maps a dataset name (or a fragment of it) to its corrections.
	Overrides map[string]Override `yaml:"overrides"`

	Collective collective.Config `yaml:"collective"`
	Progress   ProgressConfig    `yaml:"progress"`
	Ranks      RankConfig        `yaml:"ranks"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		RunID:    "shocktrack",
		PoolSize: 1,
		Source: SourceConfig{
			BaseFile: "dump",
		},
		Output: OutputConfig{
			Versus: VersusRadius,
		},
		Detection: DetectionConfig{
			CoreThreshold: 1e12,
			PostBounce:    true,
			BounceMode:    BounceCompute,
			BounceDelay:   detect.DefaultBounceDelay,
		},
		Collective: collective.DefaultConfig(),
		Progress: ProgressConfig{
			Bucket:          "shocktrack-progress",
			Prefix:          "progress",
			Interval:        time.Second,
			SummaryInterval: 5 * time.Second,
		},
		Ranks: RankConfig{
			Bucket: "shocktrack-ranks",
			TTL:    30 * time.Second,
		},
		Metrics: MetricsConfig{
			Namespace: "shocktrack",
		},
	}
}

// SetDefaults fills in missing configuration values with defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.RunID == "" {
		cfg.RunID = defaults.RunID
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.Source.BaseFile == "" {
		cfg.Source.BaseFile = defaults.Source.BaseFile
	}
	if cfg.Output.BasePath == "" {
		cfg.Output.BasePath = cfg.Source.BasePath
	}
	if cfg.Output.Versus == "" {
		cfg.Output.Versus = defaults.Output.Versus
	}
	if cfg.Detection.CoreThreshold == 0 {
		cfg.Detection.CoreThreshold = defaults.Detection.CoreThreshold
	}
	if cfg.Detection.BounceMode == "" {
		cfg.Detection.BounceMode = defaults.Detection.BounceMode
	}
	if cfg.Detection.BounceDelay == 0 {
		cfg.Detection.BounceDelay = defaults.Detection.BounceDelay
	}
	cfg.Collective.SetDefaults()
	if cfg.Collective.TTL == 0 {
		cfg.Collective.TTL = defaults.Collective.TTL
	}
	if cfg.Progress.Bucket == "" {
		cfg.Progress.Bucket = defaults.Progress.Bucket
	}
	if cfg.Progress.Prefix == "" {
		cfg.Progress.Prefix = defaults.Progress.Prefix
	}
	if cfg.Progress.Interval == 0 {
		cfg.Progress.Interval = defaults.Progress.Interval
	}
	if cfg.Progress.SummaryInterval == 0 {
		cfg.Progress.SummaryInterval = defaults.Progress.SummaryInterval
	}
	if cfg.Ranks.Bucket == "" {
		cfg.Ranks.Bucket = defaults.Ranks.Bucket
	}
	if cfg.Ranks.TTL == 0 {
		cfg.Ranks.TTL = defaults.Ranks.TTL
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = defaults.Metrics.Namespace
	}
}

// Validate checks configuration constraints.
//
// An unknown versus axis is reported as ErrUnknownVersus; every other
// violation as ErrInvalidConfig.
//
// Returns:
//   - error: Validation error, nil if valid
func (cfg *Config) Validate() error {
	switch cfg.Output.Versus {
	case VersusRadius, VersusDensity, VersusMass:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownVersus, cfg.Output.Versus)
	}

	var errs []error
	if cfg.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("poolSize must be >= 1, got %d", cfg.PoolSize))
	}
	if cfg.Detection.CoreThreshold <= 0 {
		errs = append(errs, fmt.Errorf("coreThreshold must be > 0, got %g", cfg.Detection.CoreThreshold))
	}
	switch cfg.Detection.BounceMode {
	case BounceNone, BounceFixed, BounceCompute, BounceHeader:
	default:
		errs = append(errs, fmt.Errorf("unknown bounceMode %q", cfg.Detection.BounceMode))
	}
	if cfg.Detection.BounceIndex < 0 {
		errs = append(errs, fmt.Errorf("bounceIndex must be >= 0, got %d", cfg.Detection.BounceIndex))
	}
	if cfg.Detection.ShockWindow < 0 {
		errs = append(errs, fmt.Errorf("shockWindow must be >= 0, got %d", cfg.Detection.ShockWindow))
	}
	if strings.ContainsAny(cfg.RunID, ".*> ") {
		errs = append(errs, fmt.Errorf("runId %q must be a single key token", cfg.RunID))
	}
	if name, ok := duplicateDataset(cfg.Datasets); ok {
		errs = append(errs, fmt.Errorf("dataset %s listed more than once", name))
	}
	for name, o := range cfg.Overrides {
		for snapshot, bump := range o.Bumps {
			if snapshot < 1 || bump < 0 {
				errs = append(errs, fmt.Errorf("override %s: snapshot %d bump %d, want snapshot >= 1 and bump >= 0",
					name, snapshot, bump))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// duplicateDataset reports the first dataset named twice. Every dataset maps
// to one collective round, so a repeat would reuse that round's keys.
func duplicateDataset(datasets []string) (string, bool) {
	seen := make(map[string]struct{}, len(datasets))
	for _, name := range datasets {
		if _, ok := seen[name]; ok {
			return name, true
		}
		seen[name] = struct{}{}
	}

	return "", false
}

// OverrideFor returns the override of dataset.
//
// An exact key match wins; otherwise the longest configured key contained in
// the dataset name is used, so "s12" covers "s12.swbj15.horo.3d". Datasets
// without a match get the zero Override (bump 0 everywhere).
func (cfg *Config) OverrideFor(dataset string) Override {
	if o, ok := cfg.Overrides[dataset]; ok {
		return o
	}

	best := ""
	for key := range cfg.Overrides {
		if key != "" && strings.Contains(dataset, key) && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return Override{}
	}

	return cfg.Overrides[best]
}

// PersistEvolution reports whether the reduced series is written to disk.
func (cfg *Config) PersistEvolution() bool {
	return cfg.Output.Versus == VersusRadius
}

// LoadConfig reads a YAML configuration file and applies defaults.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - Config: Parsed configuration with defaults applied
//   - error: Read, parse or validation error
//
// Example:
//
//	cfg, err := shocktrack.LoadConfig("shocktrack.yaml")
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration bytes, applies defaults and validates.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// TestConfig returns a configuration for fast, bus-free tests.
//
// Bounce detection is disabled and every snapshot is processed.
func TestConfig() Config {
	cfg := DefaultConfig()
	cfg.Detection.PostBounce = false
	cfg.Detection.BounceMode = BounceNone
	cfg.Progress.Interval = 20 * time.Millisecond
	cfg.Progress.SummaryInterval = 50 * time.Millisecond

	return cfg
}
