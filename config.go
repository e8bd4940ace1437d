package bedrock

import (
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Config gathers the tunable parameters of a World. The zero value is
// not usable; start from DefaultConfig.
type Config struct {
	// Gravity acceleration in m/s²
	Gravity [3]float64 `yaml:"gravity"`

	// Substeps per Step call. XPBD trades solver iterations for
	// substeps, so this is the main quality knob.
	Substeps int `yaml:"substeps"`

	// Workers for the parallel phases. Determinism holds for any value.
	Workers int `yaml:"workers"`

	// Broad-phase grid
	CellSize  float64 `yaml:"cell_size"`
	GridCells int     `yaml:"grid_cells"`

	// SpeculativeMargin is the maximum distance at which approaching
	// pairs produce anticipated contacts, preventing tunneling
	SpeculativeMargin float64 `yaml:"speculative_margin"`

	// ContactTolerance keeps barely-separated contacts alive so
	// resting stacks do not flicker between touching and separated
	ContactTolerance float64 `yaml:"contact_tolerance"`

	// MaxCorrection caps the position change a single constraint solve
	// may apply to a body. Zero disables the cap.
	MaxCorrection float64 `yaml:"max_correction"`

	// WarmStartCoefficient scales the previous frame's contact
	// multipliers when seeding the solver. Zero disables warm starting.
	WarmStartCoefficient float64 `yaml:"warm_start_coefficient"`

	// Sleep thresholds
	SleepLinearThreshold  float64 `yaml:"sleep_linear_threshold"`
	SleepAngularThreshold float64 `yaml:"sleep_angular_threshold"`
	SleepTimeThreshold    float64 `yaml:"sleep_time_threshold"`

	// Seed folds into StateHash so independent runs can be told apart
	// when auditing reproducibility
	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns the tuning used by the examples: earth gravity,
// 8 substeps, sleep after half a second of rest.
func DefaultConfig() Config {
	return Config{
		Gravity:               [3]float64{0, -9.81, 0},
		Substeps:              8,
		Workers:               1,
		CellSize:              2.0,
		GridCells:             1024,
		SpeculativeMargin:     0.05,
		ContactTolerance:      0.005,
		MaxCorrection:         0.5,
		WarmStartCoefficient:  1.0,
		SleepLinearThreshold:  0.05,
		SleepAngularThreshold: 0.05,
		SleepTimeThreshold:    0.5,
	}
}

// LoadConfig reads a YAML file over the defaults, so partial files only
// override what they mention
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate rejects configurations the solver cannot run with
func (c *Config) Validate() error {
	if c.Substeps < 1 {
		return fmt.Errorf("substeps must be >= 1, got %d", c.Substeps)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.CellSize <= 0 {
		return fmt.Errorf("cell_size must be positive, got %v", c.CellSize)
	}
	if c.GridCells < 1 {
		return fmt.Errorf("grid_cells must be >= 1, got %d", c.GridCells)
	}
	if c.SpeculativeMargin < 0 || math.IsNaN(c.SpeculativeMargin) {
		return fmt.Errorf("speculative_margin must be >= 0, got %v", c.SpeculativeMargin)
	}
	if c.ContactTolerance < 0 || math.IsNaN(c.ContactTolerance) {
		return fmt.Errorf("contact_tolerance must be >= 0, got %v", c.ContactTolerance)
	}
	if c.MaxCorrection < 0 {
		return fmt.Errorf("max_correction must be >= 0, got %v", c.MaxCorrection)
	}
	if c.WarmStartCoefficient < 0 || c.WarmStartCoefficient > 1 {
		return fmt.Errorf("warm_start_coefficient must be in [0, 1], got %v", c.WarmStartCoefficient)
	}
	if c.SleepLinearThreshold < 0 || c.SleepAngularThreshold < 0 || c.SleepTimeThreshold < 0 {
		return fmt.Errorf("sleep thresholds must be >= 0")
	}
	for _, g := range c.Gravity {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return fmt.Errorf("gravity must be finite, got %v", c.Gravity)
		}
	}
	return nil
}

// GravityVec returns the gravity as a vector
func (c *Config) GravityVec() mgl64.Vec3 {
	return mgl64.Vec3{c.Gravity[0], c.Gravity[1], c.Gravity[2]}
}
