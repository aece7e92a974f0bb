// Package config loads and saves scan configurations. A Config is the
// yaml-facing description of one grid search: physical parameter
// overrides plus the search knobs, with defaults matching the reference
// 216-Kleopatra setup.
package config

import (
	"fmt"
	"os"

	"github.com/gavinathaya/KleoProj/internal/field"
	"github.com/gavinathaya/KleoProj/internal/kleo"
	"github.com/gavinathaya/KleoProj/internal/search"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Body selects the physical parameter set; only "kleopatra" is
	// built in, and Params overrides individual values when set.
	Body   string       `yaml:"body"`
	Params ParamsConfig `yaml:"params"`
	Search SearchConfig `yaml:"search"`
}

// ParamsConfig overrides the dimensionless model parameters. Zero values
// mean "keep the body's reference value".
type ParamsConfig struct {
	Kappa float64 `yaml:"kappa"`
	Mu    float64 `yaml:"mu"`
	MuS   float64 `yaml:"mu_s"`
	L1    float64 `yaml:"l1"`
	L2    float64 `yaml:"l2"`
}

type RangeConfig struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

type SearchConfig struct {
	X0             RangeConfig `yaml:"x0"`
	C              RangeConfig `yaml:"c"`
	Symmetry       string      `yaml:"symmetry"`
	Z0             float64     `yaml:"z0"`
	Atol           float64     `yaml:"atol"`
	Rtol           float64     `yaml:"rtol"`
	MaxTime        float64     `yaml:"max_time"`
	MaxSteps       int         `yaml:"max_steps"`
	MaxRefine      int         `yaml:"max_refine"`
	ResidualTol    float64     `yaml:"residual_tol"`
	CoarseTol      float64     `yaml:"coarse_tol"`
	Sensitivity    string      `yaml:"sensitivity"`
	DedupTol       float64     `yaml:"dedup_tol"`
	JacobiDriftTol float64     `yaml:"jacobi_drift_tol"`
	Workers        int         `yaml:"workers"`
}

func Default() *Config {
	sc := search.DefaultConfig()
	return &Config{
		Body: "kleopatra",
		Search: SearchConfig{
			X0:             RangeConfig(sc.X0),
			C:              RangeConfig(sc.C),
			Symmetry:       string(sc.Symmetry),
			Atol:           sc.Atol,
			Rtol:           sc.Rtol,
			MaxTime:        sc.MaxTime,
			MaxSteps:       sc.MaxSteps,
			MaxRefine:      sc.MaxRefine,
			ResidualTol:    sc.ResidualTol,
			CoarseTol:      sc.CoarseTol,
			Sensitivity:    string(sc.Sensitivity),
			DedupTol:       sc.DedupTol,
			JacobiDriftTol: sc.JacobiDriftTol,
			Workers:        sc.Workers,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// FieldParameters resolves the body name and overrides into the
// dimensionless parameter set.
func (c *Config) FieldParameters() (field.Parameters, error) {
	var p field.Parameters
	switch c.Body {
	case "", "kleopatra":
		p = field.Kleopatra()
	default:
		return p, fmt.Errorf("%w: unknown body %q", kleo.ErrInvalidConfig, c.Body)
	}

	if c.Params.Kappa != 0 {
		p.Kappa = c.Params.Kappa
	}
	if c.Params.Mu != 0 {
		p.Mu = c.Params.Mu
	}
	if c.Params.MuS != 0 {
		p.MuS = c.Params.MuS
	}
	if c.Params.L1 != 0 {
		p.L1 = c.Params.L1
	}
	if c.Params.L2 != 0 {
		p.L2 = c.Params.L2
	}
	return p, p.Validate()
}

// SearchConfig resolves the yaml knobs into the search package's config.
func (c *Config) SearchConfig() search.Config {
	sc := search.DefaultConfig()
	s := c.Search
	if s.X0.Step > 0 {
		sc.X0 = search.RangeSpec(s.X0)
	}
	if s.C.Step > 0 {
		sc.C = search.RangeSpec(s.C)
	}
	if s.Symmetry != "" {
		sc.Symmetry = search.SymmetryType(s.Symmetry)
	}
	sc.Z0 = s.Z0
	if s.Atol > 0 {
		sc.Atol = s.Atol
	}
	if s.Rtol > 0 {
		sc.Rtol = s.Rtol
	}
	if s.MaxTime > 0 {
		sc.MaxTime = s.MaxTime
	}
	if s.MaxSteps > 0 {
		sc.MaxSteps = s.MaxSteps
	}
	if s.MaxRefine > 0 {
		sc.MaxRefine = s.MaxRefine
	}
	if s.ResidualTol > 0 {
		sc.ResidualTol = s.ResidualTol
	}
	if s.CoarseTol > 0 {
		sc.CoarseTol = s.CoarseTol
	}
	if s.Sensitivity != "" {
		sc.Sensitivity = search.SensitivityMode(s.Sensitivity)
	}
	if s.DedupTol > 0 {
		sc.DedupTol = s.DedupTol
	}
	if s.JacobiDriftTol > 0 {
		sc.JacobiDriftTol = s.JacobiDriftTol
	}
	if s.Workers > 0 {
		sc.Workers = s.Workers
	}
	return sc
}
