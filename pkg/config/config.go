// Package config resolves the simulator's run-time configuration from
// command-line flags (github.com/spf13/pflag) plus an optional YAML
// overrides file (gopkg.in/yaml.v3), widening the teacher's cmd/main.go,
// which used the standard library flag package with no file overrides,
// to a richer option set (tolerances, log level).
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/edp1096/toy-spice/internal/consts"
)

// Config holds the run-time options parsed from flags and the YAML
// file. cmd/spice reads Netlist, LogLevel and Quiet; the tolerance,
// iteration and LTE fields are parsed but not passed to the analyses.
type Config struct {
	Netlist string `yaml:"-"`

	AbsTol  float64 `yaml:"abs_tol"`
	RelTol  float64 `yaml:"rel_tol"`
	MaxIter int     `yaml:"max_iter"`
	GMin    float64 `yaml:"gmin"`

	LTEAbsTol float64 `yaml:"lte_abs_tol"`
	LTERelTol float64 `yaml:"lte_rel_tol"`

	LogLevel string `yaml:"log_level"`
	Quiet    bool   `yaml:"-"`
}

// Default returns the baseline configuration, matching
// internal/consts's Newton-Raphson and LTE defaults.
func Default() Config {
	return Config{
		AbsTol:    consts.DefaultAbsTol,
		RelTol:    consts.DefaultRelTol,
		MaxIter:   consts.DefaultMaxIter,
		GMin:      1e-12,
		LTEAbsTol: consts.DefaultLTEAbsTol,
		LTERelTol: consts.DefaultLTERelTol,
		LogLevel:  "info",
	}
}

// Parse builds a Config from args: an optional --config YAML file
// layered under flag overrides, so a flag on the command line always
// wins over the file.
func Parse(args []string) (Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("spice", pflag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file overriding the defaults")
	absTol := fs.Float64("abstol", cfg.AbsTol, "Newton-Raphson absolute current tolerance (A)")
	relTol := fs.Float64("reltol", cfg.RelTol, "Newton-Raphson relative tolerance")
	maxIter := fs.Int("maxiter", cfg.MaxIter, "Newton-Raphson iteration cap per solve")
	gMin := fs.Float64("gmin", cfg.GMin, "minimum conductance added in parallel with nonlinear junctions")
	logLevel := fs.String("loglevel", cfg.LogLevel, "debug, info, warn, error")
	quiet := fs.Bool("quiet", false, "suppress the node/branch result table")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", *configPath, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", *configPath, err)
		}
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "abstol":
			cfg.AbsTol = *absTol
		case "reltol":
			cfg.RelTol = *relTol
		case "maxiter":
			cfg.MaxIter = *maxIter
		case "gmin":
			cfg.GMin = *gMin
		case "loglevel":
			cfg.LogLevel = *logLevel
		case "quiet":
			cfg.Quiet = *quiet
		}
	})

	if fs.NArg() != 1 {
		return Config{}, fmt.Errorf("usage: spice [flags] <netlist_file>")
	}
	cfg.Netlist = fs.Arg(0)

	return cfg, nil
}
