// Package config holds the qmcgraph service configuration and its YAML loader.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paulinet/qmcgraph/pkg/core/distance"
	"github.com/paulinet/qmcgraph/pkg/core/edges"
	"github.com/paulinet/qmcgraph/pkg/molecule"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("config: invalid")

// Config is the top-level configuration of the service.
type Config struct {
	HTTPAddr  string `yaml:"http_addr"`  // ":9094"
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text or json

	SnapshotPath    string        `yaml:"snapshot_path"` // empty disables snapshots
	JournalPath     string        `yaml:"journal_path"`  // empty disables the growth journal
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Precision string `yaml:"precision"` // float64, float32, float16
	Workers   int    `yaml:"workers"`   // 0 = GOMAXPROCS

	EdgeTypes []string                     `yaml:"edge_types"`
	Edges     map[string]edges.EdgeOptions `yaml:"edges"` // per-type overrides

	Molecule MoleculeConfig `yaml:"molecule"`
	Warmup   WarmupConfig   `yaml:"warmup"`
}

// MoleculeConfig selects a preset or defines the nuclei explicitly.
type MoleculeConfig struct {
	Preset  string       `yaml:"preset"`
	Coords  [][3]float64 `yaml:"coords"`
	Charges []float64    `yaml:"charges"`
	Charge  int          `yaml:"charge"`
	Spin    int          `yaml:"spin"`
}

// WarmupConfig drives the random-walk run that grows edge capacities before
// serving. Steps = 0 disables it.
type WarmupConfig struct {
	Steps     int     `yaml:"steps" json:"steps"`
	BatchSize int     `yaml:"batch_size" json:"batch_size"`
	StepSize  float64 `yaml:"step_size" json:"step_size"`
	Seed      int64   `yaml:"seed" json:"seed"`
}

// Validate checks the values LoadConfig cannot check structurally.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr is empty", ErrInvalidConfig)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: shutdown_timeout must be >= 0", ErrInvalidConfig)
	}
	if _, err := distance.ParsePrecision(c.Precision); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers)
	}
	if _, err := c.EdgeTypeList(); err != nil {
		return err
	}
	if _, err := c.EdgeOptions(); err != nil {
		return err
	}
	if c.Molecule.Preset != "" && len(c.Molecule.Coords) > 0 {
		return fmt.Errorf("%w: molecule sets both preset and coords", ErrInvalidConfig)
	}
	if c.Molecule.Preset == "" && len(c.Molecule.Coords) == 0 {
		return fmt.Errorf("%w: molecule needs a preset or coords", ErrInvalidConfig)
	}
	if _, err := c.BuildMolecule(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	w := c.Warmup
	if w.Steps < 0 {
		return fmt.Errorf("%w: warmup.steps must be >= 0", ErrInvalidConfig)
	}
	if w.Steps > 0 && (w.BatchSize < 1 || !(w.StepSize > 0)) {
		return fmt.Errorf("%w: warmup needs batch_size >= 1 and step_size > 0", ErrInvalidConfig)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	return l, nil
}

// EdgeTypeList returns the requested edge types; an empty list means all.
func (c Config) EdgeTypeList() ([]edges.Type, error) {
	if len(c.EdgeTypes) == 0 {
		return append([]edges.Type(nil), edges.AllTypes...), nil
	}
	out := make([]edges.Type, 0, len(c.EdgeTypes))
	for _, s := range c.EdgeTypes {
		t, err := edges.ParseType(s)
		if err != nil {
			return nil, fmt.Errorf("%w: edge_types: %w", ErrInvalidConfig, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// EdgeOptions converts the per-type overrides. Zero fields keep the defaults.
func (c Config) EdgeOptions() (map[edges.Type]edges.EdgeOptions, error) {
	out := make(map[edges.Type]edges.EdgeOptions, len(c.Edges))
	for k, o := range c.Edges {
		t, err := edges.ParseType(k)
		if err != nil {
			return nil, fmt.Errorf("%w: edges: %w", ErrInvalidConfig, err)
		}
		if o.Cutoff < 0 || o.OccupancyLimit < 0 {
			return nil, fmt.Errorf("%w: edges.%s: cutoff and occupancy_limit must be positive", ErrInvalidConfig, k)
		}
		out[t] = o
	}
	return out, nil
}

// BuildMolecule returns the configured molecule.
func (c Config) BuildMolecule() (*molecule.Molecule, error) {
	m := c.Molecule
	if m.Preset != "" {
		return molecule.Preset(m.Preset)
	}
	return molecule.New(m.Coords, m.Charges, m.Charge, m.Spin)
}

// NewFactory builds the edge factory described by c. extra options are
// applied after the configured precision and worker count.
func (c Config) NewFactory(extra ...edges.FactoryOption) (*edges.Factory, error) {
	mol, err := c.BuildMolecule()
	if err != nil {
		return nil, err
	}
	ets, err := c.EdgeTypeList()
	if err != nil {
		return nil, err
	}
	opts, err := c.EdgeOptions()
	if err != nil {
		return nil, err
	}
	prec, err := distance.ParsePrecision(c.Precision)
	if err != nil {
		return nil, err
	}
	fopts := append([]edges.FactoryOption{
		edges.WithPrecision(prec),
		edges.WithWorkers(c.Workers),
	}, extra...)
	return edges.NewFactory(mol, ets, opts, fopts...)
}
