package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulinet/qmcgraph/pkg/core/distance"
	"github.com/paulinet/qmcgraph/pkg/core/edges"
	"github.com/paulinet/qmcgraph/pkg/molecule"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qmcgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	types, err := cfg.EdgeTypeList()
	require.NoError(t, err)
	assert.Equal(t, edges.AllTypes, types)

	f, err := cfg.NewFactory()
	require.NoError(t, err)
	assert.Equal(t, edges.AllTypes, f.EdgeTypes())
	for _, l := range f.OccupancyLimits() {
		assert.Equal(t, edges.DefaultOccupancyLimit, l)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
http_addr: "127.0.0.1:9999"
log_level: debug
log_format: json
shutdown_timeout: 2s
precision: float32
workers: 4
edge_types: [ne, same]
edges:
  ne:
    cutoff: 4.5
  same:
    occupancy_limit: 12
molecule:
  coords: [[0, 0, 0], [0, 0, 1.4]]
  charges: [1, 1]
  charge: 1
  spin: 1
warmup:
  steps: 10
  batch_size: 32
  step_size: 0.5
  seed: 7
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
	lvl, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
	assert.Equal(t, WarmupConfig{Steps: 10, BatchSize: 32, StepSize: 0.5, Seed: 7}, cfg.Warmup)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultConfig().SnapshotPath, cfg.SnapshotPath)

	opts, err := cfg.EdgeOptions()
	require.NoError(t, err)
	assert.Equal(t, map[edges.Type]edges.EdgeOptions{
		edges.NucleusElectron: {Cutoff: 4.5},
		edges.SameSpin:        {OccupancyLimit: 12},
	}, opts)

	mol, err := cfg.BuildMolecule()
	require.NoError(t, err)
	nNuc, nUp, nDown := mol.NParticles()
	assert.Equal(t, [3]int{2, 1, 0}, [3]int{nNuc, nUp, nDown})

	f, err := cfg.NewFactory()
	require.NoError(t, err)
	assert.Equal(t, []edges.Type{edges.NucleusElectron, edges.SameSpin}, f.EdgeTypes())
	ne, _ := f.Builder(edges.NucleusElectron)
	assert.Equal(t, 4.5, ne.Options().Cutoff)
	assert.Equal(t, distance.Float32, ne.Options().Precision)
	assert.Equal(t, 4, ne.Options().Workers)
	same, _ := f.Builder(edges.SameSpin)
	assert.Equal(t, 12, same.OccupancyLimit())
	assert.Equal(t, edges.DefaultCutoff, same.Options().Cutoff)
}

func TestLoadConfigKeepsPresetDefault(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "workers: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, "H2", cfg.Molecule.Preset)

	cfg, err = LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = LoadConfig(writeConfig(t, "molecule:\n  preset: LiH\n"))
	require.NoError(t, err)
	assert.Equal(t, "LiH", cfg.Molecule.Preset)
}

func TestLoadConfigStrict(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "http_adr: ':1'\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http_adr")

	_, err = LoadConfig(writeConfig(t, "edges:\n  ne:\n    radius: 3\n"))
	require.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.HTTPAddr = "" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
		{"shutdown timeout", func(c *Config) { c.ShutdownTimeout = -time.Second }},
		{"precision", func(c *Config) { c.Precision = "bfloat16" }},
		{"workers", func(c *Config) { c.Workers = -2 }},
		{"edge type", func(c *Config) { c.EdgeTypes = []string{"ee"} }},
		{"edge options key", func(c *Config) { c.Edges = map[string]edges.EdgeOptions{"xx": {}} }},
		{"edge options value", func(c *Config) { c.Edges = map[string]edges.EdgeOptions{"nn": {Cutoff: -1}} }},
		{"preset and coords", func(c *Config) { c.Molecule.Coords = [][3]float64{{0, 0, 0}} }},
		{"no molecule", func(c *Config) { c.Molecule = MoleculeConfig{} }},
		{"unknown preset", func(c *Config) { c.Molecule.Preset = "C60" }},
		{"bad spin", func(c *Config) {
			c.Molecule = MoleculeConfig{Coords: [][3]float64{{0, 0, 0}}, Charges: []float64{2}, Spin: 1}
		}},
		{"warmup steps", func(c *Config) { c.Warmup.Steps = -1 }},
		{"warmup batch", func(c *Config) { c.Warmup.Steps, c.Warmup.BatchSize = 5, 0 }},
		{"warmup step size", func(c *Config) { c.Warmup.Steps, c.Warmup.StepSize = 5, 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	cfg := DefaultConfig()
	cfg.Molecule.Preset = "C60"
	assert.ErrorIs(t, cfg.Validate(), molecule.ErrUnknownPreset)
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "qmcgraph.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "LiH", cfg.Molecule.Preset)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 200, cfg.Warmup.Steps)

	f, err := cfg.NewFactory()
	require.NoError(t, err)
	ne, ok := f.Builder(edges.NucleusElectron)
	require.True(t, ok)
	assert.Equal(t, 8.0, ne.Options().Cutoff)
	assert.Equal(t, edges.DefaultOccupancyLimit, ne.OccupancyLimit())

	same, ok := f.Builder(edges.SameSpin)
	require.True(t, ok)
	assert.Equal(t, edges.DefaultCutoff, same.Options().Cutoff)
	assert.Equal(t, 4, same.OccupancyLimit())
}
