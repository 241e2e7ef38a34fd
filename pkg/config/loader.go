package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a working configuration for the H2 preset with every
// edge type at the default cutoff and occupancy limit.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:  ":9094",
		LogLevel:  "info",
		LogFormat: "text",

		SnapshotPath:    "qmcgraph.snap",
		JournalPath:     "qmcgraph.journal",
		ShutdownTimeout: 5 * time.Second,

		Precision: "float64",
		Workers:   0,

		Molecule: MoleculeConfig{Preset: "H2"},
		Warmup: WarmupConfig{
			Steps:     0,
			BatchSize: 256,
			StepSize:  0.2,
			Seed:      1,
		},
	}
}

// LoadConfig reads the YAML configuration file using strict parsing and
// validates the result. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, cfg.Validate()
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	// A preset in the defaults would clash with explicit coords in the file.
	cfg.Molecule = MoleculeConfig{}
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("YAML syntax error in config: %w", err)
	}
	if cfg.Molecule.Preset == "" && len(cfg.Molecule.Coords) == 0 {
		cfg.Molecule = DefaultConfig().Molecule
	}

	return cfg, cfg.Validate()
}
