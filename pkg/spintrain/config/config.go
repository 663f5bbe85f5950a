// Package config loads training configuration from YAML or JSON files.
package config

import "fmt"

// Store backend names accepted in Config.Store.
const (
	StoreFS     = "fs"
	StoreSQLite = "sqlite"
)

// Config is the closed set of training settings. Unknown keys in a config
// file are ignored; missing keys keep their defaults.
type Config struct {
	// RunsDir is the base directory holding one subdirectory per run.
	RunsDir string `yaml:"runs_dir" json:"runs_dir"`

	// Epochs is the epoch budget for a run.
	Epochs int `yaml:"epochs" json:"epochs"`

	// Device names the compute target, e.g. "cpu".
	Device string `yaml:"device" json:"device"`

	// Store selects the checkpoint backend: "fs" or "sqlite".
	Store string `yaml:"store" json:"store"`

	// LearningRate is the optimizer's initial learning rate.
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`

	// Momentum is the optimizer's momentum coefficient.
	Momentum float64 `yaml:"momentum" json:"momentum"`

	// Seed seeds the synthetic dataset generator.
	Seed int64 `yaml:"seed" json:"seed"`

	// TrainBatches and ValBatches size the synthetic dataset.
	TrainBatches int `yaml:"train_batches" json:"train_batches"`
	ValBatches   int `yaml:"val_batches" json:"val_batches"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		RunsDir:      "./runs",
		Epochs:       20,
		Device:       "cpu",
		Store:        StoreFS,
		LearningRate: 0.05,
		Momentum:     0.9,
		Seed:         1,
		TrainBatches: 64,
		ValBatches:   16,
	}
}

// Validate checks the configuration for values the trainer cannot work with.
func (c Config) Validate() error {
	if c.RunsDir == "" {
		return fmt.Errorf("runs_dir must not be empty")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.Store != StoreFS && c.Store != StoreSQLite {
		return fmt.Errorf("store must be %q or %q, got %q", StoreFS, StoreSQLite, c.Store)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("momentum must be in [0, 1), got %g", c.Momentum)
	}
	if c.TrainBatches <= 0 || c.ValBatches <= 0 {
		return fmt.Errorf("train_batches and val_batches must be positive")
	}
	return nil
}
