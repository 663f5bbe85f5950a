// Command spintrain trains the bundled linear reference model with full
// checkpointing, and resumes interrupted runs.
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/mkellner/spintrain/pkg/spintrain"
	"github.com/mkellner/spintrain/pkg/spintrain/config"
	"github.com/mkellner/spintrain/pkg/spintrain/run"
	"github.com/mkellner/spintrain/pkg/spintrain/toy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "spintrain",
		Short:        "Resumable supervised training with per-epoch checkpoints",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML or JSON)")

	cmd.AddCommand(newTrainCmd(&configPath))
	cmd.AddCommand(newResumeCmd(&configPath))
	return cmd
}

func newTrainCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Start a fresh training run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			unlock, err := lockRunsDir(cfg.RunsDir)
			if err != nil {
				return err
			}
			defer unlock()

			trainer, err := buildTrainer(cfg)
			if err != nil {
				return err
			}
			defer trainer.Close()

			return trainer.Train(cmd.Context())
		},
	}
}

func newResumeCmd(configPath *string) *cobra.Command {
	index := run.Latest

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted training run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			unlock, err := lockRunsDir(cfg.RunsDir)
			if err != nil {
				return err
			}
			defer unlock()

			trainer, err := buildTrainer(cfg)
			if err != nil {
				return err
			}
			defer trainer.Close()

			if err := trainer.Resume(cmd.Context(), index); err != nil {
				return err
			}
			return trainer.Train(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&index, "index", run.Latest, "run index to resume (-1 for the latest)")
	return cmd
}

// loadConfig reads the config file, or falls back to the defaults.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.FromFile(path)
}

// lockRunsDir takes an exclusive advisory lock on the runs directory so two
// processes cannot drive runs under it at the same time.
func lockRunsDir(dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create runs directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".spintrain.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock runs directory: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("runs directory %s is locked by another process", dir)
	}
	return func() { _ = lock.Unlock() }, nil
}

// buildTrainer wires the toy pipeline from the configuration.
func buildTrainer(cfg config.Config) (*spintrain.Trainer[toy.Vec], error) {
	if cfg.Device != "cpu" {
		return nil, fmt.Errorf("unsupported device %q, only cpu is available", cfg.Device)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	target := toy.Vec{1.5, -0.5}

	model := toy.NewLinearModel(len(target))
	opt := toy.NewSGD(model, cfg.LearningRate, cfg.Momentum)

	params := spintrain.Params[toy.Vec]{
		Model:     model,
		Train:     toy.NewSliceIterator(toy.LinearDataset(rng, cfg.TrainBatches, target, 0.25, 0.01)),
		Val:       toy.NewSliceIterator(toy.LinearDataset(rng, cfg.ValBatches, target, 0.25, 0.01)),
		Optimizer: opt,
		Scheduler: toy.NewPlateau(opt, 0.5, 2, cfg.LearningRate/1000),
		Loss:      toy.MSE{Model: model},
		Device:    toy.CPU{},
		Epochs:    cfg.Epochs,
		BaseDir:   cfg.RunsDir,
	}

	open := spintrain.OpenFSStore
	if cfg.Store == config.StoreSQLite {
		open = spintrain.OpenSQLiteStore
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return spintrain.New(params,
		spintrain.WithLogger(logger),
		spintrain.WithStore(open),
	)
}
