package spintrain

import (
	"log/slog"
	"path/filepath"

	"github.com/mkellner/spintrain/pkg/spintrain/checkpoint"
	"github.com/mkellner/spintrain/pkg/spintrain/observability"
	"github.com/mkellner/spintrain/pkg/spintrain/run"
)

// StoreOpener opens a checkpoint store bound to a run's location.
// The epoch budget fixes the history array length for the store.
type StoreOpener func(r *run.Run, epochs int) (checkpoint.Store, error)

// OpenFSStore opens the filesystem checkpoint backend inside the run's
// checkpoint area. This is the default.
func OpenFSStore(r *run.Run, epochs int) (checkpoint.Store, error) {
	return checkpoint.NewFSStore(r.CheckpointDir(), epochs)
}

// OpenSQLiteStore opens the SQLite checkpoint backend inside the run's
// checkpoint area.
func OpenSQLiteStore(r *run.Run, epochs int) (checkpoint.Store, error) {
	return checkpoint.NewSQLiteStore(filepath.Join(r.CheckpointDir(), "checkpoint.db"), epochs)
}

// trainerConfig holds optional trainer behavior.
type trainerConfig struct {
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	openStore StoreOpener
}

// defaultTrainerConfig returns the default optional behavior: silent,
// no-op metrics, no tracing, filesystem checkpoint store.
func defaultTrainerConfig() trainerConfig {
	return trainerConfig{
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
		openStore: OpenFSStore,
	}
}

// Option configures optional trainer behavior.
type Option func(*trainerConfig)

// WithLogger enables structured logging on the given slog logger.
// Without this option the trainer emits no structured logs; the per-epoch
// run log file is written regardless.
func WithLogger(logger *slog.Logger) Option {
	return func(c *trainerConfig) {
		c.logger = logger
	}
}

// WithMetrics enables metric recording.
//
// Example:
//
//	trainer, err := spintrain.New(params,
//	    spintrain.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *trainerConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OTel spans for the run and each epoch.
// Configure the global tracer provider before training.
func WithTracing() Option {
	return func(c *trainerConfig) {
		c.spans = observability.NewSpanManager()
	}
}

// WithStore selects the checkpoint backend.
//
// Example:
//
//	trainer, err := spintrain.New(params,
//	    spintrain.WithStore(spintrain.OpenSQLiteStore))
func WithStore(open StoreOpener) Option {
	return func(c *trainerConfig) {
		if open != nil {
			c.openStore = open
		}
	}
}
