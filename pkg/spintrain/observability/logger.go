// Package observability provides structured logging, metrics, and tracing
// for spintrain training runs.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// The per-epoch run log written next to the checkpoints is separate; this
// package covers operator-facing telemetry only.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id and run_index fields.
func EnrichLogger(logger *slog.Logger, runID string, runIndex int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.Int("run_index", runIndex),
	)
}

// LogRunStart logs the start of a fresh training run.
func LogRunStart(logger *slog.Logger, runIndex, epochs int, device string) {
	if logger == nil {
		return
	}
	logger.Info("training run starting",
		slog.Int("run_index", runIndex),
		slog.Int("epochs", epochs),
		slog.String("device", device),
	)
}

// LogRunResumed logs a successful resume from a checkpoint.
func LogRunResumed(logger *slog.Logger, runIndex, lastEpoch, epochs int) {
	if logger == nil {
		return
	}
	logger.Info("training run resumed",
		slog.Int("run_index", runIndex),
		slog.Int("last_epoch", lastEpoch),
		slog.Int("epochs", epochs),
	)
}

// LogRunComplete logs a run that reached its epoch budget.
func LogRunComplete(logger *slog.Logger, runIndex, epochsRun int, bestEvalLoss, timeCost float64) {
	if logger == nil {
		return
	}
	logger.Info("training run completed",
		slog.Int("run_index", runIndex),
		slog.Int("epochs_run", epochsRun),
		slog.Float64("best_eval_loss", bestEvalLoss),
		slog.Float64("time_cost_s", timeCost),
	)
}

// LogRunError logs a fatal run failure.
func LogRunError(logger *slog.Logger, runIndex, epoch int, err error) {
	if logger == nil {
		return
	}
	logger.Error("training run failed",
		slog.Int("run_index", runIndex),
		slog.Int("epoch", epoch),
		slog.String("error", err.Error()),
	)
}

// LogEpochComplete logs one completed epoch.
func LogEpochComplete(logger *slog.Logger, epoch int, trainLoss, evalLoss, rate, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("epoch completed",
		slog.Int("epoch", epoch),
		slog.Float64("train_loss", trainLoss),
		slog.Float64("eval_loss", evalLoss),
		slog.Float64("learning_rate", rate),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogBestModel logs a new best-model snapshot.
func LogBestModel(logger *slog.Logger, epoch int, evalLoss float64) {
	if logger == nil {
		return
	}
	logger.Info("best model updated",
		slog.Int("epoch", epoch),
		slog.Float64("eval_loss", evalLoss),
	)
}

// LogCheckpoint logs a checkpoint write.
func LogCheckpoint(logger *slog.Logger, epoch int, sizeBytes int64) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.Int("epoch", epoch),
		slog.Int64("size_bytes", sizeBytes),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in
// milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
