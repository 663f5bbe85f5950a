package spintrain

import (
	"errors"
	"fmt"
)

// Sentinel errors for construction and the epoch loop.
var (
	// ErrNoBatches indicates a batch iterator produced zero batches for an
	// epoch. Averaging over zero steps is undefined, so this is fatal.
	ErrNoBatches = errors.New("batch iterator produced no batches")

	// ErrNilCollaborator indicates a required collaborator was not provided.
	ErrNilCollaborator = errors.New("collaborator must not be nil")

	// ErrInvalidEpochs indicates a non-positive epoch budget.
	ErrInvalidEpochs = errors.New("epoch budget must be positive")

	// ErrNoBaseDir indicates the runs directory was not configured.
	ErrNoBaseDir = errors.New("base directory must not be empty")
)

// ConfigError indicates the trainer was configured against something that
// does not exist or does not make sense, such as resuming a run index with
// no checkpoint on disk. Configuration errors abort before any state is
// mutated.
type ConfigError struct {
	// Reason describes what was misconfigured.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("config: %s", e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IOError indicates a fatal persistence failure: checkpoint files missing,
// unreadable, or structurally inconsistent, a state blob that failed to
// export or import, or an epoch log that could not be written. There is no
// partial-recovery mode; a malformed checkpoint is never partially trusted.
type IOError struct {
	// Op is the operation that failed ("save", "load", "export model state", ...).
	Op string
	// Path is the file or directory involved, if known.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io: %s at %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("io: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *IOError) Unwrap() error {
	return e.Err
}

// ComputeError indicates a fatal failure inside a train or validation pass:
// an empty batch iterator, a device transfer failure, or an error from a
// collaborator's forward/backward/step.
type ComputeError struct {
	// Stage is the pass that failed: "train", "validate", or "transfer".
	Stage string
	// Epoch is the epoch being attempted when the failure occurred.
	Epoch int
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute: %s pass at epoch %d: %v", e.Stage, e.Epoch, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ComputeError) Unwrap() error {
	return e.Err
}
