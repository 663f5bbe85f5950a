package spintrain

import "errors"

// ErrEndOfEpoch is returned by BatchIterator.Next when the iterator is
// exhausted for the current epoch. It is analogous to io.EOF: it signals
// normal termination, not a failure.
var ErrEndOfEpoch = errors.New("end of epoch")

// Batch is one (input, target) pair produced by a BatchIterator.
type Batch[T any] struct {
	Input  T
	Target T
}

// Model is the trainable model collaborator.
//
// The trainer never inspects model internals. Parameters cross the boundary
// only as opaque blobs via ExportState/ImportState, stored and restored
// atomically alongside the rest of the checkpoint.
//
// EvalMode puts the model into evaluation mode and implies that no gradient
// tracking happens during subsequent Forward calls; the validation pass
// relies on this.
type Model[T any] interface {
	// Forward runs the forward pass on a batch of inputs.
	Forward(input T) (T, error)

	// TrainMode switches the model into training mode.
	TrainMode()

	// EvalMode switches the model into evaluation mode (no gradient tracking).
	EvalMode()

	// ExportState serializes the model parameters.
	ExportState() ([]byte, error)

	// ImportState restores parameters from a blob produced by ExportState.
	ImportState(data []byte) error
}

// Optimizer applies parameter updates after backpropagation.
type Optimizer interface {
	// ZeroGrad clears accumulated gradients before a forward pass.
	ZeroGrad()

	// Step applies one parameter update from the current gradients.
	Step() error

	// ExportState serializes optimizer internals (momentum buffers etc.).
	ExportState() ([]byte, error)

	// ImportState restores internals from a blob produced by ExportState.
	ImportState(data []byte) error
}

// Scheduler adjusts the optimizer's learning rate from observed metrics.
type Scheduler interface {
	// Advance feeds one epoch's driving metric into the schedule.
	Advance(metric float64)

	// Rate returns the schedule's current learning rate.
	Rate() float64

	// ExportState serializes scheduler internals.
	ExportState() ([]byte, error)

	// ImportState restores internals from a blob produced by ExportState.
	ImportState(data []byte) error
}

// LossValue is the result of one loss evaluation.
type LossValue interface {
	// Backward backpropagates gradients for this loss value.
	Backward() error

	// Item returns the scalar loss.
	Item() float64
}

// Loss computes the training objective between predictions and targets.
type Loss[T any] interface {
	Evaluate(pred, target T) (LossValue, error)
}

// BatchIterator produces a finite, restartable sequence of batches.
// One full Reset/Next cycle over the training iterator followed by one over
// the validation iterator is an epoch.
type BatchIterator[T any] interface {
	// Reset rewinds the iterator to the start of its sequence.
	Reset() error

	// Next returns the next batch, or ErrEndOfEpoch when exhausted.
	Next() (Batch[T], error)
}

// Device is the explicit compute-target handle. Batches are placed on the
// device before the forward pass; a transfer failure is fatal to the run.
type Device[T any] interface {
	// Place moves a batch onto the device.
	Place(b Batch[T]) (Batch[T], error)

	// String names the device, e.g. "cpu" or "cuda:0".
	String() string
}
