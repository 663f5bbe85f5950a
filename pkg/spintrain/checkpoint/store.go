// Package checkpoint persists the composite training state for crash
// recovery: model/optimizer/scheduler blobs, scalar bookkeeping, the
// per-epoch metric histories, and the best-model snapshot.
package checkpoint

import (
	"context"
	"errors"
)

// Store persists exactly one State and at most one best-model snapshot per
// training run, with overwrite semantics: no versioned snapshots, no
// append. Save is called once per completed epoch; Load at most once, at
// resume time.
type Store interface {
	// Save overwrites the run's checkpoint with s.
	// Fails if s violates the store's configured epoch budget.
	Save(ctx context.Context, s *State) error

	// Load reads the run's checkpoint back wholesale.
	// Returns ErrNotFound if no checkpoint exists, and fails on any
	// missing artifact, malformed record, or wrong array length. There is
	// no partial-recovery mode.
	Load(ctx context.Context) (*State, error)

	// SaveBest overwrites the best-model snapshot with the given
	// serialized model parameters.
	SaveBest(ctx context.Context, model []byte) error

	// LoadBest reads the best-model snapshot.
	// Returns ErrNotFound if no snapshot has been written.
	LoadBest(ctx context.Context) ([]byte, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates no checkpoint (or best snapshot) exists.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrBadRecord indicates the scalar record is malformed or missing keys.
	ErrBadRecord = errors.New("malformed checkpoint record")

	// ErrArrayLength indicates a history array does not match the epoch budget.
	ErrArrayLength = errors.New("history array length mismatch")
)
