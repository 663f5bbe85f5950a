package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Artifact names inside a run's checkpoint area.
const (
	lastModelFile = "last_model.bin"
	bestModelFile = "best_model.bin"
	optimizerFile = "optimizer.bin"
	schedulerFile = "scheduler.bin"
	recordFile    = "last.json"
	lrFile        = "lr.f64"
	trainLossFile = "train_loss.f64"
	evalLossFile  = "eval_loss.f64"

	filePerm = 0o644
)

// FSStore persists checkpoints as a fixed file set inside a run's
// checkpoint directory. Each artifact is written to a temp file and renamed
// into place, so a crash mid-write never corrupts the previous artifact.
type FSStore struct {
	dir    string
	epochs int

	mu     sync.Mutex
	closed bool
}

// NewFSStore opens a filesystem store rooted at dir, which must already
// exist (the run locator creates it). epochs is the run's epoch budget and
// fixes the history array length for both Save and Load.
func NewFSStore(dir string, epochs int) (*FSStore, error) {
	if epochs <= 0 {
		return nil, fmt.Errorf("epoch budget must be positive, got %d", epochs)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open checkpoint directory: %s is not a directory", dir)
	}
	return &FSStore{dir: dir, epochs: epochs}, nil
}

// Save implements Store.
func (s *FSStore) Save(ctx context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := state.Validate(s.epochs); err != nil {
		return err
	}

	record, err := marshalRecord(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint record: %w", err)
	}

	artifacts := map[string][]byte{
		lastModelFile: state.Model,
		optimizerFile: state.Optimizer,
		schedulerFile: state.Scheduler,
		recordFile:    record,
		lrFile:        encodeFloats(state.LR),
		trainLossFile: encodeFloats(state.TrainLoss),
		evalLossFile:  encodeFloats(state.EvalLoss),
	}
	for name, data := range artifacts {
		if err := s.writeAtomic(name, data); err != nil {
			return err
		}
	}
	return nil
}

// Load implements Store.
func (s *FSStore) Load(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	state := &State{}

	var err error
	if state.Model, err = s.readArtifact(lastModelFile); err != nil {
		return nil, err
	}
	if state.Optimizer, err = s.readArtifact(optimizerFile); err != nil {
		return nil, err
	}
	if state.Scheduler, err = s.readArtifact(schedulerFile); err != nil {
		return nil, err
	}

	record, err := s.readArtifact(recordFile)
	if err != nil {
		return nil, err
	}
	if err := unmarshalRecord(record, state); err != nil {
		return nil, err
	}

	for _, a := range []struct {
		name string
		dst  *[]float64
	}{
		{lrFile, &state.LR},
		{trainLossFile, &state.TrainLoss},
		{evalLossFile, &state.EvalLoss},
	} {
		data, err := s.readArtifact(a.name)
		if err != nil {
			return nil, err
		}
		if *a.dst, err = decodeFloats(data, s.epochs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", a.name, err)
		}
	}

	if err := state.Validate(s.epochs); err != nil {
		return nil, err
	}
	return state, nil
}

// SaveBest implements Store.
func (s *FSStore) SaveBest(ctx context.Context, model []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	return s.writeAtomic(bestModelFile, model)
}

// LoadBest implements Store.
func (s *FSStore) LoadBest(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.readArtifact(bestModelFile)
}

// Close implements Store.
func (s *FSStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// writeAtomic writes an artifact via temp-file-then-rename.
func (s *FSStore) writeAtomic(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// readArtifact reads an artifact, mapping a missing file to ErrNotFound.
func (s *FSStore) readArtifact(name string) ([]byte, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
