package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists the checkpoint in a single SQLite database, one
// artifact per run instead of a file set. It is suitable for
// single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	epochs int

	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore opens a SQLite checkpoint store at path (":memory:" for
// testing). epochs is the run's epoch budget and fixes the history array
// length for both Save and Load.
func NewSQLiteStore(path string, epochs int) (*SQLiteStore, error) {
	if epochs <= 0 {
		return nil, fmt.Errorf("epoch budget must be positive, got %d", epochs)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// The checkpoint is a singleton row: overwrite semantics, not history.
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoint (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			model BLOB NOT NULL,
			optimizer BLOB NOT NULL,
			scheduler BLOB NOT NULL,
			best_eval_loss REAL NOT NULL,
			last_epoch INTEGER NOT NULL,
			time_cost REAL NOT NULL,
			lr BLOB NOT NULL,
			train_loss BLOB NOT NULL,
			eval_loss BLOB NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoint table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS best_model (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create best_model table: %w", err)
	}

	return &SQLiteStore{db: db, epochs: epochs}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := state.Validate(s.epochs); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (
			id, model, optimizer, scheduler,
			best_eval_loss, last_epoch, time_cost,
			lr, train_loss, eval_loss, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			model = excluded.model,
			optimizer = excluded.optimizer,
			scheduler = excluded.scheduler,
			best_eval_loss = excluded.best_eval_loss,
			last_epoch = excluded.last_epoch,
			time_cost = excluded.time_cost,
			lr = excluded.lr,
			train_loss = excluded.train_loss,
			eval_loss = excluded.eval_loss,
			updated_at = excluded.updated_at
	`,
		state.Model, state.Optimizer, state.Scheduler,
		state.BestEvalLoss, state.LastEpoch, state.TimeCost,
		encodeFloats(state.LR), encodeFloats(state.TrainLoss), encodeFloats(state.EvalLoss),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	state := &State{}
	var lr, trainLoss, evalLoss []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT model, optimizer, scheduler,
		       best_eval_loss, last_epoch, time_cost,
		       lr, train_loss, eval_loss
		FROM checkpoint WHERE id = 1
	`).Scan(
		&state.Model, &state.Optimizer, &state.Scheduler,
		&state.BestEvalLoss, &state.LastEpoch, &state.TimeCost,
		&lr, &trainLoss, &evalLoss,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	if state.LR, err = decodeFloats(lr, s.epochs); err != nil {
		return nil, fmt.Errorf("decode lr: %w", err)
	}
	if state.TrainLoss, err = decodeFloats(trainLoss, s.epochs); err != nil {
		return nil, fmt.Errorf("decode train_loss: %w", err)
	}
	if state.EvalLoss, err = decodeFloats(evalLoss, s.epochs); err != nil {
		return nil, fmt.Errorf("decode eval_loss: %w", err)
	}

	if err := state.Validate(s.epochs); err != nil {
		return nil, err
	}
	return state, nil
}

// SaveBest implements Store.
func (s *SQLiteStore) SaveBest(ctx context.Context, model []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO best_model (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, model, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save best model: %w", err)
	}
	return nil
}

// LoadBest implements Store.
func (s *SQLiteStore) LoadBest(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM best_model WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load best model: %w", err)
	}
	return data, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
