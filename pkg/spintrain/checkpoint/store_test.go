package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory builds a fresh store with the given epoch budget. Every
// Store implementation must pass the contract suite below.
type storeFactory func(t *testing.T, epochs int) Store

func fsFactory(t *testing.T, epochs int) Store {
	s, err := NewFSStore(t.TempDir(), epochs)
	require.NoError(t, err)
	return s
}

func sqliteFactory(t *testing.T, epochs int) Store {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoint.db"), epochs)
	require.NoError(t, err)
	return s
}

func TestStoreContract(t *testing.T) {
	factories := map[string]storeFactory{
		"fs":     fsFactory,
		"sqlite": sqliteFactory,
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			t.Run("load before save returns not found", func(t *testing.T) {
				s := factory(t, 3)
				defer s.Close()

				_, err := s.Load(context.Background())
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("save then load round-trips", func(t *testing.T) {
				s := factory(t, 3)
				defer s.Close()

				state := sampleState(3)
				require.NoError(t, s.Save(context.Background(), state))

				loaded, err := s.Load(context.Background())
				require.NoError(t, err)
				assert.Equal(t, state, loaded)
			})

			t.Run("save overwrites previous checkpoint", func(t *testing.T) {
				s := factory(t, 3)
				defer s.Close()

				first := sampleState(3)
				require.NoError(t, s.Save(context.Background(), first))

				second := sampleState(3)
				second.LastEpoch = 2
				second.TrainLoss[1] = 0.33
				second.Model = []byte("model v2")
				require.NoError(t, s.Save(context.Background(), second))

				loaded, err := s.Load(context.Background())
				require.NoError(t, err)
				assert.Equal(t, second, loaded)
			})

			t.Run("save rejects wrong array length", func(t *testing.T) {
				s := factory(t, 3)
				defer s.Close()

				state := sampleState(5)
				err := s.Save(context.Background(), state)
				assert.ErrorIs(t, err, ErrArrayLength)
			})

			t.Run("best model round-trips and overwrites", func(t *testing.T) {
				s := factory(t, 3)
				defer s.Close()

				_, err := s.LoadBest(context.Background())
				assert.ErrorIs(t, err, ErrNotFound)

				require.NoError(t, s.SaveBest(context.Background(), []byte("best v1")))
				require.NoError(t, s.SaveBest(context.Background(), []byte("best v2")))

				best, err := s.LoadBest(context.Background())
				require.NoError(t, err)
				assert.Equal(t, []byte("best v2"), best)
			})

			t.Run("operations fail after close", func(t *testing.T) {
				s := factory(t, 3)
				require.NoError(t, s.Close())

				assert.ErrorIs(t, s.Save(context.Background(), sampleState(3)), ErrStoreClosed)
				_, err := s.Load(context.Background())
				assert.ErrorIs(t, err, ErrStoreClosed)
				assert.ErrorIs(t, s.SaveBest(context.Background(), nil), ErrStoreClosed)
				_, err = s.LoadBest(context.Background())
				assert.ErrorIs(t, err, ErrStoreClosed)
			})
		})
	}
}

// sampleState builds a populated state sized to the given budget.
func sampleState(epochs int) *State {
	s := NewState(epochs)
	s.Model = []byte("model parameters")
	s.Optimizer = []byte("optimizer internals")
	s.Scheduler = []byte("scheduler internals")
	s.BestEvalLoss = 0.42
	s.LastEpoch = 1
	s.TimeCost = 3.75
	s.LR[0] = 0.05
	s.TrainLoss[0] = 0.9
	s.EvalLoss[0] = 0.8
	return s
}
