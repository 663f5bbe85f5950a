package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteStoreRejectsBadBudget(t *testing.T) {
	_, err := NewSQLiteStore(":memory:", 0)
	assert.Error(t, err)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.db")

	s, err := NewSQLiteStore(path, 3)
	require.NoError(t, err)

	state := sampleState(3)
	require.NoError(t, s.Save(context.Background(), state))
	require.NoError(t, s.SaveBest(context.Background(), []byte("best")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path, 3)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state, loaded)

	best, err := reopened.LoadBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("best"), best)
}

func TestSQLiteStoreBudgetMismatchOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.db")

	s, err := NewSQLiteStore(path, 3)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleState(3)))
	require.NoError(t, s.Close())

	// Reopening with a different budget must refuse the stored histories.
	mismatched, err := NewSQLiteStore(path, 5)
	require.NoError(t, err)
	defer mismatched.Close()

	_, err = mismatched.Load(context.Background())
	assert.ErrorIs(t, err, ErrArrayLength)
}

func TestSQLiteStoreCloseIsIdempotent(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoint.db"), 3)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
