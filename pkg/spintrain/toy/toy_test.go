package toy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkellner/spintrain/pkg/spintrain"
)

func TestLinearModelForward(t *testing.T) {
	m := NewLinearModel(2)
	m.W = Vec{2, 3}
	m.B = 1

	out, err := m.Forward(Vec{1, 2})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 9.0, out[0], 1e-12)
}

func TestLinearModelForwardRejectsWrongWidth(t *testing.T) {
	m := NewLinearModel(2)
	_, err := m.Forward(Vec{1, 2, 3})
	assert.Error(t, err)
}

func TestLinearModelStateRoundTrip(t *testing.T) {
	m := NewLinearModel(3)
	m.W = Vec{0.1, -0.2, 0.3}
	m.B = 0.5

	blob, err := m.ExportState()
	require.NoError(t, err)

	restored := NewLinearModel(1)
	require.NoError(t, restored.ImportState(blob))
	assert.Equal(t, m.W, restored.W)
	assert.Equal(t, m.B, restored.B)
}

func TestMSEBackwardRequiresTrainingMode(t *testing.T) {
	m := NewLinearModel(1)
	loss := MSE{Model: m}

	m.EvalMode()
	pred, err := m.Forward(Vec{1})
	require.NoError(t, err)
	lv, err := loss.Evaluate(pred, Vec{0})
	require.NoError(t, err)
	assert.Error(t, lv.Backward())
}

func TestSGDStepMovesAgainstGradient(t *testing.T) {
	m := NewLinearModel(1)
	m.W = Vec{0}
	m.B = 0
	opt := NewSGD(m, 0.1, 0)
	loss := MSE{Model: m}

	m.TrainMode()
	opt.ZeroGrad()
	pred, err := m.Forward(Vec{1})
	require.NoError(t, err)
	lv, err := loss.Evaluate(pred, Vec{2})
	require.NoError(t, err)
	require.NoError(t, lv.Backward())
	require.NoError(t, opt.Step())

	// diff = -2, dL/dw = 2*diff*x = -4, w -= lr*grad.
	assert.InDelta(t, 0.4, m.W[0], 1e-12)
	assert.InDelta(t, 0.4, m.B, 1e-12)
}

func TestSGDStateRoundTrip(t *testing.T) {
	m := NewLinearModel(2)
	opt := NewSGD(m, 0.05, 0.9)
	opt.vW = Vec{0.1, 0.2}
	opt.vB = 0.3

	blob, err := opt.ExportState()
	require.NoError(t, err)

	restored := NewSGD(NewLinearModel(2), 0.5, 0.5)
	require.NoError(t, restored.ImportState(blob))
	assert.Equal(t, 0.05, restored.LR)
	assert.Equal(t, 0.9, restored.Momentum)
	assert.Equal(t, Vec{0.1, 0.2}, restored.vW)
	assert.Equal(t, 0.3, restored.vB)
}

func TestPlateauReducesRateAfterPatience(t *testing.T) {
	opt := NewSGD(NewLinearModel(1), 1.0, 0)
	sched := NewPlateau(opt, 0.5, 1, 0.1)

	sched.Advance(1.0) // best = 1.0
	assert.Equal(t, 1.0, sched.Rate())

	sched.Advance(1.0) // bad = 1, within patience
	assert.Equal(t, 1.0, sched.Rate())

	sched.Advance(1.0) // bad = 2 > patience, halve
	assert.Equal(t, 0.5, sched.Rate())

	sched.Advance(0.5) // improvement resets the counter
	sched.Advance(0.6)
	assert.Equal(t, 0.5, sched.Rate())
}

func TestPlateauFloorsAtMinRate(t *testing.T) {
	opt := NewSGD(NewLinearModel(1), 0.3, 0)
	sched := NewPlateau(opt, 0.1, 0, 0.2)

	sched.Advance(1.0)
	sched.Advance(1.0)
	assert.Equal(t, 0.2, sched.Rate())
}

func TestPlateauStateRoundTrip(t *testing.T) {
	opt := NewSGD(NewLinearModel(1), 0.05, 0)
	sched := NewPlateau(opt, 0.5, 2, 0.001)
	sched.Advance(1.0)
	sched.Advance(1.5)

	blob, err := sched.ExportState()
	require.NoError(t, err)

	restored := NewPlateau(NewSGD(NewLinearModel(1), 0.05, 0), 0.9, 9, 0.9)
	require.NoError(t, restored.ImportState(blob))
	assert.Equal(t, 0.5, restored.Factor)
	assert.Equal(t, 2, restored.Patience)
	assert.Equal(t, 0.001, restored.MinRate)
	assert.Equal(t, 1.0, restored.best)
	assert.Equal(t, 1, restored.bad)
}

func TestSliceIterator(t *testing.T) {
	batches := []spintrain.Batch[Vec]{
		{Input: Vec{1}, Target: Vec{2}},
		{Input: Vec{3}, Target: Vec{4}},
	}
	it := NewSliceIterator(batches)

	for pass := 0; pass < 2; pass++ {
		require.NoError(t, it.Reset())
		for i := range batches {
			b, err := it.Next()
			require.NoError(t, err)
			assert.Equal(t, batches[i], b)
		}
		_, err := it.Next()
		assert.ErrorIs(t, err, spintrain.ErrEndOfEpoch)
	}
}

func TestLinearDataset(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := Vec{2, -1}
	batches := LinearDataset(rng, 10, w, 0.5, 0)

	require.Len(t, batches, 10)
	for _, b := range batches {
		require.Len(t, b.Input, 2)
		require.Len(t, b.Target, 1)
		want := 0.5 + w[0]*b.Input[0] + w[1]*b.Input[1]
		assert.InDelta(t, want, b.Target[0], 1e-12)
	}
}

func TestLinearDatasetIsDeterministicPerSeed(t *testing.T) {
	a := LinearDataset(rand.New(rand.NewSource(7)), 5, Vec{1}, 0, 0.1)
	b := LinearDataset(rand.New(rand.NewSource(7)), 5, Vec{1}, 0, 0.1)
	assert.Equal(t, a, b)
}

func TestTrainingConvergesOnLinearData(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	target := Vec{1.5, -0.5}
	data := LinearDataset(rng, 200, target, 0.25, 0)

	m := NewLinearModel(2)
	opt := NewSGD(m, 0.05, 0.9)
	loss := MSE{Model: m}

	m.TrainMode()
	for pass := 0; pass < 5; pass++ {
		for _, b := range data {
			opt.ZeroGrad()
			pred, err := m.Forward(b.Input)
			require.NoError(t, err)
			lv, err := loss.Evaluate(pred, b.Target)
			require.NoError(t, err)
			require.NoError(t, lv.Backward())
			require.NoError(t, opt.Step())
		}
	}

	assert.InDelta(t, target[0], m.W[0], 0.05)
	assert.InDelta(t, target[1], m.W[1], 0.05)
	assert.InDelta(t, 0.25, m.B, 0.05)
}
