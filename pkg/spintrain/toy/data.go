package toy

import (
	"math/rand"

	"github.com/mkellner/spintrain/pkg/spintrain"
)

// SliceIterator serves a fixed batch slice, restartable via Reset.
type SliceIterator struct {
	batches []spintrain.Batch[Vec]
	pos     int
}

// NewSliceIterator returns an iterator over the given batches.
func NewSliceIterator(batches []spintrain.Batch[Vec]) *SliceIterator {
	return &SliceIterator{batches: batches}
}

// Reset rewinds to the first batch.
func (s *SliceIterator) Reset() error {
	s.pos = 0
	return nil
}

// Next returns the next batch, or spintrain.ErrEndOfEpoch when exhausted.
func (s *SliceIterator) Next() (spintrain.Batch[Vec], error) {
	if s.pos >= len(s.batches) {
		return spintrain.Batch[Vec]{}, spintrain.ErrEndOfEpoch
	}
	b := s.batches[s.pos]
	s.pos++
	return b, nil
}

// LinearDataset generates n noisy samples of y = w·x + b with features
// drawn uniformly from [-1, 1].
func LinearDataset(rng *rand.Rand, n int, w Vec, b, noise float64) []spintrain.Batch[Vec] {
	batches := make([]spintrain.Batch[Vec], n)
	for i := range batches {
		x := make(Vec, len(w))
		y := b
		for j := range x {
			x[j] = rng.Float64()*2 - 1
			y += w[j] * x[j]
		}
		y += noise * rng.NormFloat64()
		batches[i] = spintrain.Batch[Vec]{Input: x, Target: Vec{y}}
	}
	return batches
}
