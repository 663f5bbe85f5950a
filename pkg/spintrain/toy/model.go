package toy

import (
	"encoding/json"
	"fmt"
)

// Vec is the tensor type of the toy collaborators: a flat float64 vector.
// A model input is one sample's feature vector; predictions and targets
// are length-1 vectors.
type Vec []float64

// LinearModel predicts a scalar from a feature vector: y = w·x + b.
type LinearModel struct {
	W Vec
	B float64

	gradW Vec
	gradB float64

	training  bool
	lastInput Vec
}

// NewLinearModel returns a zero-initialized model over the given number of
// features.
func NewLinearModel(features int) *LinearModel {
	return &LinearModel{
		W:     make(Vec, features),
		gradW: make(Vec, features),
	}
}

// Forward runs the forward pass on one sample. In training mode the input
// is retained for the backward pass.
func (m *LinearModel) Forward(x Vec) (Vec, error) {
	if len(x) != len(m.W) {
		return nil, fmt.Errorf("input has %d features, model has %d", len(x), len(m.W))
	}

	y := m.B
	for i, v := range x {
		y += m.W[i] * v
	}

	if m.training {
		m.lastInput = append(m.lastInput[:0], x...)
	}
	return Vec{y}, nil
}

// TrainMode switches the model into training mode.
func (m *LinearModel) TrainMode() { m.training = true }

// EvalMode switches the model into evaluation mode; no inputs are retained
// and no gradients accumulate.
func (m *LinearModel) EvalMode() { m.training = false }

// linearState is the serialized parameter set.
type linearState struct {
	W Vec     `json:"w"`
	B float64 `json:"b"`
}

// ExportState serializes the model parameters.
func (m *LinearModel) ExportState() ([]byte, error) {
	return json.Marshal(linearState{W: m.W, B: m.B})
}

// ImportState restores parameters from a blob produced by ExportState.
func (m *LinearModel) ImportState(data []byte) error {
	var s linearState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode model state: %w", err)
	}
	m.W = s.W
	m.B = s.B
	m.gradW = make(Vec, len(s.W))
	m.gradB = 0
	return nil
}
