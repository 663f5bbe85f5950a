package toy

import (
	"encoding/json"
	"fmt"
)

// SGD applies stochastic gradient descent with momentum to a LinearModel.
type SGD struct {
	Model    *LinearModel
	LR       float64
	Momentum float64

	vW Vec
	vB float64
}

// NewSGD returns an optimizer bound to the model.
func NewSGD(m *LinearModel, lr, momentum float64) *SGD {
	return &SGD{
		Model:    m,
		LR:       lr,
		Momentum: momentum,
		vW:       make(Vec, len(m.W)),
	}
}

// ZeroGrad clears the model's accumulated gradients.
func (o *SGD) ZeroGrad() {
	for i := range o.Model.gradW {
		o.Model.gradW[i] = 0
	}
	o.Model.gradB = 0
}

// Step applies one momentum update: v = momentum*v + grad; w -= lr*v.
func (o *SGD) Step() error {
	for i := range o.Model.W {
		o.vW[i] = o.Momentum*o.vW[i] + o.Model.gradW[i]
		o.Model.W[i] -= o.LR * o.vW[i]
	}
	o.vB = o.Momentum*o.vB + o.Model.gradB
	o.Model.B -= o.LR * o.vB
	return nil
}

// sgdState is the serialized optimizer internals.
type sgdState struct {
	LR       float64 `json:"lr"`
	Momentum float64 `json:"momentum"`
	VW       Vec     `json:"vw"`
	VB       float64 `json:"vb"`
}

// ExportState serializes the learning rate and momentum buffers.
func (o *SGD) ExportState() ([]byte, error) {
	return json.Marshal(sgdState{LR: o.LR, Momentum: o.Momentum, VW: o.vW, VB: o.vB})
}

// ImportState restores internals from a blob produced by ExportState.
func (o *SGD) ImportState(data []byte) error {
	var s sgdState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode optimizer state: %w", err)
	}
	o.LR = s.LR
	o.Momentum = s.Momentum
	o.vW = s.VW
	o.vB = s.VB
	return nil
}
