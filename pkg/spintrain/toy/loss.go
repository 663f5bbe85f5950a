package toy

import (
	"errors"
	"fmt"

	"github.com/mkellner/spintrain/pkg/spintrain"
)

// MSE is the mean-squared-error loss over the toy model's scalar outputs.
// Backward writes gradients straight into the bound model.
type MSE struct {
	Model *LinearModel
}

// Evaluate computes the squared error for one sample.
func (l MSE) Evaluate(pred, target Vec) (spintrain.LossValue, error) {
	if len(pred) != 1 || len(target) != 1 {
		return nil, fmt.Errorf("mse expects scalar outputs, got %d and %d", len(pred), len(target))
	}
	return &mseValue{model: l.Model, diff: pred[0] - target[0]}, nil
}

// mseValue is one sample's loss with its backward pass.
type mseValue struct {
	model *LinearModel
	diff  float64
}

// Item returns the scalar loss.
func (v *mseValue) Item() float64 { return v.diff * v.diff }

// Backward accumulates dL/dw = 2*diff*x and dL/db = 2*diff into the model.
func (v *mseValue) Backward() error {
	if !v.model.training {
		return errors.New("backward pass outside training mode")
	}
	if v.model.lastInput == nil {
		return errors.New("backward pass before forward pass")
	}
	for i, x := range v.model.lastInput {
		v.model.gradW[i] += 2 * v.diff * x
	}
	v.model.gradB += 2 * v.diff
	return nil
}
