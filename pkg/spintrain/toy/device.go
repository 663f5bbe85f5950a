package toy

import "github.com/mkellner/spintrain/pkg/spintrain"

// CPU is the host compute target. Batches are already in host memory, so
// placement is the identity.
type CPU struct{}

// Place implements spintrain.Device.
func (CPU) Place(b spintrain.Batch[Vec]) (spintrain.Batch[Vec], error) {
	return b, nil
}

// String implements spintrain.Device.
func (CPU) String() string { return "cpu" }
