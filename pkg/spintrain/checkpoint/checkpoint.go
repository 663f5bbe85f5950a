package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// State is the composite unit of persisted training progress. It is created
// zeroed at fresh-start time, mutated in place once per completed epoch,
// persisted after every epoch, and read back wholesale on resume.
//
// The three history slices have identical length (the configured epoch
// budget); the entry for epoch e lives at index e-1, and entries past
// LastEpoch are uninitialized.
type State struct {
	// Model is the model's serialized parameters, opaque to this package.
	Model []byte
	// Optimizer is the optimizer's serialized internals.
	Optimizer []byte
	// Scheduler is the scheduler's serialized internals.
	Scheduler []byte

	// BestEvalLoss is the minimum validation loss observed so far.
	BestEvalLoss float64
	// LastEpoch is the highest fully completed epoch; 0 means none.
	LastEpoch int
	// TimeCost is cumulative wall-clock training seconds.
	TimeCost float64

	// LR holds the learning rate recorded at each epoch.
	LR []float64
	// TrainLoss holds the average training loss of each epoch.
	TrainLoss []float64
	// EvalLoss holds the average validation loss of each epoch.
	EvalLoss []float64
}

// NewState returns a zeroed State for a fresh run with the given epoch
// budget. BestEvalLoss starts at the largest representable value so any
// real validation loss improves on it.
func NewState(epochs int) *State {
	return &State{
		BestEvalLoss: math.MaxFloat64,
		LR:           make([]float64, epochs),
		TrainLoss:    make([]float64, epochs),
		EvalLoss:     make([]float64, epochs),
	}
}

// Validate checks the state's structural invariants against the epoch
// budget: all three histories sized to the budget, and LastEpoch within
// [0, budget].
func (s *State) Validate(epochs int) error {
	for name, h := range map[string][]float64{"lr": s.LR, "train_loss": s.TrainLoss, "eval_loss": s.EvalLoss} {
		if len(h) != epochs {
			return fmt.Errorf("%w: %s has %d entries, budget is %d", ErrArrayLength, name, len(h), epochs)
		}
	}
	if s.LastEpoch < 0 || s.LastEpoch > epochs {
		return fmt.Errorf("%w: last_epoch %d outside [0, %d]", ErrBadRecord, s.LastEpoch, epochs)
	}
	return nil
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := *s
	c.Model = append([]byte(nil), s.Model...)
	c.Optimizer = append([]byte(nil), s.Optimizer...)
	c.Scheduler = append([]byte(nil), s.Scheduler...)
	c.LR = append([]float64(nil), s.LR...)
	c.TrainLoss = append([]float64(nil), s.TrainLoss...)
	c.EvalLoss = append([]float64(nil), s.EvalLoss...)
	return &c
}

// record is the small structured portion of a checkpoint. Fields are
// pointers so a missing key is distinguishable from a zero value.
type record struct {
	BestEvalLoss *float64 `json:"best_eval_loss"`
	LastEpoch    *int     `json:"last_epoch"`
	TimeCost     *float64 `json:"time_cost"`
}

// marshalRecord serializes the scalar bookkeeping fields.
func marshalRecord(s *State) ([]byte, error) {
	return json.Marshal(record{
		BestEvalLoss: &s.BestEvalLoss,
		LastEpoch:    &s.LastEpoch,
		TimeCost:     &s.TimeCost,
	})
}

// unmarshalRecord restores the scalar bookkeeping fields into s.
// Missing keys or malformed JSON yield ErrBadRecord.
func unmarshalRecord(data []byte, s *State) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	if r.BestEvalLoss == nil || r.LastEpoch == nil || r.TimeCost == nil {
		return fmt.Errorf("%w: missing keys", ErrBadRecord)
	}
	s.BestEvalLoss = *r.BestEvalLoss
	s.LastEpoch = *r.LastEpoch
	s.TimeCost = *r.TimeCost
	return nil
}

// encodeFloats serializes a float64 slice as fixed-width little-endian.
func encodeFloats(vals []float64) []byte {
	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

// decodeFloats deserializes exactly n float64 values. A byte length not
// matching n yields ErrArrayLength.
func decodeFloats(data []byte, n int) ([]float64, error) {
	if len(data) != 8*n {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrArrayLength, len(data), 8*n)
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return vals, nil
}
