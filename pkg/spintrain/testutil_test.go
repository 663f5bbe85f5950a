package spintrain_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkellner/spintrain/pkg/spintrain"
	"github.com/mkellner/spintrain/pkg/spintrain/checkpoint"
	"github.com/mkellner/spintrain/pkg/spintrain/run"
)

// The fakes below drive the trainer over T = float64 with scripted losses,
// so epoch-loop behavior is testable without real gradients.

// fakeModel tracks its mode and round-trips an opaque state blob.
type fakeModel struct {
	mode    string
	state   []byte
	imports int
}

func newFakeModel() *fakeModel {
	return &fakeModel{mode: "train", state: []byte("model-0")}
}

func (m *fakeModel) Forward(input float64) (float64, error) { return input, nil }
func (m *fakeModel) TrainMode()                             { m.mode = "train" }
func (m *fakeModel) EvalMode()                              { m.mode = "eval" }

func (m *fakeModel) ExportState() ([]byte, error) {
	return append([]byte(nil), m.state...), nil
}

func (m *fakeModel) ImportState(data []byte) error {
	m.state = append([]byte(nil), data...)
	m.imports++
	return nil
}

// fakeIterator produces a scripted number of batches per Reset cycle.
// Cycles past the end of perEpoch reuse the last entry.
type fakeIterator struct {
	perEpoch  []int
	cycle     int
	remaining int
}

func newFakeIterator(perEpoch ...int) *fakeIterator {
	return &fakeIterator{perEpoch: perEpoch}
}

func (it *fakeIterator) Reset() error {
	i := it.cycle
	if i >= len(it.perEpoch) {
		i = len(it.perEpoch) - 1
	}
	it.remaining = it.perEpoch[i]
	it.cycle++
	return nil
}

func (it *fakeIterator) Next() (spintrain.Batch[float64], error) {
	if it.remaining <= 0 {
		return spintrain.Batch[float64]{}, spintrain.ErrEndOfEpoch
	}
	it.remaining--
	return spintrain.Batch[float64]{Input: 1, Target: 1}, nil
}

// fakeOptimizer counts calls and round-trips a state blob.
type fakeOptimizer struct {
	zeroed  int
	stepped int
	state   []byte
	imports int
}

func newFakeOptimizer() *fakeOptimizer {
	return &fakeOptimizer{state: []byte("opt-0")}
}

func (o *fakeOptimizer) ZeroGrad()   { o.zeroed++ }
func (o *fakeOptimizer) Step() error { o.stepped++; return nil }

func (o *fakeOptimizer) ExportState() ([]byte, error) {
	return append([]byte(nil), o.state...), nil
}

func (o *fakeOptimizer) ImportState(data []byte) error {
	o.state = append([]byte(nil), data...)
	o.imports++
	return nil
}

// fakeScheduler records the metrics fed to it and lowers its rate by a
// fixed decay each epoch, so the recorded LR history is predictable.
type fakeScheduler struct {
	rate     float64
	decay    float64
	advanced []float64
	state    []byte
	imports  int
}

func newFakeScheduler(rate, decay float64) *fakeScheduler {
	return &fakeScheduler{rate: rate, decay: decay, state: []byte("sched-0")}
}

func (s *fakeScheduler) Advance(metric float64) {
	s.advanced = append(s.advanced, metric)
	s.rate *= s.decay
}

func (s *fakeScheduler) Rate() float64 { return s.rate }

func (s *fakeScheduler) ExportState() ([]byte, error) {
	return append([]byte(nil), s.state...), nil
}

func (s *fakeScheduler) ImportState(data []byte) error {
	s.state = append([]byte(nil), data...)
	s.imports++
	return nil
}

// fakeLoss pops scripted per-batch losses from separate train and eval
// queues, selected by the model's current mode.
type fakeLoss struct {
	model *fakeModel
	train []float64
	eval  []float64
}

func (l *fakeLoss) Evaluate(pred, target float64) (spintrain.LossValue, error) {
	queue := &l.train
	if l.model.mode == "eval" {
		queue = &l.eval
	}
	if len(*queue) == 0 {
		return nil, fmt.Errorf("loss queue for %s mode is empty", l.model.mode)
	}
	v := (*queue)[0]
	*queue = (*queue)[1:]
	return &fakeLossValue{item: v, model: l.model}, nil
}

// fakeLossValue refuses Backward outside training mode.
type fakeLossValue struct {
	item  float64
	model *fakeModel
}

func (v *fakeLossValue) Item() float64 { return v.item }

func (v *fakeLossValue) Backward() error {
	if v.model.mode != "train" {
		return fmt.Errorf("backward in %s mode", v.model.mode)
	}
	return nil
}

// fakeDevice is an identity placement target.
type fakeDevice struct{ placed int }

func (d *fakeDevice) Place(b spintrain.Batch[float64]) (spintrain.Batch[float64], error) {
	d.placed++
	return b, nil
}

func (d *fakeDevice) String() string { return "fake" }

// spyStore wraps a real store and counts writes.
type spyStore struct {
	checkpoint.Store

	mu        sync.Mutex
	saves     int
	bestSaves int
}

func (s *spyStore) Save(ctx context.Context, state *checkpoint.State) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.Store.Save(ctx, state)
}

func (s *spyStore) SaveBest(ctx context.Context, model []byte) error {
	s.mu.Lock()
	s.bestSaves++
	s.mu.Unlock()
	return s.Store.SaveBest(ctx, model)
}

// spyOpener returns a StoreOpener that records the spy it hands out.
func spyOpener(spy **spyStore) spintrain.StoreOpener {
	return func(r *run.Run, epochs int) (checkpoint.Store, error) {
		inner, err := spintrain.OpenFSStore(r, epochs)
		if err != nil {
			return nil, err
		}
		*spy = &spyStore{Store: inner}
		return *spy, nil
	}
}

// harness bundles a full fake collaborator set for one trainer.
type harness struct {
	model  *fakeModel
	train  *fakeIterator
	val    *fakeIterator
	opt    *fakeOptimizer
	sched  *fakeScheduler
	loss   *fakeLoss
	device *fakeDevice
}

// newHarness scripts one batch per epoch on both iterators and one loss
// value per epoch per pass.
func newHarness(trainLosses, evalLosses []float64) *harness {
	model := newFakeModel()
	return &harness{
		model:  model,
		train:  newFakeIterator(1),
		val:    newFakeIterator(1),
		opt:    newFakeOptimizer(),
		sched:  newFakeScheduler(0.05, 0.5),
		loss:   &fakeLoss{model: model, train: trainLosses, eval: evalLosses},
		device: &fakeDevice{},
	}
}

func (h *harness) params(epochs int, baseDir string) spintrain.Params[float64] {
	return spintrain.Params[float64]{
		Model:     h.model,
		Train:     h.train,
		Val:       h.val,
		Optimizer: h.opt,
		Scheduler: h.sched,
		Loss:      h.loss,
		Device:    h.device,
		Epochs:    epochs,
		BaseDir:   baseDir,
	}
}

// newTrainer builds a trainer over the harness, failing the test on error.
func (h *harness) newTrainer(t *testing.T, epochs int, baseDir string, opts ...spintrain.Option) *spintrain.Trainer[float64] {
	t.Helper()
	tr, err := spintrain.New(h.params(epochs, baseDir), opts...)
	require.NoError(t, err)
	return tr
}
