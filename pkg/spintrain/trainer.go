package spintrain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkellner/spintrain/pkg/spintrain/checkpoint"
	"github.com/mkellner/spintrain/pkg/spintrain/observability"
	"github.com/mkellner/spintrain/pkg/spintrain/run"
	"github.com/mkellner/spintrain/pkg/spintrain/runlog"
)

// Params bundles the collaborators and budget for a Trainer.
// Every field is required.
type Params[T any] struct {
	// Model is the trainable model.
	Model Model[T]
	// Train and Val produce the training and validation batches.
	Train BatchIterator[T]
	Val   BatchIterator[T]
	// Optimizer applies parameter updates.
	Optimizer Optimizer
	// Scheduler adjusts the learning rate from the training loss.
	Scheduler Scheduler
	// Loss computes the training objective.
	Loss Loss[T]
	// Device is the compute target batches are placed on.
	Device Device[T]
	// Epochs is the run's epoch budget.
	Epochs int
	// BaseDir is the directory holding one subdirectory per run.
	BaseDir string
}

// validate checks that every required field is set.
func (p Params[T]) validate() error {
	for name, missing := range map[string]bool{
		"model":     p.Model == nil,
		"train":     p.Train == nil,
		"val":       p.Val == nil,
		"optimizer": p.Optimizer == nil,
		"scheduler": p.Scheduler == nil,
		"loss":      p.Loss == nil,
		"device":    p.Device == nil,
	} {
		if missing {
			return &ConfigError{Reason: name, Err: ErrNilCollaborator}
		}
	}
	if p.Epochs <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("epochs = %d", p.Epochs), Err: ErrInvalidEpochs}
	}
	if p.BaseDir == "" {
		return &ConfigError{Reason: "base dir", Err: ErrNoBaseDir}
	}
	return nil
}

// Trainer drives the epoch-level training/validation loop for one run and
// owns its persisted state. A Trainer is bound to a single execution
// context; it is not safe for concurrent use, and two processes must never
// drive the same run.
type Trainer[T any] struct {
	model  Model[T]
	train  BatchIterator[T]
	val    BatchIterator[T]
	opt    Optimizer
	sched  Scheduler
	lossFn Loss[T]
	device Device[T]

	epochs  int
	baseDir string

	cfg trainerConfig

	// Set by fresh init or Resume.
	run     *run.Run
	store   checkpoint.Store
	state   *checkpoint.State
	log     *runlog.Logger
	resumed bool
}

// New constructs a Trainer from its collaborators. No directories are
// created and no state exists until Train or Resume is called.
func New[T any](p Params[T], opts ...Option) (*Trainer[T], error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	cfg := defaultTrainerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Trainer[T]{
		model:   p.Model,
		train:   p.Train,
		val:     p.Val,
		opt:     p.Optimizer,
		sched:   p.Scheduler,
		lossFn:  p.Loss,
		device:  p.Device,
		epochs:  p.Epochs,
		baseDir: p.BaseDir,
		cfg:     cfg,
	}, nil
}

// Resume binds the trainer to an existing run and restores the full
// checkpoint state: collaborator blobs, scalar bookkeeping, and metric
// histories. index may be run.Latest. A subsequent Train continues from
// the epoch after the last completed one.
//
// Resume never creates directories: a missing run, a run without a
// checkpoint area, or an unreadable checkpoint aborts without mutating
// anything on disk.
func (t *Trainer[T]) Resume(ctx context.Context, index int) error {
	r, err := run.Resolve(t.baseDir, index)
	if err != nil {
		return &ConfigError{Reason: "resume", Err: err}
	}

	store, err := t.cfg.openStore(r, t.epochs)
	if err != nil {
		return &IOError{Op: "open store", Path: r.CheckpointDir(), Err: err}
	}

	state, err := store.Load(ctx)
	if err != nil {
		store.Close()
		return &IOError{Op: "load checkpoint", Path: r.CheckpointDir(), Err: err}
	}

	if err := t.model.ImportState(state.Model); err != nil {
		store.Close()
		return &IOError{Op: "import model state", Err: err}
	}
	if err := t.opt.ImportState(state.Optimizer); err != nil {
		store.Close()
		return &IOError{Op: "import optimizer state", Err: err}
	}
	if err := t.sched.ImportState(state.Scheduler); err != nil {
		store.Close()
		return &IOError{Op: "import scheduler state", Err: err}
	}

	t.run = r
	t.store = store
	t.state = state
	t.log = runlog.New(r.LogDir())
	t.resumed = true

	observability.LogRunResumed(t.cfg.logger, r.Index, state.LastEpoch, t.epochs)
	return nil
}

// Train runs the epoch loop to the configured budget. A fresh trainer
// first allocates a new run with zeroed state; a resumed one continues
// from its restored checkpoint. Every completed epoch persists the full
// state before the next one starts, so an interruption loses at most the
// epoch in flight.
//
// Any failure is fatal and returned immediately; nothing is retried. The
// last completed epoch's checkpoint stays intact for a later Resume.
func (t *Trainer[T]) Train(ctx context.Context) (err error) {
	if !t.resumed && t.run == nil {
		if err := t.freshInit(); err != nil {
			return err
		}
		observability.LogRunStart(t.cfg.logger, t.run.Index, t.epochs, t.device.String())
	}

	runStart := time.Now()
	start := t.state.LastEpoch + 1

	runCtx, runSpan := t.cfg.spans.StartRunSpan(ctx, t.run.ID, t.run.Index)
	defer func() {
		t.cfg.spans.EndSpanWithError(runSpan, err)
	}()

	for epoch := start; epoch <= t.epochs; epoch++ {
		if err := t.runEpoch(runCtx, epoch); err != nil {
			observability.LogRunError(t.cfg.logger, t.run.Index, epoch, err)
			t.cfg.metrics.RecordRun(runCtx, false, time.Since(runStart))
			return err
		}
	}

	epochsRun := t.epochs - start + 1
	if epochsRun < 0 {
		epochsRun = 0
	}
	observability.LogRunComplete(t.cfg.logger, t.run.Index, epochsRun, t.state.BestEvalLoss, t.state.TimeCost)
	t.cfg.metrics.RecordRun(runCtx, true, time.Since(runStart))
	return nil
}

// State exposes the in-memory checkpoint state. It is nil until Train or
// Resume has initialized the run.
func (t *Trainer[T]) State() *checkpoint.State { return t.state }

// Run exposes the run location. It is nil until Train or Resume has
// initialized the run.
func (t *Trainer[T]) Run() *run.Run { return t.run }

// Close releases the checkpoint store and the run log.
func (t *Trainer[T]) Close() error {
	var firstErr error
	if t.log != nil {
		if err := t.log.Close(); err != nil {
			firstErr = err
		}
	}
	if t.store != nil {
		if err := t.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// freshInit allocates a new run and zeroed state.
func (t *Trainer[T]) freshInit() error {
	r, err := run.Allocate(t.baseDir)
	if err != nil {
		return &IOError{Op: "allocate run", Path: t.baseDir, Err: err}
	}

	store, err := t.cfg.openStore(r, t.epochs)
	if err != nil {
		return &IOError{Op: "open store", Path: r.CheckpointDir(), Err: err}
	}

	t.run = r
	t.store = store
	t.state = checkpoint.NewState(t.epochs)
	t.log = runlog.New(r.LogDir())
	return nil
}

// runEpoch executes one full epoch: train pass, scheduler step, validation
// pass, bookkeeping, best-model check, checkpoint.
func (t *Trainer[T]) runEpoch(ctx context.Context, epoch int) error {
	epochCtx, span := t.cfg.spans.StartEpochSpan(ctx, epoch)
	epochStart := time.Now()

	trainLoss, err := t.trainPass(epoch)
	if err != nil {
		t.cfg.spans.EndSpanWithError(span, err)
		return err
	}

	t.sched.Advance(trainLoss)
	rate := t.sched.Rate()

	evalLoss, err := t.validationPass(epoch)
	if err != nil {
		t.cfg.spans.EndSpanWithError(span, err)
		return err
	}

	elapsed := time.Since(epochStart)

	t.state.TrainLoss[epoch-1] = trainLoss
	t.state.EvalLoss[epoch-1] = evalLoss
	t.state.LR[epoch-1] = rate
	t.state.TimeCost += elapsed.Seconds()

	if err := t.log.Infof("Epoch#%d. time_cost: %.2f s. train_loss: %.8f. eval_loss: %.8f",
		epoch, t.state.TimeCost, trainLoss, evalLoss); err != nil {
		wrapped := &IOError{Op: "append epoch log", Path: t.log.Path(), Err: err}
		t.cfg.spans.EndSpanWithError(span, wrapped)
		return wrapped
	}
	observability.LogEpochComplete(t.cfg.logger, epoch, trainLoss, evalLoss, rate,
		float64(elapsed.Milliseconds()))
	t.cfg.metrics.RecordEpoch(epochCtx, epoch, trainLoss, evalLoss, elapsed)

	if evalLoss < t.state.BestEvalLoss {
		t.state.BestEvalLoss = evalLoss
		if err := t.saveBest(epochCtx, epoch, evalLoss); err != nil {
			t.cfg.spans.EndSpanWithError(span, err)
			return err
		}
	}

	t.state.LastEpoch = epoch
	if err := t.saveCheckpoint(epochCtx, epoch); err != nil {
		t.cfg.spans.EndSpanWithError(span, err)
		return err
	}

	t.cfg.spans.EndSpanWithError(span, nil)
	return nil
}

// trainPass iterates all training batches once and returns the average
// training loss. An empty iterator is fatal.
func (t *Trainer[T]) trainPass(epoch int) (float64, error) {
	t.model.TrainMode()

	if err := t.train.Reset(); err != nil {
		return 0, &ComputeError{Stage: "train", Epoch: epoch, Err: err}
	}

	total := 0.0
	steps := 0
	for {
		b, err := t.train.Next()
		if errors.Is(err, ErrEndOfEpoch) {
			break
		}
		if err != nil {
			return 0, &ComputeError{Stage: "train", Epoch: epoch, Err: err}
		}

		b, err = t.device.Place(b)
		if err != nil {
			return 0, &ComputeError{Stage: "transfer", Epoch: epoch, Err: err}
		}

		t.opt.ZeroGrad()

		pred, err := t.model.Forward(b.Input)
		if err != nil {
			return 0, &ComputeError{Stage: "train", Epoch: epoch, Err: err}
		}

		lv, err := t.lossFn.Evaluate(pred, b.Target)
		if err != nil {
			return 0, &ComputeError{Stage: "train", Epoch: epoch, Err: err}
		}
		if err := lv.Backward(); err != nil {
			return 0, &ComputeError{Stage: "train", Epoch: epoch, Err: err}
		}
		total += lv.Item()

		if err := t.opt.Step(); err != nil {
			return 0, &ComputeError{Stage: "train", Epoch: epoch, Err: err}
		}
		steps++
	}

	if steps == 0 {
		return 0, &ComputeError{Stage: "train", Epoch: epoch, Err: ErrNoBatches}
	}
	return total / float64(steps), nil
}

// validationPass iterates all validation batches once in eval mode and
// returns the average validation loss. Each batch contributes its own mean
// with equal weight, matching the training source even when the last batch
// is smaller. An empty iterator is fatal.
func (t *Trainer[T]) validationPass(epoch int) (float64, error) {
	t.model.EvalMode()

	if err := t.val.Reset(); err != nil {
		return 0, &ComputeError{Stage: "validate", Epoch: epoch, Err: err}
	}

	total := 0.0
	batches := 0
	for {
		b, err := t.val.Next()
		if errors.Is(err, ErrEndOfEpoch) {
			break
		}
		if err != nil {
			return 0, &ComputeError{Stage: "validate", Epoch: epoch, Err: err}
		}

		b, err = t.device.Place(b)
		if err != nil {
			return 0, &ComputeError{Stage: "transfer", Epoch: epoch, Err: err}
		}

		pred, err := t.model.Forward(b.Input)
		if err != nil {
			return 0, &ComputeError{Stage: "validate", Epoch: epoch, Err: err}
		}

		lv, err := t.lossFn.Evaluate(pred, b.Target)
		if err != nil {
			return 0, &ComputeError{Stage: "validate", Epoch: epoch, Err: err}
		}
		total += lv.Item()
		batches++
	}

	if batches == 0 {
		return 0, &ComputeError{Stage: "validate", Epoch: epoch, Err: ErrNoBatches}
	}
	return total / float64(batches), nil
}

// saveBest overwrites the best-model snapshot with the current parameters.
func (t *Trainer[T]) saveBest(ctx context.Context, epoch int, evalLoss float64) error {
	blob, err := t.model.ExportState()
	if err != nil {
		return &IOError{Op: "export model state", Err: err}
	}
	if err := t.store.SaveBest(ctx, blob); err != nil {
		return &IOError{Op: "save best model", Path: t.run.CheckpointDir(), Err: err}
	}
	observability.LogBestModel(t.cfg.logger, epoch, evalLoss)
	t.cfg.metrics.RecordBestModel(ctx, epoch, evalLoss)
	return nil
}

// saveCheckpoint exports the collaborator blobs into the state and
// persists it as one unit.
func (t *Trainer[T]) saveCheckpoint(ctx context.Context, epoch int) error {
	var err error
	if t.state.Model, err = t.model.ExportState(); err != nil {
		return &IOError{Op: "export model state", Err: err}
	}
	if t.state.Optimizer, err = t.opt.ExportState(); err != nil {
		return &IOError{Op: "export optimizer state", Err: err}
	}
	if t.state.Scheduler, err = t.sched.ExportState(); err != nil {
		return &IOError{Op: "export scheduler state", Err: err}
	}

	if err := t.store.Save(ctx, t.state); err != nil {
		return &IOError{Op: "save checkpoint", Path: t.run.CheckpointDir(), Err: err}
	}

	size := int64(len(t.state.Model) + len(t.state.Optimizer) + len(t.state.Scheduler) + 24*t.epochs)
	observability.LogCheckpoint(t.cfg.logger, epoch, size)
	t.cfg.metrics.RecordCheckpoint(ctx, epoch, size)
	return nil
}
