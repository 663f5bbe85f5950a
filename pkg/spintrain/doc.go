/*
Package spintrain provides a resumable supervised-training controller for
image-classification models.

# Overview

spintrain owns the epoch-level training/validation loop, periodic state
persistence, best-model tracking, and crash recovery. The model, the batch
pipeline, the optimizer, and the learning-rate scheduler are external
collaborators consumed through narrow interfaces; spintrain coordinates
their mutable state (weights, momentum buffers, schedule internals, running
metrics) as one atomic unit of progress that survives process restarts.

The library is built with:
  - Type-safe generics over the tensor type
  - Per-epoch checkpointing with filesystem and SQLite backends
  - OpenTelemetry integration for observability

# Basic Usage

Bundle the collaborators into Params, construct a Trainer, and run it:

	params := spintrain.Params[toy.Vec]{
	    Model:     model,
	    Train:     trainBatches,
	    Val:       valBatches,
	    Optimizer: sgd,
	    Scheduler: plateau,
	    Loss:      mse,
	    Device:    toy.CPU{},
	    Epochs:    50,
	    BaseDir:   "./runs",
	}

	trainer, err := spintrain.New(params)
	if err != nil {
	    log.Fatal(err)
	}
	defer trainer.Close()

	if err := trainer.Train(context.Background()); err != nil {
	    log.Fatal(err)
	}

# Resuming

A crashed or interrupted run is continued from its last fully completed
epoch. The checkpoint written at every epoch boundary bounds the lost work
to at most one epoch:

	trainer, _ := spintrain.New(params)
	if err := trainer.Resume(ctx, run.Latest); err != nil {
	    log.Fatal(err)
	}
	if err := trainer.Train(ctx); err != nil {
	    log.Fatal(err)
	}

# Failure Model

Every failure inside the loop is fatal: empty batch iterators, device
transfer errors, and checkpoint I/O all abort the run immediately with a
typed error (ConfigError, IOError, ComputeError). Nothing is retried. The
last completed epoch's checkpoint stays intact on disk for a later resume.
*/
package spintrain
