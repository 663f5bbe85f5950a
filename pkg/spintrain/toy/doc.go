// Package toy provides small in-memory collaborators for spintrain: a
// linear model with hand-written gradients, SGD with momentum, a
// reduce-on-plateau scheduler, mean-squared-error loss, slice-backed batch
// iterators, and a CPU device.
//
// These exist to exercise the training controller end to end without a
// tensor runtime; examples, the CLI, and acceptance tests are built on
// them. They are not a deep-learning library.
package toy
