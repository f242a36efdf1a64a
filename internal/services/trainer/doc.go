// Package trainer wraps the external policy-training command line.
//
// The CLI client maps a PhaseConfig one-to-one onto named arguments of the
// training module, resolves per-phase checkpoint and tensorboard
// directories, and augments PYTHONPATH so the child can resolve its own
// libraries. Success is signaled solely by a zero exit status.
package trainer
