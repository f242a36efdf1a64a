// Package pipeline sequences the two-phase training run.
//
// The driver is a linear state machine with no branching or resume: validate
// preconditions, discover the episode catalog, train on the historical
// episodes, record anchored zero-style episodes, wait for the remote
// evaluation queue, then fine-tune on the recordings. Any fatal error aborts
// the run; the only downgraded failure is a drain timeout, since the final
// phase can still make forward progress without evaluation metadata.
package pipeline
