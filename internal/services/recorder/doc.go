// Package recorder wraps the external interactive recorder process and the
// detection of its on-disk artifacts.
//
// The recorder takes an anchor episode/timestep pair plus exploration-noise
// parameters, binds a fixed network port, and writes a raw .jsonl log under
// the output directory. It reports nothing back over its exit status beyond
// launch success; an episode counts as completed only once the tail of its
// raw log carries the end-of-episode marker.
package recorder
