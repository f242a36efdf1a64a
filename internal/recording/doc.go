// Package recording samples anchor points and drives recorder launches.
//
// A batch samples (episode, timestep) anchors uniformly from the discovered
// catalog and launches the recorder once per restart, waiting for each
// recording's on-disk completion artifact before the next launch. The
// recorder binds a fixed port, so exactly one launch is ever in flight.
package recording
