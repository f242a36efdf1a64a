// Package catalog discovers eligible training episodes and tracks which of
// them have been consumed.
//
// Discovery scans the immediate subdirectories of an episodes directory,
// parses the first JSON log of each, and derives the even anchor timesteps a
// recording can start from. Malformed or underpopulated logs are skipped
// silently; an entirely empty catalog is fatal.
//
// The ledger relocates consumed episodes into a sibling consumed-episodes
// tree. Directory presence is the only bookkeeping: after relocation a
// subsequent discovery never returns the episode again.
package catalog
