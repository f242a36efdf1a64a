// Package journal persists run history in a local SQLite database.
//
// Each pipeline invocation becomes a run row plus an ordered trail of phase
// events. The journal is an audit record, not a coordination mechanism; a
// single process writes to it at a time.
package journal
