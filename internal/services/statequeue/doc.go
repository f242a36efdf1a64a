// Package statequeue polls the recorder's state server for pending work.
//
// Recording sessions push state updates through a queue on the state server;
// training on freshly recorded episodes before that queue drains would read
// partially persisted data. The client here blocks until the server reports
// an available, empty queue or a deadline passes.
package statequeue
