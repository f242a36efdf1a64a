// Package services defines shared utilities consumed by the pipeline driver
// and the external-process integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper so failures classify
//     consistently (fatal vs downgraded vs transient) via errors.Is.
//   - Context helpers that stamp run identifiers and phase names for logging.
//
// Subpackages wrap the external collaborators: trainer (training CLI),
// recorder (interactive recorder process), and statequeue (remote evaluation
// queue polling).
package services
