// Command trainloop drives the two-phase policy training pipeline from the
// command line.
package main
