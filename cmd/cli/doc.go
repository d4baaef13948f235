// Package cli constructs the prtransfer command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging.
package cli
