// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and redacts credentials embedded in remote URLs
// before any command reaches a log line or an error message.
package execshell
