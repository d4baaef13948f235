// Package utils exposes reusable helpers consumed by the CLI commands.
//
// It houses ConfigurationLoader and LoggerFactory abstractions that integrate
// Viper, environment variables, and zap logging, plus small helpers for
// command contexts and home-relative paths.
package utils
