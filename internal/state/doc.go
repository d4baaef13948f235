// Package state persists which pull requests a transfer has already handled
// and loads the list of pull requests an operator excluded.
//
// The processed set only grows. JSONFileStore rewrites its file atomically on
// every record; SQLiteStore inserts one row per record.
package state
