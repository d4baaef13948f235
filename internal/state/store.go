package state

import (
	"context"
	"strings"

	"github.com/spf13/afero"
)

// Backend names a ProcessedStore implementation.
type Backend string

// Supported backends.
const (
	BackendJSON   Backend = Backend("json")
	BackendSQLite Backend = Backend("sqlite")
)

// Outcome describes why an identifier was recorded.
type Outcome string

// Recorded outcomes.
const (
	OutcomeTransferred Outcome = Outcome("transferred")
	OutcomeSkipped     Outcome = Outcome("skipped")
)

// ProcessedStore persists the identifiers of pull requests that no longer need processing.
// Every Record call is durable before it returns.
type ProcessedStore interface {
	Load(executionContext context.Context) (IdentifierSet, error)
	RecordSuccess(executionContext context.Context, identifier int) error
	RecordSkipped(executionContext context.Context, identifier int) error
	Close() error
}

// StoreOptions selects and configures a ProcessedStore.
type StoreOptions struct {
	Backend      Backend
	JSONPath     string
	DatabasePath string
	FileSystem   afero.Fs
}

// OpenStore constructs the ProcessedStore selected by options.
func OpenStore(executionContext context.Context, options StoreOptions) (ProcessedStore, error) {
	backend := Backend(strings.ToLower(strings.TrimSpace(string(options.Backend))))
	switch backend {
	case "", BackendJSON:
		store, creationError := NewJSONFileStore(options.FileSystem, options.JSONPath)
		if creationError != nil {
			return nil, creationError
		}
		return store, nil
	case BackendSQLite:
		store, openError := OpenSQLiteStore(executionContext, options.DatabasePath)
		if openError != nil {
			return nil, openError
		}
		return store, nil
	default:
		return nil, UnsupportedBackendError{Backend: string(options.Backend)}
	}
}
