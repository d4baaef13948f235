package state

import (
	"errors"
	"fmt"
)

const (
	corruptStateErrorTemplateConstant  = "state file %s is malformed (fix or remove it before retrying): %v"
	storeClosedMessageConstant         = "state store closed"
	unsupportedBackendTemplateConstant = "unsupported state backend %q (expected json or sqlite)"
	statePathMissingMessageConstant    = "state path not configured"
)

var (
	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New(storeClosedMessageConstant)
	// ErrPathNotConfigured indicates a store was constructed without a path.
	ErrPathNotConfigured = errors.New(statePathMissingMessageConstant)
)

// CorruptStateError reports persisted state that cannot be decoded.
type CorruptStateError struct {
	Path  string
	Cause error
}

// Error describes the corrupt state.
func (corruptError CorruptStateError) Error() string {
	return fmt.Sprintf(corruptStateErrorTemplateConstant, corruptError.Path, corruptError.Cause)
}

// Unwrap exposes the decoder error.
func (corruptError CorruptStateError) Unwrap() error {
	return corruptError.Cause
}

// UnsupportedBackendError reports an unknown state backend name.
type UnsupportedBackendError struct {
	Backend string
}

// Error describes the unsupported backend.
func (backendError UnsupportedBackendError) Error() string {
	return fmt.Sprintf(unsupportedBackendTemplateConstant, backendError.Backend)
}
