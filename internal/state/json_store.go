package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

const (
	// DefaultProcessedFilePath is the processed-set file name used when none is configured.
	DefaultProcessedFilePath = "transferred_prs.json"

	jsonIndentConstant                = "  "
	temporaryFileSuffixConstant       = ".tmp"
	stateDirectoryPermissionsConstant = 0o755
	stateFilePermissionsConstant      = 0o600
	stateReadErrorTemplateConstant    = "unable to read state file %s: %w"
	stateWriteErrorTemplateConstant   = "unable to write state file %s: %w"
)

// JSONFileStore keeps the processed set as a JSON array of integers and rewrites
// the whole file through a synced temporary file and a rename on every record.
type JSONFileStore struct {
	mutex      sync.Mutex
	fileSystem afero.Fs
	path       string
	processed  IdentifierSet
	loaded     bool
	closed     bool
}

// NewJSONFileStore constructs a store over path. A nil fileSystem uses the OS filesystem.
func NewJSONFileStore(fileSystem afero.Fs, path string) (*JSONFileStore, error) {
	if len(path) == 0 {
		return nil, ErrPathNotConfigured
	}
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	return &JSONFileStore{fileSystem: fileSystem, path: path}, nil
}

// Path returns the backing file path.
func (store *JSONFileStore) Path() string {
	return store.path
}

// Load reads the processed set. A missing file is an empty set.
func (store *JSONFileStore) Load(_ context.Context) (IdentifierSet, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.closed {
		return IdentifierSet{}, ErrStoreClosed
	}
	if loadError := store.ensureLoaded(); loadError != nil {
		return IdentifierSet{}, loadError
	}
	return store.processed.Clone(), nil
}

// RecordSuccess adds identifier and persists the set before returning.
func (store *JSONFileStore) RecordSuccess(_ context.Context, identifier int) error {
	return store.record(identifier)
}

// RecordSkipped adds identifier and persists the set before returning.
// The file format does not distinguish skipped from transferred identifiers.
func (store *JSONFileStore) RecordSkipped(_ context.Context, identifier int) error {
	return store.record(identifier)
}

// Close marks the store closed.
func (store *JSONFileStore) Close() error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.closed = true
	return nil
}

func (store *JSONFileStore) record(identifier int) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.closed {
		return ErrStoreClosed
	}
	if loadError := store.ensureLoaded(); loadError != nil {
		return loadError
	}
	if !store.processed.Add(identifier) {
		return nil
	}
	return store.persist()
}

func (store *JSONFileStore) ensureLoaded() error {
	if store.loaded {
		return nil
	}
	contents, readError := afero.ReadFile(store.fileSystem, store.path)
	switch {
	case errors.Is(readError, os.ErrNotExist):
		store.processed = NewIdentifierSet()
	case readError != nil:
		return fmt.Errorf(stateReadErrorTemplateConstant, store.path, readError)
	default:
		var identifiers []int
		if decodeError := json.Unmarshal(contents, &identifiers); decodeError != nil {
			return CorruptStateError{Path: store.path, Cause: decodeError}
		}
		store.processed = NewIdentifierSet(identifiers...)
	}
	store.loaded = true
	return nil
}

func (store *JSONFileStore) persist() error {
	contents, encodeError := json.MarshalIndent(store.processed.Sorted(), "", jsonIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(stateWriteErrorTemplateConstant, store.path, encodeError)
	}

	if directory := filepath.Dir(store.path); directory != "." {
		if mkdirError := store.fileSystem.MkdirAll(directory, stateDirectoryPermissionsConstant); mkdirError != nil {
			return fmt.Errorf(stateWriteErrorTemplateConstant, store.path, mkdirError)
		}
	}

	temporaryPath := store.path + temporaryFileSuffixConstant
	temporaryFile, openError := store.fileSystem.OpenFile(temporaryPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, stateFilePermissionsConstant)
	if openError != nil {
		return fmt.Errorf(stateWriteErrorTemplateConstant, store.path, openError)
	}
	if _, writeError := temporaryFile.Write(contents); writeError != nil {
		_ = temporaryFile.Close()
		return fmt.Errorf(stateWriteErrorTemplateConstant, store.path, writeError)
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		_ = temporaryFile.Close()
		return fmt.Errorf(stateWriteErrorTemplateConstant, store.path, syncError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return fmt.Errorf(stateWriteErrorTemplateConstant, store.path, closeError)
	}
	if renameError := store.fileSystem.Rename(temporaryPath, store.path); renameError != nil {
		return fmt.Errorf(stateWriteErrorTemplateConstant, store.path, renameError)
	}
	return nil
}
