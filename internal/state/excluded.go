package state

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultExcludedFilePath is the exclusion list file name used when none is configured.
	DefaultExcludedFilePath = "exclude_prs.json"

	excludedReadErrorTemplateConstant = "unable to read exclusion list %s: %w"
)

// LoadExcluded reads a JSON or YAML list of pull request identifiers from path.
// A missing or empty file yields an empty set.
func LoadExcluded(fileSystem afero.Fs, path string) (IdentifierSet, error) {
	if len(path) == 0 {
		return NewIdentifierSet(), nil
	}
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}

	contents, readError := afero.ReadFile(fileSystem, path)
	if errors.Is(readError, os.ErrNotExist) {
		return NewIdentifierSet(), nil
	}
	if readError != nil {
		return IdentifierSet{}, fmt.Errorf(excludedReadErrorTemplateConstant, path, readError)
	}

	var identifiers []int
	if decodeError := yaml.Unmarshal(contents, &identifiers); decodeError != nil {
		return IdentifierSet{}, CorruptStateError{Path: path, Cause: decodeError}
	}
	return NewIdentifierSet(identifiers...), nil
}
