package state_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/prtransfer/internal/state"
)

func TestLoadExcluded(testInstance *testing.T) {
	testCases := []struct {
		name        string
		contents    *string
		expected    []int
		expectError bool
	}{
		{name: "missing_file", contents: nil, expected: []int{}},
		{name: "empty_file", contents: stringPointer(""), expected: []int{}},
		{name: "json_list", contents: stringPointer("[12, 4, 12]"), expected: []int{4, 12}},
		{name: "yaml_list", contents: stringPointer("- 8\n- 2\n"), expected: []int{2, 8}},
		{name: "malformed", contents: stringPointer("{excluded: yes}"), expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fileSystem := afero.NewMemMapFs()
			if testCase.contents != nil {
				require.NoError(testInstance, afero.WriteFile(fileSystem, state.DefaultExcludedFilePath, []byte(*testCase.contents), 0o600))
			}

			excluded, loadError := state.LoadExcluded(fileSystem, state.DefaultExcludedFilePath)
			if testCase.expectError {
				require.ErrorAs(testInstance, loadError, &state.CorruptStateError{})
				return
			}
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expected, excluded.Sorted())
		})
	}
}

func stringPointer(value string) *string {
	return &value
}
