package state_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/prtransfer/internal/state"
)

const testProcessedPathConstant = "run/transferred_prs.json"

func TestJSONFileStoreMissingFileIsEmpty(testInstance *testing.T) {
	store, creationError := state.NewJSONFileStore(afero.NewMemMapFs(), testProcessedPathConstant)
	require.NoError(testInstance, creationError)

	processed, loadError := store.Load(context.Background())
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, 0, processed.Len())
}

func TestJSONFileStoreRecordsDurably(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, afero.WriteFile(fileSystem, testProcessedPathConstant, []byte("[3, 1]"), 0o600))

	store, creationError := state.NewJSONFileStore(fileSystem, testProcessedPathConstant)
	require.NoError(testInstance, creationError)

	require.NoError(testInstance, store.RecordSuccess(context.Background(), 2))
	require.NoError(testInstance, store.RecordSkipped(context.Background(), 5))
	require.NoError(testInstance, store.RecordSuccess(context.Background(), 2))

	contents, readError := afero.ReadFile(fileSystem, testProcessedPathConstant)
	require.NoError(testInstance, readError)
	var persisted []int
	require.NoError(testInstance, json.Unmarshal(contents, &persisted))
	require.Equal(testInstance, []int{1, 2, 3, 5}, persisted)

	temporaryExists, existsError := afero.Exists(fileSystem, testProcessedPathConstant+".tmp")
	require.NoError(testInstance, existsError)
	require.False(testInstance, temporaryExists)

	reopened, reopenError := state.NewJSONFileStore(fileSystem, testProcessedPathConstant)
	require.NoError(testInstance, reopenError)
	processed, loadError := reopened.Load(context.Background())
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, []int{1, 2, 3, 5}, processed.Sorted())
}

func TestJSONFileStoreLoadReturnsSnapshot(testInstance *testing.T) {
	store, creationError := state.NewJSONFileStore(afero.NewMemMapFs(), testProcessedPathConstant)
	require.NoError(testInstance, creationError)

	snapshot, loadError := store.Load(context.Background())
	require.NoError(testInstance, loadError)
	snapshot.Add(42)

	processed, reloadError := store.Load(context.Background())
	require.NoError(testInstance, reloadError)
	require.False(testInstance, processed.Contains(42))
}

func TestJSONFileStoreCorruptState(testInstance *testing.T) {
	testCases := []struct {
		name     string
		contents string
	}{
		{name: "truncated", contents: "[1, 2"},
		{name: "strings", contents: `["1"]`},
		{name: "object", contents: `{"ids":[1]}`},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fileSystem := afero.NewMemMapFs()
			require.NoError(testInstance, afero.WriteFile(fileSystem, testProcessedPathConstant, []byte(testCase.contents), 0o600))
			store, creationError := state.NewJSONFileStore(fileSystem, testProcessedPathConstant)
			require.NoError(testInstance, creationError)

			_, loadError := store.Load(context.Background())
			var corruptError state.CorruptStateError
			require.ErrorAs(testInstance, loadError, &corruptError)
			require.Equal(testInstance, testProcessedPathConstant, corruptError.Path)

			recordError := store.RecordSuccess(context.Background(), 9)
			require.ErrorAs(testInstance, recordError, &corruptError)

			contents, readError := afero.ReadFile(fileSystem, testProcessedPathConstant)
			require.NoError(testInstance, readError)
			require.Equal(testInstance, testCase.contents, string(contents))
		})
	}
}

func TestJSONFileStoreClosed(testInstance *testing.T) {
	store, creationError := state.NewJSONFileStore(afero.NewMemMapFs(), testProcessedPathConstant)
	require.NoError(testInstance, creationError)
	require.NoError(testInstance, store.Close())

	require.ErrorIs(testInstance, store.RecordSuccess(context.Background(), 1), state.ErrStoreClosed)

	_, pathError := state.NewJSONFileStore(nil, "")
	require.ErrorIs(testInstance, pathError, state.ErrPathNotConfigured)
}
