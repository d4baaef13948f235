package bitbucket_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/prtransfer/internal/bitbucket"
)

const testCachePathConstant = "state/bitbucket_prs.json"

type countingLister struct {
	payloads  []json.RawMessage
	listError error
	calls     int
}

func (lister *countingLister) ListMergedPullRequestPayloads(_ context.Context, _ string) ([]json.RawMessage, error) {
	lister.calls++
	return lister.payloads, lister.listError
}

type fixedFileInfo struct {
	modificationTime time.Time
	directory        bool
}

func (info fixedFileInfo) Name() string       { return "bitbucket_prs.json" }
func (info fixedFileInfo) Size() int64        { return 0 }
func (info fixedFileInfo) Mode() os.FileMode  { return 0o600 }
func (info fixedFileInfo) ModTime() time.Time { return info.modificationTime }
func (info fixedFileInfo) IsDir() bool        { return info.directory }
func (info fixedFileInfo) Sys() any           { return nil }

func TestCachePolicyDecide(testInstance *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		policy   bitbucket.CachePolicy
		info     os.FileInfo
		expected bitbucket.CacheDecision
	}{
		{name: "no_cache", policy: bitbucket.CachePolicy{}, info: nil, expected: bitbucket.CacheDecisionFetch},
		{name: "never_expires", policy: bitbucket.CachePolicy{}, info: fixedFileInfo{modificationTime: now.AddDate(-3, 0, 0)}, expected: bitbucket.CacheDecisionUseCache},
		{name: "fresh", policy: bitbucket.CachePolicy{MaxAge: time.Hour}, info: fixedFileInfo{modificationTime: now.Add(-30 * time.Minute)}, expected: bitbucket.CacheDecisionUseCache},
		{name: "stale", policy: bitbucket.CachePolicy{MaxAge: time.Hour}, info: fixedFileInfo{modificationTime: now.Add(-2 * time.Hour)}, expected: bitbucket.CacheDecisionFetch},
		{name: "directory", policy: bitbucket.CachePolicy{}, info: fixedFileInfo{modificationTime: now, directory: true}, expected: bitbucket.CacheDecisionFetch},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, testCase.policy.Decide(testCase.info, now))
		})
	}
}

func newTestCatalog(testInstance *testing.T, fileSystem afero.Fs, lister bitbucket.PullRequestLister, policy bitbucket.CachePolicy, now time.Time) *bitbucket.Catalog {
	catalog, creationError := bitbucket.NewCatalog(bitbucket.CatalogDependencies{
		Logger:     zap.NewNop(),
		Lister:     lister,
		FileSystem: fileSystem,
		Clock:      func() time.Time { return now },
		CachePath:  testCachePathConstant,
		Policy:     policy,
	})
	require.NoError(testInstance, creationError)
	return catalog
}

func TestCatalogFetchesAndPersistsWhenNoCache(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	lister := &countingLister{payloads: []json.RawMessage{
		json.RawMessage(pullRequestDocument(5, "2021-03-01T00:00:00+00:00", "feature-x")),
	}}
	catalog := newTestCatalog(testInstance, fileSystem, lister, bitbucket.CachePolicy{}, time.Now())

	pullRequests, loadError := catalog.Load(context.Background(), testRepositoryConstant)
	require.NoError(testInstance, loadError)
	require.Len(testInstance, pullRequests, 1)
	require.Equal(testInstance, 1, lister.calls)

	cached, readError := afero.ReadFile(fileSystem, testCachePathConstant)
	require.NoError(testInstance, readError)
	var cachedDocuments []map[string]any
	require.NoError(testInstance, json.Unmarshal(cached, &cachedDocuments))
	require.Len(testInstance, cachedDocuments, 1)
	require.Contains(testInstance, cachedDocuments[0], "links")
	require.Contains(testInstance, string(cached), "\n  ")

	exists, existsError := afero.Exists(fileSystem, testCachePathConstant+".tmp")
	require.NoError(testInstance, existsError)
	require.False(testInstance, exists)
}

func TestCatalogUsesCacheWithoutNetwork(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	cachedContents := "[" + pullRequestDocument(9, "2020-01-01T00:00:00+00:00", "legacy") + "]"
	require.NoError(testInstance, afero.WriteFile(fileSystem, testCachePathConstant, []byte(cachedContents), 0o600))

	lister := &countingLister{listError: errors.New("network must not be used")}
	catalog := newTestCatalog(testInstance, fileSystem, lister, bitbucket.CachePolicy{}, time.Now())

	pullRequests, loadError := catalog.Load(context.Background(), testRepositoryConstant)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, 0, lister.calls)
	require.Len(testInstance, pullRequests, 1)
	require.Equal(testInstance, 9, pullRequests[0].ID)
	require.Equal(testInstance, "legacy", pullRequests[0].SourceBranchName())
}

func TestCatalogRefetchesStaleCache(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, afero.WriteFile(fileSystem, testCachePathConstant, []byte("[]"), 0o600))
	staleTime := time.Now().Add(-48 * time.Hour)
	require.NoError(testInstance, fileSystem.Chtimes(testCachePathConstant, staleTime, staleTime))

	lister := &countingLister{payloads: []json.RawMessage{json.RawMessage(pullRequestDocument(1, "2021-03-01T00:00:00+00:00", "a"))}}
	catalog := newTestCatalog(testInstance, fileSystem, lister, bitbucket.CachePolicy{MaxAge: 24 * time.Hour}, time.Now())

	pullRequests, loadError := catalog.Load(context.Background(), testRepositoryConstant)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, 1, lister.calls)
	require.Len(testInstance, pullRequests, 1)
}

func TestCatalogFailsOnCorruptCache(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, afero.WriteFile(fileSystem, testCachePathConstant, []byte("{not json"), 0o600))

	catalog := newTestCatalog(testInstance, fileSystem, &countingLister{}, bitbucket.CachePolicy{}, time.Now())
	_, loadError := catalog.Load(context.Background(), testRepositoryConstant)
	require.ErrorAs(testInstance, loadError, &bitbucket.CacheDecodingError{})
}

func TestCatalogPropagatesFetchErrorsWithoutWritingCache(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	responseError := &bitbucket.ResponseError{StatusCode: 503, URL: "https://api.bitbucket.org/2.0", Body: "unavailable"}
	catalog := newTestCatalog(testInstance, fileSystem, &countingLister{listError: responseError}, bitbucket.CachePolicy{}, time.Now())

	_, loadError := catalog.Load(context.Background(), testRepositoryConstant)
	require.ErrorIs(testInstance, loadError, responseError)

	exists, existsError := afero.Exists(fileSystem, testCachePathConstant)
	require.NoError(testInstance, existsError)
	require.False(testInstance, exists)
}

func TestCatalogInvalidate(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, afero.WriteFile(fileSystem, testCachePathConstant, []byte("[]"), 0o600))
	catalog := newTestCatalog(testInstance, fileSystem, &countingLister{}, bitbucket.CachePolicy{}, time.Now())

	require.NoError(testInstance, catalog.Invalidate())
	exists, existsError := afero.Exists(fileSystem, testCachePathConstant)
	require.NoError(testInstance, existsError)
	require.False(testInstance, exists)

	require.NoError(testInstance, catalog.Invalidate())
}

func TestNewCatalogValidation(testInstance *testing.T) {
	_, listerError := bitbucket.NewCatalog(bitbucket.CatalogDependencies{CachePath: testCachePathConstant})
	require.ErrorIs(testInstance, listerError, bitbucket.ErrListerNotConfigured)

	_, pathError := bitbucket.NewCatalog(bitbucket.CatalogDependencies{Lister: &countingLister{}})
	require.ErrorIs(testInstance, pathError, bitbucket.ErrCachePathNotConfigured)
}
