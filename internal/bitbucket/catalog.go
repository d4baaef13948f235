package bitbucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// DefaultCachePath is the catalog cache file name used when none is configured.
	DefaultCachePath = "bitbucket_prs.json"

	cacheIndentConstant                  = "  "
	cacheTemporarySuffixConstant         = ".tmp"
	cacheDirectoryPermissions            = 0o755
	cacheFilePermissions                 = 0o600
	cacheReadErrorTemplateConstant       = "unable to read catalog cache %s: %w"
	cacheWriteErrorTemplateConstant      = "unable to write catalog cache %s: %w"
	cacheRemoveErrorTemplateConstant     = "unable to remove catalog cache %s: %w"
	cacheDecodingErrorTemplateConstant   = "catalog cache %s is not a list of pull requests (delete it or run with --refresh-catalog): %v"
	catalogListerMissingMessageConstant  = "catalog pull request lister not configured"
	catalogCachePathMissingMessage       = "catalog cache path not configured"
	catalogCacheUsedLogMessageConstant   = "using cached pull request catalog"
	catalogFetchedLogMessageConstant     = "fetched pull request catalog"
	catalogInvalidatedLogMessageConstant = "removed pull request catalog cache"
	cachePathLogFieldConstant            = "cache_path"
	repositoryLogFieldConstant           = "repository"
	pullRequestCountLogFieldConstant     = "pull_request_count"
	cacheAgeLogFieldConstant             = "cache_age"
)

var (
	// ErrListerNotConfigured indicates the catalog was constructed without a lister.
	ErrListerNotConfigured = errors.New(catalogListerMissingMessageConstant)
	// ErrCachePathNotConfigured indicates the catalog was constructed without a cache path.
	ErrCachePathNotConfigured = errors.New(catalogCachePathMissingMessage)
)

// CacheDecision is the outcome of evaluating a cache against a policy.
type CacheDecision int

// Cache decisions.
const (
	CacheDecisionFetch CacheDecision = iota
	CacheDecisionUseCache
)

// CachePolicy governs whether a cached catalog may be reused.
type CachePolicy struct {
	// MaxAge bounds the age of a reusable cache. Zero means a cache never expires.
	MaxAge time.Duration
}

// Decide reports whether the cache described by cacheInfo may be used at now.
// A nil cacheInfo means no cache exists.
func (policy CachePolicy) Decide(cacheInfo os.FileInfo, now time.Time) CacheDecision {
	if cacheInfo == nil || cacheInfo.IsDir() {
		return CacheDecisionFetch
	}
	if policy.MaxAge <= 0 {
		return CacheDecisionUseCache
	}
	if now.Sub(cacheInfo.ModTime()) > policy.MaxAge {
		return CacheDecisionFetch
	}
	return CacheDecisionUseCache
}

// CacheDecodingError reports a cache file that does not hold a pull request list.
type CacheDecodingError struct {
	Path  string
	Cause error
}

// Error describes the corrupt cache.
func (decodingError CacheDecodingError) Error() string {
	return fmt.Sprintf(cacheDecodingErrorTemplateConstant, decodingError.Path, decodingError.Cause)
}

// Unwrap exposes the decoder error.
func (decodingError CacheDecodingError) Unwrap() error {
	return decodingError.Cause
}

// PullRequestLister fetches the raw merged pull request documents of a repository.
type PullRequestLister interface {
	ListMergedPullRequestPayloads(executionContext context.Context, repository string) ([]json.RawMessage, error)
}

// CatalogDependencies wires a Catalog.
type CatalogDependencies struct {
	Logger     *zap.Logger
	Lister     PullRequestLister
	FileSystem afero.Fs
	Clock      func() time.Time
	CachePath  string
	Policy     CachePolicy
}

// Catalog loads the merged pull requests of a repository, reusing a local cache when the policy allows.
type Catalog struct {
	logger     *zap.Logger
	lister     PullRequestLister
	fileSystem afero.Fs
	clock      func() time.Time
	cachePath  string
	policy     CachePolicy
}

// NewCatalog validates dependencies and constructs a Catalog.
func NewCatalog(dependencies CatalogDependencies) (*Catalog, error) {
	if dependencies.Lister == nil {
		return nil, ErrListerNotConfigured
	}
	if len(dependencies.CachePath) == 0 {
		return nil, ErrCachePathNotConfigured
	}

	catalog := &Catalog{
		logger:     dependencies.Logger,
		lister:     dependencies.Lister,
		fileSystem: dependencies.FileSystem,
		clock:      dependencies.Clock,
		cachePath:  dependencies.CachePath,
		policy:     dependencies.Policy,
	}
	if catalog.logger == nil {
		catalog.logger = zap.NewNop()
	}
	if catalog.fileSystem == nil {
		catalog.fileSystem = afero.NewOsFs()
	}
	if catalog.clock == nil {
		catalog.clock = time.Now
	}
	return catalog, nil
}

// Load returns the cached catalog when the policy allows it, performing no network access;
// otherwise it fetches the catalog, persists it, and returns it.
func (catalog *Catalog) Load(executionContext context.Context, repository string) ([]PullRequest, error) {
	cacheInfo, statError := catalog.fileSystem.Stat(catalog.cachePath)
	if statError != nil {
		if !errors.Is(statError, os.ErrNotExist) {
			return nil, fmt.Errorf(cacheReadErrorTemplateConstant, catalog.cachePath, statError)
		}
		cacheInfo = nil
	}

	now := catalog.clock()
	if catalog.policy.Decide(cacheInfo, now) == CacheDecisionUseCache {
		pullRequests, readError := catalog.readCache()
		if readError != nil {
			return nil, readError
		}
		catalog.logger.Info(catalogCacheUsedLogMessageConstant,
			zap.String(cachePathLogFieldConstant, catalog.cachePath),
			zap.Int(pullRequestCountLogFieldConstant, len(pullRequests)),
			zap.Duration(cacheAgeLogFieldConstant, now.Sub(cacheInfo.ModTime())),
		)
		return pullRequests, nil
	}

	payloads, listError := catalog.lister.ListMergedPullRequestPayloads(executionContext, repository)
	if listError != nil {
		return nil, listError
	}
	pullRequests, decodeError := DecodePullRequests(payloads)
	if decodeError != nil {
		return nil, decodeError
	}
	if writeError := catalog.writeCache(payloads); writeError != nil {
		return nil, writeError
	}

	catalog.logger.Info(catalogFetchedLogMessageConstant,
		zap.String(repositoryLogFieldConstant, repository),
		zap.String(cachePathLogFieldConstant, catalog.cachePath),
		zap.Int(pullRequestCountLogFieldConstant, len(pullRequests)),
	)
	return pullRequests, nil
}

// Invalidate removes the cache so the next Load fetches from the API.
func (catalog *Catalog) Invalidate() error {
	removeError := catalog.fileSystem.Remove(catalog.cachePath)
	if removeError != nil && !errors.Is(removeError, os.ErrNotExist) {
		return fmt.Errorf(cacheRemoveErrorTemplateConstant, catalog.cachePath, removeError)
	}
	if removeError == nil {
		catalog.logger.Info(catalogInvalidatedLogMessageConstant, zap.String(cachePathLogFieldConstant, catalog.cachePath))
	}
	return nil
}

func (catalog *Catalog) readCache() ([]PullRequest, error) {
	contents, readError := afero.ReadFile(catalog.fileSystem, catalog.cachePath)
	if readError != nil {
		return nil, fmt.Errorf(cacheReadErrorTemplateConstant, catalog.cachePath, readError)
	}
	var pullRequests []PullRequest
	if decodeError := json.Unmarshal(contents, &pullRequests); decodeError != nil {
		return nil, CacheDecodingError{Path: catalog.cachePath, Cause: decodeError}
	}
	return pullRequests, nil
}

func (catalog *Catalog) writeCache(payloads []json.RawMessage) error {
	if payloads == nil {
		payloads = []json.RawMessage{}
	}
	contents, encodeError := json.MarshalIndent(payloads, "", cacheIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(cacheWriteErrorTemplateConstant, catalog.cachePath, encodeError)
	}

	if directory := filepath.Dir(catalog.cachePath); directory != "." {
		if mkdirError := catalog.fileSystem.MkdirAll(directory, cacheDirectoryPermissions); mkdirError != nil {
			return fmt.Errorf(cacheWriteErrorTemplateConstant, catalog.cachePath, mkdirError)
		}
	}

	temporaryPath := catalog.cachePath + cacheTemporarySuffixConstant
	if writeError := afero.WriteFile(catalog.fileSystem, temporaryPath, contents, cacheFilePermissions); writeError != nil {
		return fmt.Errorf(cacheWriteErrorTemplateConstant, catalog.cachePath, writeError)
	}
	if renameError := catalog.fileSystem.Rename(temporaryPath, catalog.cachePath); renameError != nil {
		return fmt.Errorf(cacheWriteErrorTemplateConstant, catalog.cachePath, renameError)
	}
	return nil
}
