package migrate

import (
	"context"
	"time"

	"github.com/temirov/prtransfer/internal/bitbucket"
	"github.com/temirov/prtransfer/internal/githubapi"
)

// RepositoryOperations is the subset of gitrepo.RepositoryManager the transfer needs.
type RepositoryOperations interface {
	EnsureClone(executionContext context.Context, remoteURL string, localPath string) (bool, error)
	ReferenceExists(executionContext context.Context, localPath string, reference string) (bool, error)
	CreateOrResetBranch(executionContext context.Context, localPath string, branchName string, fromReference string) error
	AmendCommitTimestamp(executionContext context.Context, localPath string, timestamp string) error
	ForcePush(executionContext context.Context, localPath string, destinationURL string, refspec string) error
	ResolveReference(executionContext context.Context, localPath string, reference string) (string, error)
}

// PullRequestOperations is the subset of githubapi.Client the transfer needs.
type PullRequestOperations interface {
	CreatePullRequest(executionContext context.Context, request githubapi.NewPullRequest) (githubapi.PullRequest, error)
	ClosePullRequest(executionContext context.Context, number int) (githubapi.PullRequest, error)
	DeleteBranch(executionContext context.Context, branch string) (githubapi.BranchDeletionStatus, error)
}

// CatalogLoader yields the merged pull requests of the source repository.
type CatalogLoader interface {
	Load(executionContext context.Context, repository string) ([]bitbucket.PullRequest, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Sleeper waits for duration or until the context ends.
type Sleeper func(executionContext context.Context, duration time.Duration) error

// ContextSleeper waits for duration, returning early with the context error on cancellation.
func ContextSleeper(executionContext context.Context, duration time.Duration) error {
	if duration <= 0 {
		return executionContext.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}
