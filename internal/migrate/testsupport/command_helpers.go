package testsupport

import (
	"context"
	"fmt"
	"strings"

	"github.com/temirov/prtransfer/internal/bitbucket"
	"github.com/temirov/prtransfer/internal/githubapi"
	migrate "github.com/temirov/prtransfer/internal/migrate"
)

const (
	firstDestinationNumberConstant = 100
	commitPrefixConstant           = "sha:"
)

// RepositoryStub records git operations and answers from configured state.
type RepositoryStub struct {
	// MissingReferences lists references ReferenceExists reports as absent.
	MissingReferences map[string]bool
	ReferenceError    error
	CloneError        error
	// PushErrors fails ForcePush for the listed refspecs.
	PushErrors map[string]error

	Calls              []string
	Clones             []string
	AmendedTimestamps  []string
	PushedRefspecs     []string
	PushedDestinations []string
}

// EnsureClone records the clone request.
func (repository *RepositoryStub) EnsureClone(_ context.Context, remoteURL string, localPath string) (bool, error) {
	repository.Calls = append(repository.Calls, "clone "+localPath)
	repository.Clones = append(repository.Clones, remoteURL)
	if repository.CloneError != nil {
		return false, repository.CloneError
	}
	return len(repository.Clones) == 1, nil
}

// ReferenceExists reports every reference present except the configured missing ones.
func (repository *RepositoryStub) ReferenceExists(_ context.Context, _ string, reference string) (bool, error) {
	repository.Calls = append(repository.Calls, "verify "+reference)
	if repository.ReferenceError != nil {
		return false, repository.ReferenceError
	}
	return !repository.MissingReferences[reference], nil
}

// CreateOrResetBranch records the checkout.
func (repository *RepositoryStub) CreateOrResetBranch(_ context.Context, _ string, branchName string, fromReference string) error {
	repository.Calls = append(repository.Calls, fmt.Sprintf("checkout %s %s", branchName, fromReference))
	return nil
}

// AmendCommitTimestamp records the requested commit date.
func (repository *RepositoryStub) AmendCommitTimestamp(_ context.Context, _ string, timestamp string) error {
	repository.Calls = append(repository.Calls, "amend "+timestamp)
	repository.AmendedTimestamps = append(repository.AmendedTimestamps, timestamp)
	return nil
}

// ForcePush records the refspec and fails when configured to.
func (repository *RepositoryStub) ForcePush(_ context.Context, _ string, destinationURL string, refspec string) error {
	repository.Calls = append(repository.Calls, "push "+refspec)
	repository.PushedRefspecs = append(repository.PushedRefspecs, refspec)
	repository.PushedDestinations = append(repository.PushedDestinations, destinationURL)
	if pushError, configured := repository.PushErrors[refspec]; configured {
		return pushError
	}
	return nil
}

// ResolveReference derives the commit from the most recent amended timestamp, so distinct dates yield distinct commits.
func (repository *RepositoryStub) ResolveReference(_ context.Context, _ string, reference string) (string, error) {
	repository.Calls = append(repository.Calls, "resolve "+reference)
	if len(repository.AmendedTimestamps) == 0 {
		return commitPrefixConstant + reference, nil
	}
	return commitPrefixConstant + repository.AmendedTimestamps[len(repository.AmendedTimestamps)-1], nil
}

// CallsWithPrefix returns the recorded calls starting with prefix.
func (repository *RepositoryStub) CallsWithPrefix(prefix string) []string {
	matching := make([]string, 0, len(repository.Calls))
	for _, call := range repository.Calls {
		if strings.HasPrefix(call, prefix) {
			matching = append(matching, call)
		}
	}
	return matching
}

// PullRequestStub records destination pull request operations.
type PullRequestStub struct {
	// CreateErrors fails creation for the listed head branches.
	CreateErrors map[string]error
	CloseError   error
	// DeleteErrors fails deletion for the listed branches.
	DeleteErrors map[string]error
	// AbsentBranches are reported as already deleted.
	AbsentBranches map[string]bool

	Created []githubapi.NewPullRequest
	Closed  []int
	Deleted []string
	Events  []string
}

// CreatePullRequest assigns sequential numbers starting at 100.
func (pullRequests *PullRequestStub) CreatePullRequest(_ context.Context, request githubapi.NewPullRequest) (githubapi.PullRequest, error) {
	pullRequests.Events = append(pullRequests.Events, "create "+request.Head)
	if createError, configured := pullRequests.CreateErrors[request.Head]; configured {
		return githubapi.PullRequest{}, createError
	}
	pullRequests.Created = append(pullRequests.Created, request)
	return githubapi.PullRequest{
		Number: firstDestinationNumberConstant + len(pullRequests.Created) - 1,
		Title:  request.Title,
		Body:   request.Body,
		Head:   request.Head,
		Base:   request.Base,
		State:  "open",
	}, nil
}

// ClosePullRequest records the closed number.
func (pullRequests *PullRequestStub) ClosePullRequest(_ context.Context, number int) (githubapi.PullRequest, error) {
	pullRequests.Events = append(pullRequests.Events, fmt.Sprintf("close %d", number))
	if pullRequests.CloseError != nil {
		return githubapi.PullRequest{}, pullRequests.CloseError
	}
	pullRequests.Closed = append(pullRequests.Closed, number)
	return githubapi.PullRequest{Number: number, State: "closed"}, nil
}

// DeleteBranch records the deleted branch.
func (pullRequests *PullRequestStub) DeleteBranch(_ context.Context, branch string) (githubapi.BranchDeletionStatus, error) {
	pullRequests.Events = append(pullRequests.Events, "delete "+branch)
	if deleteError, configured := pullRequests.DeleteErrors[branch]; configured {
		return githubapi.BranchDeletionStatusDeleted, deleteError
	}
	if pullRequests.AbsentBranches[branch] {
		return githubapi.BranchDeletionStatusAlreadyAbsent, nil
	}
	pullRequests.Deleted = append(pullRequests.Deleted, branch)
	return githubapi.BranchDeletionStatusDeleted, nil
}

// CatalogStub returns a fixed pull request catalog.
type CatalogStub struct {
	PullRequests []bitbucket.PullRequest
	LoadError    error
	Repositories []string
}

// Load records the repository and returns a copy of the configured catalog.
func (catalog *CatalogStub) Load(_ context.Context, repository string) ([]bitbucket.PullRequest, error) {
	catalog.Repositories = append(catalog.Repositories, repository)
	if catalog.LoadError != nil {
		return nil, catalog.LoadError
	}
	return append([]bitbucket.PullRequest{}, catalog.PullRequests...), nil
}

// ServiceStub captures transfer execution requests for verification.
type ServiceStub struct {
	Result               migrate.RunResult
	Error                error
	ExecutedOptions      []migrate.TransferOptions
	ReceivedDependencies []migrate.ServiceDependencies
}

// Provider returns a migrate.ServiceProvider that records dependencies and yields the stub.
func (service *ServiceStub) Provider() migrate.ServiceProvider {
	return func(dependencies migrate.ServiceDependencies) (migrate.TransferExecutor, error) {
		service.ReceivedDependencies = append(service.ReceivedDependencies, dependencies)
		return service, nil
	}
}

// Execute records the options and returns the configured outcome.
func (service *ServiceStub) Execute(_ context.Context, options migrate.TransferOptions) (migrate.RunResult, error) {
	service.ExecutedOptions = append(service.ExecutedOptions, options)
	return service.Result, service.Error
}
