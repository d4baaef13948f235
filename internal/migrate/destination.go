package migrate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/prtransfer/internal/bitbucket"
	"github.com/temirov/prtransfer/internal/githubapi"
)

const (
	importedBodyTemplateConstant         = "Imported from Bitbucket PR #%d:\n\n%s"
	baseBranchRefspecTemplateConstant    = "origin/%s:refs/heads/%s"
	baseSyncFailedLogMessageConstant     = "unable to sync base branch to destination"
	branchDeletedLogMessageConstant      = "deleted temporary branch"
	branchAbsentLogMessageConstant       = "temporary branch already absent"
	branchDeleteFailedLogMessageConstant = "unable to delete temporary branch"
	baseBranchLogFieldConstant           = "base_branch"
	branchLogFieldConstant               = "branch"
)

// BranchDeletionOutcome is how the deletion of a temporary branch concluded.
type BranchDeletionOutcome string

// Branch deletion outcomes.
const (
	BranchDeletionDeleted       BranchDeletionOutcome = BranchDeletionOutcome("deleted")
	BranchDeletionAlreadyAbsent BranchDeletionOutcome = BranchDeletionOutcome("already_absent")
	BranchDeletionFailed        BranchDeletionOutcome = BranchDeletionOutcome("failed")
)

// ImportedPullRequestBody renders the body of a recreated pull request.
func ImportedPullRequestBody(record bitbucket.PullRequest) string {
	return fmt.Sprintf(importedBodyTemplateConstant, record.ID, record.Description)
}

// DestinationOrchestrator performs the destination-side steps of a transfer.
type DestinationOrchestrator struct {
	logger         *zap.Logger
	repository     RepositoryOperations
	pullRequests   PullRequestOperations
	clonePath      string
	destinationURL string
}

// NewDestinationOrchestrator constructs a DestinationOrchestrator.
func NewDestinationOrchestrator(logger *zap.Logger, repository RepositoryOperations, pullRequests PullRequestOperations, clonePath string, destinationURL string) *DestinationOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DestinationOrchestrator{
		logger:         logger,
		repository:     repository,
		pullRequests:   pullRequests,
		clonePath:      clonePath,
		destinationURL: destinationURL,
	}
}

// SyncBaseBranch force-pushes origin/<base> to the destination so the recreated pull request
// has a base to compare against. Failures are logged and otherwise ignored.
func (orchestrator *DestinationOrchestrator) SyncBaseBranch(executionContext context.Context, base string) {
	refspec := fmt.Sprintf(baseBranchRefspecTemplateConstant, base, base)
	if pushError := orchestrator.repository.ForcePush(executionContext, orchestrator.clonePath, orchestrator.destinationURL, refspec); pushError != nil {
		orchestrator.logger.Warn(baseSyncFailedLogMessageConstant, zap.String(baseBranchLogFieldConstant, base), zap.Error(pushError))
	}
}

// Create opens the destination pull request for record with head as its head branch.
func (orchestrator *DestinationOrchestrator) Create(executionContext context.Context, record bitbucket.PullRequest, head string) (githubapi.PullRequest, error) {
	return orchestrator.pullRequests.CreatePullRequest(executionContext, githubapi.NewPullRequest{
		Title: record.Title,
		Body:  ImportedPullRequestBody(record),
		Head:  head,
		Base:  record.DestinationBranchName(),
	})
}

// Close closes pull request number.
func (orchestrator *DestinationOrchestrator) Close(executionContext context.Context, number int) error {
	_, closeError := orchestrator.pullRequests.ClosePullRequest(executionContext, number)
	return closeError
}

// DeleteBranch removes the temporary branch from the destination. It never fails the transfer;
// a branch that could not be deleted is left behind and logged.
func (orchestrator *DestinationOrchestrator) DeleteBranch(executionContext context.Context, branch string) BranchDeletionOutcome {
	status, deleteError := orchestrator.pullRequests.DeleteBranch(executionContext, branch)
	switch {
	case deleteError != nil:
		orchestrator.logger.Warn(branchDeleteFailedLogMessageConstant, zap.String(branchLogFieldConstant, branch), zap.Error(deleteError))
		return BranchDeletionFailed
	case status == githubapi.BranchDeletionStatusAlreadyAbsent:
		orchestrator.logger.Info(branchAbsentLogMessageConstant, zap.String(branchLogFieldConstant, branch))
		return BranchDeletionAlreadyAbsent
	default:
		orchestrator.logger.Debug(branchDeletedLogMessageConstant, zap.String(branchLogFieldConstant, branch))
		return BranchDeletionDeleted
	}
}
