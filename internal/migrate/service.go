package migrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/prtransfer/internal/bitbucket"
	"github.com/temirov/prtransfer/internal/state"
)

const (
	// DefaultPause is the wait after each transferred pull request.
	DefaultPause = time.Second

	sourceRepositoryFieldNameConstant      = "source_repository"
	sourceRemoteFieldNameConstant          = "source_remote_url"
	destinationRemoteFieldNameConstant     = "destination_remote_url"
	clonePathFieldNameConstant             = "clone_path"
	limitFieldNameConstant                 = "limit"
	requiredValueMessageConstant           = "value required"
	nonNegativeValueMessageConstant        = "must not be negative"
	invalidInputErrorTemplateConstant      = "%s: %s"
	catalogMissingMessageConstant          = "pull request catalog not configured"
	repositoryMissingMessageConstant       = "repository operations not configured"
	pullRequestsMissingMessageConstant     = "pull request operations not configured"
	storeMissingMessageConstant            = "processed store not configured"
	catalogLoadErrorTemplateConstant       = "unable to load pull request catalog: %w"
	processedLoadErrorTemplateConstant     = "unable to load processed pull requests: %w"
	cloneErrorTemplateConstant             = "unable to prepare source clone: %w"
	recordSkippedErrorTemplateConstant     = "unable to record skipped pull request #%d: %w"
	itemFailureErrorTemplateConstant       = "pull request #%d failed after reaching %s: %v"
	stateChangedLogMessageConstant         = "pull request state changed"
	excludedLogMessageConstant             = "skipping excluded pull request"
	alreadyProcessedLogMessageConstant     = "skipping already processed pull request"
	pendingLogMessageConstant              = "pull request pending transfer"
	sourceBranchMissingLogMessageConstant  = "source branch missing; recording pull request as skipped"
	itemFailedLogMessageConstant           = "pull request transfer failed; halting run"
	cloneReadyLogMessageConstant           = "source clone ready"
	limitReachedLogMessageConstant         = "transfer limit reached"
	pullRequestIDLogFieldConstant          = "pull_request_id"
	stateLogFieldConstant                  = "state"
	titleLogFieldConstant                  = "title"
	sourceBranchLogFieldConstant           = "source_branch"
	destinationPullRequestLogFieldConstant = "destination_pull_request"
	commitLogFieldConstant                 = "commit"
	branchDeletionLogFieldConstant         = "branch_deletion"
	clonedLogFieldConstant                 = "cloned"
	clonePathLogFieldConstant              = "clone_path"
	limitLogFieldConstant                  = "limit"
)

// ItemState is a step of the per pull request transfer.
type ItemState string

// Transfer states in the order a pull request passes through them.
const (
	StatePending            ItemState = ItemState("pending")
	StateBaseSynced         ItemState = ItemState("base_synced")
	StateBranchMaterialized ItemState = ItemState("branch_materialized")
	StatePrCreated          ItemState = ItemState("pr_created")
	StatePrClosed           ItemState = ItemState("pr_closed")
	StateBranchDeleted      ItemState = ItemState("branch_deleted")
	StateRecorded           ItemState = ItemState("recorded")
	StateRecordedAsSkipped  ItemState = ItemState("recorded_as_skipped")
)

var (
	errCatalogMissing      = errors.New(catalogMissingMessageConstant)
	errRepositoryMissing   = errors.New(repositoryMissingMessageConstant)
	errPullRequestsMissing = errors.New(pullRequestsMissingMessageConstant)
	errStoreMissing        = errors.New(storeMissingMessageConstant)
)

// InvalidInputError describes transfer option validation failures.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// ItemFailureError reports the pull request that halted a run and the last state it reached.
// The pull request is not recorded, so the next run retries it from the beginning.
type ItemFailureError struct {
	PullRequestID int
	State         ItemState
	Cause         error
}

// Error describes the failure.
func (failure *ItemFailureError) Error() string {
	return fmt.Sprintf(itemFailureErrorTemplateConstant, failure.PullRequestID, failure.State, failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure *ItemFailureError) Unwrap() error {
	return failure.Cause
}

// ServiceDependencies describes required collaborators for a transfer.
type ServiceDependencies struct {
	Logger       *zap.Logger
	Catalog      CatalogLoader
	Repository   RepositoryOperations
	PullRequests PullRequestOperations
	Store        state.ProcessedStore
	Excluded     state.IdentifierSet
	Clock        Clock
	Sleeper      Sleeper
}

// TransferOptions configures a run.
type TransferOptions struct {
	SourceRepository string
	// SourceRemoteURL and DestinationRemoteURL carry credentials and must never be logged unredacted.
	SourceRemoteURL      string
	DestinationRemoteURL string
	ClonePath            string
	Pause                time.Duration
	DryRun               bool
	// Limit stops the run after this many attempted pull requests. Zero means no limit.
	Limit int
}

// RunResult lists the pull request identifiers by how the run handled them.
type RunResult struct {
	Transferred      []int
	Skipped          []int
	Excluded         []int
	AlreadyProcessed []int
	// Pending lists the pull requests a dry run would have attempted.
	Pending []int
}

// Service drives the transfer of every merged pull request, one at a time, oldest first.
type Service struct {
	logger       *zap.Logger
	catalog      CatalogLoader
	repository   RepositoryOperations
	pullRequests PullRequestOperations
	store        state.ProcessedStore
	excluded     state.IdentifierSet
	clock        Clock
	sleeper      Sleeper
}

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Catalog == nil {
		return nil, errCatalogMissing
	}
	if dependencies.Repository == nil {
		return nil, errRepositoryMissing
	}
	if dependencies.PullRequests == nil {
		return nil, errPullRequestsMissing
	}
	if dependencies.Store == nil {
		return nil, errStoreMissing
	}

	service := &Service{
		logger:       dependencies.Logger,
		catalog:      dependencies.Catalog,
		repository:   dependencies.Repository,
		pullRequests: dependencies.PullRequests,
		store:        dependencies.Store,
		excluded:     dependencies.Excluded,
		clock:        dependencies.Clock,
		sleeper:      dependencies.Sleeper,
	}
	if service.logger == nil {
		service.logger = zap.NewNop()
	}
	if service.clock == nil {
		service.clock = time.Now
	}
	if service.sleeper == nil {
		service.sleeper = ContextSleeper
	}
	return service, nil
}

// Execute transfers every merged pull request that is neither excluded nor already processed.
// A missing source branch records the pull request as skipped and moves on; any other failure
// halts the run with an *ItemFailureError and leaves that pull request unrecorded.
func (service *Service) Execute(executionContext context.Context, options TransferOptions) (RunResult, error) {
	result := RunResult{}
	if validationError := validateOptions(options); validationError != nil {
		return result, validationError
	}

	records, catalogError := service.catalog.Load(executionContext, options.SourceRepository)
	if catalogError != nil {
		return result, fmt.Errorf(catalogLoadErrorTemplateConstant, catalogError)
	}
	sort.SliceStable(records, func(left int, right int) bool {
		return records[left].CreatedOn.Before(records[right].CreatedOn)
	})

	processed, loadError := service.store.Load(executionContext)
	if loadError != nil {
		return result, fmt.Errorf(processedLoadErrorTemplateConstant, loadError)
	}

	pending := make([]bitbucket.PullRequest, 0, len(records))
	for _, record := range records {
		switch {
		case service.excluded.Contains(record.ID):
			service.logger.Debug(excludedLogMessageConstant, zap.Int(pullRequestIDLogFieldConstant, record.ID))
			result.Excluded = append(result.Excluded, record.ID)
		case processed.Contains(record.ID):
			service.logger.Debug(alreadyProcessedLogMessageConstant, zap.Int(pullRequestIDLogFieldConstant, record.ID))
			result.AlreadyProcessed = append(result.AlreadyProcessed, record.ID)
		default:
			pending = append(pending, record)
		}
	}

	if options.Limit > 0 && len(pending) > options.Limit {
		service.logger.Info(limitReachedLogMessageConstant, zap.Int(limitLogFieldConstant, options.Limit))
		pending = pending[:options.Limit]
	}

	if options.DryRun {
		for _, record := range pending {
			service.logger.Info(pendingLogMessageConstant,
				zap.Int(pullRequestIDLogFieldConstant, record.ID),
				zap.String(titleLogFieldConstant, record.Title),
				zap.String(sourceBranchLogFieldConstant, record.SourceBranchName()),
			)
			result.Pending = append(result.Pending, record.ID)
		}
		return result, nil
	}

	if len(pending) == 0 {
		return result, nil
	}

	cloned, cloneError := service.repository.EnsureClone(executionContext, options.SourceRemoteURL, options.ClonePath)
	if cloneError != nil {
		return result, fmt.Errorf(cloneErrorTemplateConstant, cloneError)
	}
	service.logger.Info(cloneReadyLogMessageConstant, zap.String(clonePathLogFieldConstant, options.ClonePath), zap.Bool(clonedLogFieldConstant, cloned))

	materializer := NewBranchMaterializer(service.repository, options.ClonePath, options.DestinationRemoteURL, service.clock)
	orchestrator := NewDestinationOrchestrator(service.logger, service.repository, service.pullRequests, options.ClonePath, options.DestinationRemoteURL)

	for _, record := range pending {
		reachedState, itemError := service.transfer(executionContext, materializer, orchestrator, record)
		if itemError == nil {
			result.Transferred = append(result.Transferred, record.ID)
			if sleepError := service.sleeper(executionContext, options.Pause); sleepError != nil {
				return result, sleepError
			}
			continue
		}

		if errors.Is(itemError, ErrSourceBranchMissing) {
			service.logger.Warn(sourceBranchMissingLogMessageConstant,
				zap.Int(pullRequestIDLogFieldConstant, record.ID),
				zap.String(sourceBranchLogFieldConstant, record.SourceBranchName()),
			)
			if recordError := service.store.RecordSkipped(executionContext, record.ID); recordError != nil {
				return result, &ItemFailureError{PullRequestID: record.ID, State: reachedState, Cause: fmt.Errorf(recordSkippedErrorTemplateConstant, record.ID, recordError)}
			}
			service.logTransition(record.ID, StateRecordedAsSkipped)
			result.Skipped = append(result.Skipped, record.ID)
			continue
		}

		service.logger.Error(itemFailedLogMessageConstant,
			zap.Int(pullRequestIDLogFieldConstant, record.ID),
			zap.String(stateLogFieldConstant, string(reachedState)),
			zap.Error(itemError),
		)
		return result, &ItemFailureError{PullRequestID: record.ID, State: reachedState, Cause: itemError}
	}

	return result, nil
}

// transfer runs one pull request through the state machine and returns the last state it reached.
func (service *Service) transfer(executionContext context.Context, materializer *BranchMaterializer, orchestrator *DestinationOrchestrator, record bitbucket.PullRequest) (ItemState, error) {
	reached := StatePending
	service.logTransition(record.ID, reached)

	if contextError := executionContext.Err(); contextError != nil {
		return reached, contextError
	}

	if verifyError := materializer.VerifySource(executionContext, record.ID, record.SourceBranchName()); verifyError != nil {
		return reached, verifyError
	}

	orchestrator.SyncBaseBranch(executionContext, record.DestinationBranchName())
	reached = StateBaseSynced
	service.logTransition(record.ID, reached)

	branch, materializeError := materializer.Materialize(executionContext, record.ID, record.SourceBranchName())
	if materializeError != nil {
		return reached, materializeError
	}
	reached = StateBranchMaterialized
	service.logTransition(record.ID, reached, zap.String(commitLogFieldConstant, branch.CommitSHA))

	created, createError := orchestrator.Create(executionContext, record, branch.DestinationName)
	if createError != nil {
		return reached, createError
	}
	reached = StatePrCreated
	service.logTransition(record.ID, reached, zap.Int(destinationPullRequestLogFieldConstant, created.Number))

	if closeError := orchestrator.Close(executionContext, created.Number); closeError != nil {
		return reached, closeError
	}
	reached = StatePrClosed
	service.logTransition(record.ID, reached, zap.Int(destinationPullRequestLogFieldConstant, created.Number))

	deletion := orchestrator.DeleteBranch(executionContext, branch.DestinationName)
	reached = StateBranchDeleted
	service.logTransition(record.ID, reached, zap.String(branchDeletionLogFieldConstant, string(deletion)))

	if recordError := service.store.RecordSuccess(executionContext, record.ID); recordError != nil {
		return reached, recordError
	}
	reached = StateRecorded
	service.logTransition(record.ID, reached)
	return reached, nil
}

func (service *Service) logTransition(identifier int, reached ItemState, fields ...zap.Field) {
	service.logger.Info(stateChangedLogMessageConstant, append([]zap.Field{
		zap.Int(pullRequestIDLogFieldConstant, identifier),
		zap.String(stateLogFieldConstant, string(reached)),
	}, fields...)...)
}

func validateOptions(options TransferOptions) error {
	if len(strings.TrimSpace(options.SourceRepository)) == 0 {
		return InvalidInputError{FieldName: sourceRepositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if options.Limit < 0 {
		return InvalidInputError{FieldName: limitFieldNameConstant, Message: nonNegativeValueMessageConstant}
	}
	if options.DryRun {
		return nil
	}
	if len(strings.TrimSpace(options.SourceRemoteURL)) == 0 {
		return InvalidInputError{FieldName: sourceRemoteFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(options.DestinationRemoteURL)) == 0 {
		return InvalidInputError{FieldName: destinationRemoteFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(options.ClonePath)) == 0 {
		return InvalidInputError{FieldName: clonePathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return nil
}
