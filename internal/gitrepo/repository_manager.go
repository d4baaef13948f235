package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/temirov/prtransfer/internal/execshell"
)

const (
	gitCloneSubcommandConstant           = "clone"
	gitFetchSubcommandConstant           = "fetch"
	gitAllFlagConstant                   = "--all"
	gitCheckoutSubcommandConstant        = "checkout"
	gitResetBranchFlagConstant           = "-B"
	gitCommitSubcommandConstant          = "commit"
	gitAmendFlagConstant                 = "--amend"
	gitNoEditFlagConstant                = "--no-edit"
	gitDateFlagPrefixConstant            = "--date="
	gitPushSubcommandConstant            = "push"
	gitForceFlagConstant                 = "--force"
	gitRevParseSubcommandConstant        = "rev-parse"
	gitVerifyFlagConstant                = "--verify"
	gitQuietFlagConstant                 = "--quiet"
	gitCommitPeelSuffixConstant          = "^{commit}"
	gitDirectoryNameConstant             = ".git"
	gitTerminalPromptVariableConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledConstant    = "0"
	referenceAbsentExitCodeConstant      = 1
	executorNotConfiguredMessageConstant = "git executor not configured"
	operationErrorTemplateConstant       = "%s failed for %s: %v"
	referenceVerificationErrorTemplate   = "unable to verify reference %s in %s: %v"
	repositoryPathFieldNameConstant      = "repository path"
	remoteURLFieldNameConstant           = "remote url"
	branchNameFieldNameConstant          = "branch name"
	referenceFieldNameConstant           = "reference"
	timestampFieldNameConstant           = "timestamp"
	refspecFieldNameConstant             = "refspec"
	invalidInputErrorTemplateConstant    = "%s: %s"
	repositoryInspectionErrorTemplate    = "unable to inspect %s: %w"
	emptyReferenceOutputMessageConstant  = "git returned an empty object name"
)

// OperationName identifies a repository operation for error reporting.
type OperationName string

// Repository operations.
const (
	OperationClone               OperationName = OperationName("Clone")
	OperationFetchAll            OperationName = OperationName("FetchAll")
	OperationCreateOrResetBranch OperationName = OperationName("CreateOrResetBranch")
	OperationAmendTimestamp      OperationName = OperationName("AmendCommitTimestamp")
	OperationForcePush           OperationName = OperationName("ForcePush")
	OperationResolveReference    OperationName = OperationName("ResolveReference")
)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ErrGitExecutorNotConfigured indicates the manager was constructed without an executor.
var ErrGitExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// InvalidInputError reports a missing or malformed argument.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps a failed git invocation with the operation that issued it.
type OperationError struct {
	Operation      OperationName
	RepositoryPath string
	Cause          error
}

// Error describes the failure.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.RepositoryPath, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ReferenceVerificationError reports that git could not determine whether a reference exists.
// It is distinct from a reference that is verifiably absent.
type ReferenceVerificationError struct {
	Reference      string
	RepositoryPath string
	Cause          error
}

// Error describes the verification failure.
func (verificationError ReferenceVerificationError) Error() string {
	return fmt.Sprintf(referenceVerificationErrorTemplate, verificationError.Reference, verificationError.RepositoryPath, verificationError.Cause)
}

// Unwrap exposes the underlying cause.
func (verificationError ReferenceVerificationError) Unwrap() error {
	return verificationError.Cause
}

// RepositoryManager performs the git operations required to materialize branches in a local clone.
type RepositoryManager struct {
	executor   GitExecutor
	fileSystem afero.Fs
}

// NewRepositoryManager constructs a RepositoryManager backed by the executor.
func NewRepositoryManager(executor GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor, fileSystem: afero.NewOsFs()}, nil
}

// SetFileSystem replaces the filesystem used to detect existing clones.
func (manager *RepositoryManager) SetFileSystem(fileSystem afero.Fs) {
	if fileSystem != nil {
		manager.fileSystem = fileSystem
	}
}

// Clone clones remoteURL into localPath.
func (manager *RepositoryManager) Clone(executionContext context.Context, remoteURL string, localPath string) error {
	if validationError := requireValues(remoteURLFieldNameConstant, remoteURL, repositoryPathFieldNameConstant, localPath); validationError != nil {
		return validationError
	}
	_, cloneError := manager.run(executionContext, emptyWorkingDirectory, gitCloneSubcommandConstant, remoteURL, localPath)
	return manager.wrap(OperationClone, localPath, cloneError)
}

// FetchAll fetches every remote of the clone at localPath.
func (manager *RepositoryManager) FetchAll(executionContext context.Context, localPath string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, localPath); validationError != nil {
		return validationError
	}
	_, fetchError := manager.run(executionContext, localPath, gitFetchSubcommandConstant, gitAllFlagConstant)
	return manager.wrap(OperationFetchAll, localPath, fetchError)
}

// EnsureClone clones remoteURL into localPath when no repository exists there and fetches all remotes otherwise.
// It reports whether a fresh clone was created.
func (manager *RepositoryManager) EnsureClone(executionContext context.Context, remoteURL string, localPath string) (bool, error) {
	if validationError := requireValues(remoteURLFieldNameConstant, remoteURL, repositoryPathFieldNameConstant, localPath); validationError != nil {
		return false, validationError
	}

	repositoryExists, inspectionError := afero.DirExists(manager.fileSystem, filepath.Join(localPath, gitDirectoryNameConstant))
	if inspectionError != nil {
		return false, fmt.Errorf(repositoryInspectionErrorTemplate, localPath, inspectionError)
	}
	if repositoryExists {
		return false, manager.FetchAll(executionContext, localPath)
	}
	return true, manager.Clone(executionContext, remoteURL, localPath)
}

// CreateOrResetBranch points branchName at fromReference and checks it out, creating it when missing.
func (manager *RepositoryManager) CreateOrResetBranch(executionContext context.Context, localPath string, branchName string, fromReference string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, localPath, branchNameFieldNameConstant, branchName, referenceFieldNameConstant, fromReference); validationError != nil {
		return validationError
	}
	_, checkoutError := manager.run(executionContext, localPath, gitCheckoutSubcommandConstant, gitResetBranchFlagConstant, branchName, fromReference)
	return manager.wrap(OperationCreateOrResetBranch, localPath, checkoutError)
}

// AmendCommitTimestamp rewrites the checked-out commit with the provided author date, producing a new object name.
func (manager *RepositoryManager) AmendCommitTimestamp(executionContext context.Context, localPath string, timestamp string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, localPath, timestampFieldNameConstant, timestamp); validationError != nil {
		return validationError
	}
	_, amendError := manager.run(executionContext, localPath, gitCommitSubcommandConstant, gitAmendFlagConstant, gitNoEditFlagConstant, gitDateFlagPrefixConstant+timestamp)
	return manager.wrap(OperationAmendTimestamp, localPath, amendError)
}

// ForcePush force-pushes refspec to destinationURL.
func (manager *RepositoryManager) ForcePush(executionContext context.Context, localPath string, destinationURL string, refspec string) error {
	if validationError := requireValues(repositoryPathFieldNameConstant, localPath, remoteURLFieldNameConstant, destinationURL, refspecFieldNameConstant, refspec); validationError != nil {
		return validationError
	}
	_, pushError := manager.run(executionContext, localPath, gitPushSubcommandConstant, gitForceFlagConstant, destinationURL, refspec)
	return manager.wrap(OperationForcePush, localPath, pushError)
}

// ReferenceExists reports whether reference resolves to a commit.
// A clean exit code 1 without diagnostics means the reference is absent; any other failure
// is returned as ReferenceVerificationError.
func (manager *RepositoryManager) ReferenceExists(executionContext context.Context, localPath string, reference string) (bool, error) {
	if validationError := requireValues(repositoryPathFieldNameConstant, localPath, referenceFieldNameConstant, reference); validationError != nil {
		return false, validationError
	}

	_, verifyError := manager.run(executionContext, localPath, gitRevParseSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, reference+gitCommitPeelSuffixConstant)
	if verifyError == nil {
		return true, nil
	}

	var commandFailure execshell.CommandFailedError
	if errors.As(verifyError, &commandFailure) &&
		commandFailure.Result.ExitCode == referenceAbsentExitCodeConstant &&
		len(strings.TrimSpace(commandFailure.Result.StandardError)) == 0 {
		return false, nil
	}

	return false, ReferenceVerificationError{Reference: reference, RepositoryPath: localPath, Cause: verifyError}
}

// ResolveReference returns the commit object name that reference points to.
func (manager *RepositoryManager) ResolveReference(executionContext context.Context, localPath string, reference string) (string, error) {
	if validationError := requireValues(repositoryPathFieldNameConstant, localPath, referenceFieldNameConstant, reference); validationError != nil {
		return "", validationError
	}

	executionResult, resolveError := manager.run(executionContext, localPath, gitRevParseSubcommandConstant, gitVerifyFlagConstant, reference+gitCommitPeelSuffixConstant)
	if resolveError != nil {
		return "", manager.wrap(OperationResolveReference, localPath, resolveError)
	}

	objectName := strings.TrimSpace(executionResult.StandardOutput)
	if len(objectName) == 0 {
		return "", manager.wrap(OperationResolveReference, localPath, errors.New(emptyReferenceOutputMessageConstant))
	}
	return objectName, nil
}

const emptyWorkingDirectory = ""

func (manager *RepositoryManager) run(executionContext context.Context, workingDirectory string, arguments ...string) (execshell.ExecutionResult, error) {
	return manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     workingDirectory,
		EnvironmentVariables: map[string]string{gitTerminalPromptVariableConstant: gitTerminalPromptDisabledConstant},
	})
}

func (manager *RepositoryManager) wrap(operation OperationName, localPath string, cause error) error {
	if cause == nil {
		return nil
	}
	return OperationError{Operation: operation, RepositoryPath: localPath, Cause: cause}
}

// requireValues accepts alternating field names and values.
func requireValues(fieldsAndValues ...string) error {
	for index := 0; index+1 < len(fieldsAndValues); index += 2 {
		if len(strings.TrimSpace(fieldsAndValues[index+1])) == 0 {
			return InvalidInputError{FieldName: fieldsAndValues[index], Message: requiredValueMessageConstant}
		}
	}
	return nil
}
