package migrate

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/prtransfer/internal/bitbucket"
	"github.com/temirov/prtransfer/internal/credentials"
	"github.com/temirov/prtransfer/internal/execshell"
	"github.com/temirov/prtransfer/internal/githubapi"
	"github.com/temirov/prtransfer/internal/githubauth"
	"github.com/temirov/prtransfer/internal/gitrepo"
	"github.com/temirov/prtransfer/internal/state"
	"github.com/temirov/prtransfer/internal/utils"
)

const (
	commandUseConstant                     = "transfer"
	commandShortDescriptionConstant        = "Recreate merged Bitbucket pull requests on GitHub"
	commandLongDescriptionConstant         = "transfer recreates every merged pull request of a Bitbucket repository on a GitHub repository as a closed pull request, oldest first. Progress is recorded after each pull request so an interrupted run resumes where it stopped."
	dryRunFlagNameConstant                 = "dry-run"
	dryRunFlagUsageConstant                = "List the pull requests that would be transferred without changing anything"
	limitFlagNameConstant                  = "limit"
	limitFlagUsageConstant                 = "Stop after this many pull requests (0 transfers all)"
	refreshCatalogFlagNameConstant         = "refresh-catalog"
	refreshCatalogFlagUsageConstant        = "Discard the cached pull request catalog and fetch it again"
	sourceFlagNameConstant                 = "source"
	sourceFlagUsageConstant                = "Source Bitbucket repository (workspace/slug)"
	destinationFlagNameConstant            = "destination"
	destinationFlagUsageConstant           = "Destination GitHub repository (owner/name)"
	destinationTokenUsernameConstant       = "x-access-token"
	credentialResolutionErrorTemplate      = "unable to resolve credentials: %w"
	bitbucketClientCreationErrorTemplate   = "unable to construct Bitbucket client: %w"
	catalogCreationErrorTemplateConstant   = "unable to construct pull request catalog: %w"
	catalogRefreshErrorTemplateConstant    = "unable to refresh pull request catalog: %w"
	repositoryManagerCreationErrorTemplate = "unable to construct repository manager: %w"
	githubClientCreationErrorTemplate      = "unable to construct GitHub client: %w"
	stateStoreOpenErrorTemplateConstant    = "unable to open processed store: %w"
	excludedLoadErrorTemplateConstant      = "unable to load excluded pull requests: %w"
	remoteURLErrorTemplateConstant         = "unable to build %s remote url: %w"
	sourceRemoteLabelConstant              = "source"
	destinationRemoteLabelConstant         = "destination"
	transferSummaryMessageConstant         = "transfer summary"
	transferStartedMessageConstant         = "transfer started"
	runIdentifierLogFieldConstant          = "run_id"
	sourceRepositoryLogFieldConstant       = "source_repository"
	destinationRepositoryLogFieldConstant  = "destination_repository"
	dryRunLogFieldConstant                 = "dry_run"
	transferredCountLogFieldConstant       = "transferred"
	skippedCountLogFieldConstant           = "skipped"
	excludedCountLogFieldConstant          = "excluded"
	alreadyProcessedCountLogFieldConstant  = "already_processed"
	pendingCountLogFieldConstant           = "pending"
)

// TransferExecutor runs a transfer.
type TransferExecutor interface {
	Execute(executionContext context.Context, options TransferOptions) (RunResult, error)
}

// ServiceProvider constructs a transfer executor from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (TransferExecutor, error)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

type commandOptions struct {
	dryRun         bool
	limit          int
	refreshCatalog bool
}

// CommandBuilder assembles the transfer Cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     gitrepo.GitExecutor
	ServiceProvider              ServiceProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	FileSystem                   afero.Fs
	EnvironmentLookup            githubauth.EnvironmentLookup
	KeyringOpener                credentials.KeyringOpener
	Clock                        Clock
	Sleeper                      Sleeper
}

// Build constructs the transfer command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runTransfer,
	}

	command.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagUsageConstant)
	command.Flags().Int(limitFlagNameConstant, 0, limitFlagUsageConstant)
	command.Flags().Bool(refreshCatalogFlagNameConstant, false, refreshCatalogFlagUsageConstant)
	command.Flags().String(sourceFlagNameConstant, "", sourceFlagUsageConstant)
	command.Flags().String(destinationFlagNameConstant, "", destinationFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) runTransfer(command *cobra.Command, arguments []string) error {
	configuration, options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger(command)
	fileSystem := builder.resolveFileSystem()

	sourceIdentifier, destinationIdentifier, identifierError := configuration.RepositoryIdentifiers()
	if identifierError != nil {
		return identifierError
	}

	resolver := credentials.NewResolver(logger, builder.EnvironmentLookup, builder.KeyringOpener)
	resolvedCredentials, credentialsError := resolver.Resolve(credentials.Credentials{
		BitbucketUsername:    configuration.Source.Username,
		BitbucketAppPassword: configuration.Source.AppPassword,
		GitHubToken:          configuration.Destination.Token,
	})
	if credentialsError != nil {
		return fmt.Errorf(credentialResolutionErrorTemplate, credentialsError)
	}

	bitbucketClient, bitbucketError := bitbucket.NewClient(bitbucket.ClientOptions{
		BaseURL:     configuration.Source.APIBaseURL,
		Username:    resolvedCredentials.BitbucketUsername,
		AppPassword: resolvedCredentials.BitbucketAppPassword,
		PageLength:  configuration.Catalog.PageLength,
	})
	if bitbucketError != nil {
		return fmt.Errorf(bitbucketClientCreationErrorTemplate, bitbucketError)
	}

	catalog, catalogError := bitbucket.NewCatalog(bitbucket.CatalogDependencies{
		Logger:     logger,
		Lister:     bitbucketClient,
		FileSystem: fileSystem,
		Clock:      builder.Clock,
		CachePath:  configuration.Paths.CatalogCache,
		Policy:     bitbucket.CachePolicy{MaxAge: configuration.Catalog.MaxAge},
	})
	if catalogError != nil {
		return fmt.Errorf(catalogCreationErrorTemplateConstant, catalogError)
	}
	if options.refreshCatalog {
		if invalidateError := catalog.Invalidate(); invalidateError != nil {
			return fmt.Errorf(catalogRefreshErrorTemplateConstant, invalidateError)
		}
	}

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return executorError
	}
	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor)
	if managerError != nil {
		return fmt.Errorf(repositoryManagerCreationErrorTemplate, managerError)
	}
	repositoryManager.SetFileSystem(fileSystem)

	githubClient, githubClientError := githubapi.NewClient(command.Context(), githubapi.ClientOptions{
		Token:      resolvedCredentials.GitHubToken,
		Repository: destinationIdentifier,
		BaseURL:    configuration.Destination.APIBaseURL,
	})
	if githubClientError != nil {
		return fmt.Errorf(githubClientCreationErrorTemplate, githubClientError)
	}

	store, storeError := state.OpenStore(command.Context(), state.StoreOptions{
		Backend:      state.Backend(configuration.State.Backend),
		JSONPath:     configuration.Paths.ProcessedFile,
		DatabasePath: configuration.State.DatabasePath,
		FileSystem:   fileSystem,
	})
	if storeError != nil {
		return fmt.Errorf(stateStoreOpenErrorTemplateConstant, storeError)
	}
	defer store.Close()

	excluded, excludedError := state.LoadExcluded(fileSystem, configuration.Paths.ExcludedFile)
	if excludedError != nil {
		return fmt.Errorf(excludedLoadErrorTemplateConstant, excludedError)
	}

	sourceRemoteURL, sourceRemoteError := gitrepo.BuildAuthenticatedRemoteURL(
		configuration.Source.GitHost,
		sourceIdentifier,
		url.UserPassword(resolvedCredentials.BitbucketUsername, resolvedCredentials.BitbucketAppPassword),
	)
	if sourceRemoteError != nil {
		return fmt.Errorf(remoteURLErrorTemplateConstant, sourceRemoteLabelConstant, sourceRemoteError)
	}
	destinationRemoteURL, destinationRemoteError := gitrepo.BuildAuthenticatedRemoteURL(
		configuration.Destination.GitHost,
		destinationIdentifier,
		url.UserPassword(destinationTokenUsernameConstant, resolvedCredentials.GitHubToken),
	)
	if destinationRemoteError != nil {
		return fmt.Errorf(remoteURLErrorTemplateConstant, destinationRemoteLabelConstant, destinationRemoteError)
	}

	service, serviceError := builder.resolveService(ServiceDependencies{
		Logger:       logger,
		Catalog:      catalog,
		Repository:   repositoryManager,
		PullRequests: githubClient,
		Store:        store,
		Excluded:     excluded,
		Clock:        builder.Clock,
		Sleeper:      builder.Sleeper,
	})
	if serviceError != nil {
		return serviceError
	}

	logger.Info(transferStartedMessageConstant,
		zap.String(sourceRepositoryLogFieldConstant, sourceIdentifier.String()),
		zap.String(destinationRepositoryLogFieldConstant, destinationIdentifier.String()),
		zap.Bool(dryRunLogFieldConstant, options.dryRun),
	)

	result, transferError := service.Execute(command.Context(), TransferOptions{
		SourceRepository:     sourceIdentifier.String(),
		SourceRemoteURL:      sourceRemoteURL,
		DestinationRemoteURL: destinationRemoteURL,
		ClonePath:            configuration.Paths.CloneDirectory,
		Pause:                configuration.Pause,
		DryRun:               options.dryRun,
		Limit:                options.limit,
	})
	builder.logSummary(logger, result)
	return transferError
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) (CommandConfiguration, commandOptions, error) {
	configuration := builder.resolveConfiguration()

	if command.Flags().Changed(sourceFlagNameConstant) {
		flagValue, _ := command.Flags().GetString(sourceFlagNameConstant)
		configuration.Source.Repository = strings.TrimSpace(flagValue)
	}
	if command.Flags().Changed(destinationFlagNameConstant) {
		flagValue, _ := command.Flags().GetString(destinationFlagNameConstant)
		configuration.Destination.Repository = strings.TrimSpace(flagValue)
	}
	if validationError := configuration.Validate(); validationError != nil {
		return CommandConfiguration{}, commandOptions{}, validationError
	}

	dryRun, _ := command.Flags().GetBool(dryRunFlagNameConstant)
	limit, _ := command.Flags().GetInt(limitFlagNameConstant)
	refreshCatalog, _ := command.Flags().GetBool(refreshCatalogFlagNameConstant)
	if limit < 0 {
		return CommandConfiguration{}, commandOptions{}, InvalidInputError{FieldName: limitFieldNameConstant, Message: nonNegativeValueMessageConstant}
	}

	return configuration, commandOptions{dryRun: dryRun, limit: limit, refreshCatalog: refreshCatalog}, nil
}

func (builder *CommandBuilder) resolveLogger(command *cobra.Command) *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if runIdentifier, available := utils.NewCommandContextAccessor().RunIdentifier(command.Context()); available {
		logger = logger.With(zap.String(runIdentifierLogFieldConstant, runIdentifier))
	}
	return logger
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (gitrepo.GitExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, commandRunner, humanReadableLogging)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

func (builder *CommandBuilder) resolveFileSystem() afero.Fs {
	if builder.FileSystem != nil {
		return builder.FileSystem
	}
	return afero.NewOsFs()
}

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (TransferExecutor, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	service, serviceError := NewService(dependencies)
	if serviceError != nil {
		return nil, serviceError
	}
	return service, nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}

	provided := builder.ConfigurationProvider()
	return provided.Sanitize()
}

func (builder *CommandBuilder) logSummary(logger *zap.Logger, result RunResult) {
	logger.Info(
		transferSummaryMessageConstant,
		zap.Int(transferredCountLogFieldConstant, len(result.Transferred)),
		zap.Int(skippedCountLogFieldConstant, len(result.Skipped)),
		zap.Int(excludedCountLogFieldConstant, len(result.Excluded)),
		zap.Int(alreadyProcessedCountLogFieldConstant, len(result.AlreadyProcessed)),
		zap.Int(pendingCountLogFieldConstant, len(result.Pending)),
	)
}
