package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/prtransfer/internal/state"
)

const (
	stateCommandUseConstant              = "state"
	stateCommandShortDescriptionConstant = "Inspect transfer progress"
	stateListUseConstant                 = "list"
	stateListShortDescriptionConstant    = "List processed and excluded pull requests"
	stateListLongDescriptionConstant     = "list prints every pull request recorded as processed, with its outcome when the sqlite backend is used, followed by the excluded pull requests."
	processedLineTemplateConstant        = "processed\t%d\n"
	processedEntryLineTemplateConstant   = "processed\t%d\t%s\t%s\n"
	excludedLineTemplateConstant         = "excluded\t%d\n"
	stateListedMessageConstant           = "processed state listed"
	processedCountLogFieldConstant       = "processed"
	stateReadErrorTemplateConstant       = "unable to read processed store: %w"
	stateOutputErrorTemplateConstant     = "unable to write state listing: %w"
)

// processedEntryLister is implemented by stores that keep per-entry bookkeeping.
type processedEntryLister interface {
	Entries(executionContext context.Context) ([]state.ProcessedEntry, error)
}

// StateCommandBuilder assembles the state Cobra command.
type StateCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	FileSystem            afero.Fs
}

// Build constructs the state command with its list subcommand.
func (builder *StateCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   stateCommandUseConstant,
		Short: stateCommandShortDescriptionConstant,
	}

	listCommand := &cobra.Command{
		Use:           stateListUseConstant,
		Short:         stateListShortDescriptionConstant,
		Long:          stateListLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runList,
	}
	command.AddCommand(listCommand)

	return command, nil
}

func (builder *StateCommandBuilder) runList(command *cobra.Command, _ []string) error {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider().Sanitize()
	}
	fileSystem := builder.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	logger := zap.NewNop()
	if builder.LoggerProvider != nil {
		if provided := builder.LoggerProvider(); provided != nil {
			logger = provided
		}
	}

	store, openError := state.OpenStore(command.Context(), state.StoreOptions{
		Backend:      state.Backend(configuration.State.Backend),
		JSONPath:     configuration.Paths.ProcessedFile,
		DatabasePath: configuration.State.DatabasePath,
		FileSystem:   fileSystem,
	})
	if openError != nil {
		return fmt.Errorf(stateStoreOpenErrorTemplateConstant, openError)
	}
	defer store.Close()

	excluded, excludedError := state.LoadExcluded(fileSystem, configuration.Paths.ExcludedFile)
	if excludedError != nil {
		return fmt.Errorf(excludedLoadErrorTemplateConstant, excludedError)
	}

	output := command.OutOrStdout()
	processedCount := 0
	if lister, supportsEntries := store.(processedEntryLister); supportsEntries {
		entries, entriesError := lister.Entries(command.Context())
		if entriesError != nil {
			return fmt.Errorf(stateReadErrorTemplateConstant, entriesError)
		}
		for _, entry := range entries {
			if _, writeError := fmt.Fprintf(output, processedEntryLineTemplateConstant, entry.ID, entry.Outcome, entry.RecordedAt.UTC().Format(time.RFC3339)); writeError != nil {
				return fmt.Errorf(stateOutputErrorTemplateConstant, writeError)
			}
		}
		processedCount = len(entries)
	} else {
		processed, loadError := store.Load(command.Context())
		if loadError != nil {
			return fmt.Errorf(stateReadErrorTemplateConstant, loadError)
		}
		for _, identifier := range processed.Sorted() {
			if _, writeError := fmt.Fprintf(output, processedLineTemplateConstant, identifier); writeError != nil {
				return fmt.Errorf(stateOutputErrorTemplateConstant, writeError)
			}
		}
		processedCount = processed.Len()
	}

	for _, identifier := range excluded.Sorted() {
		if _, writeError := fmt.Fprintf(output, excludedLineTemplateConstant, identifier); writeError != nil {
			return fmt.Errorf(stateOutputErrorTemplateConstant, writeError)
		}
	}

	logger.Debug(stateListedMessageConstant,
		zap.Int(processedCountLogFieldConstant, processedCount),
		zap.Int(excludedCountLogFieldConstant, excluded.Len()),
	)
	return nil
}
