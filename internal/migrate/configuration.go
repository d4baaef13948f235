package migrate

import (
	"strings"
	"time"

	"github.com/temirov/prtransfer/internal/bitbucket"
	"github.com/temirov/prtransfer/internal/gitrepo"
	"github.com/temirov/prtransfer/internal/state"
	"github.com/temirov/prtransfer/internal/utils"
)

const (
	// DefaultCloneDirectory is the working clone of the source repository.
	DefaultCloneDirectory = "bitbucket_clone"
	// DefaultSourceGitHost serves the source repository over HTTPS.
	DefaultSourceGitHost = "bitbucket.org"
	// DefaultDestinationGitHost serves the destination repository over HTTPS.
	DefaultDestinationGitHost = "github.com"

	sourceRepositoryConfigurationField      = "transfer.source.repository"
	destinationRepositoryConfigurationField = "transfer.destination.repository"
	pageLengthConfigurationField            = "transfer.catalog.page_length"
	maxAgeConfigurationField                = "transfer.catalog.max_age"
	pauseConfigurationField                 = "transfer.pause"
	configurationKeySeparatorConstant       = "."
)

var configurationHomeExpander = utils.NewHomeExpander()

// SourceConfiguration describes the Bitbucket repository pull requests are read from.
type SourceConfiguration struct {
	Repository  string `mapstructure:"repository"`
	Username    string `mapstructure:"username"`
	AppPassword string `mapstructure:"app_password"`
	APIBaseURL  string `mapstructure:"api_base_url"`
	GitHost     string `mapstructure:"git_host"`
}

// DestinationConfiguration describes the GitHub repository pull requests are recreated on.
type DestinationConfiguration struct {
	Repository string `mapstructure:"repository"`
	Token      string `mapstructure:"token"`
	APIBaseURL string `mapstructure:"api_base_url"`
	GitHost    string `mapstructure:"git_host"`
}

// PathsConfiguration locates the local working files.
type PathsConfiguration struct {
	CloneDirectory string `mapstructure:"clone_directory"`
	CatalogCache   string `mapstructure:"catalog_cache"`
	ProcessedFile  string `mapstructure:"processed_file"`
	ExcludedFile   string `mapstructure:"excluded_file"`
}

// StateConfiguration selects the processed store backend.
type StateConfiguration struct {
	Backend      string `mapstructure:"backend"`
	DatabasePath string `mapstructure:"database_path"`
}

// CatalogConfiguration tunes catalog fetching and caching.
type CatalogConfiguration struct {
	MaxAge     time.Duration `mapstructure:"max_age"`
	PageLength int           `mapstructure:"page_length"`
}

// CommandConfiguration captures persisted configuration for the transfer.
type CommandConfiguration struct {
	Source      SourceConfiguration      `mapstructure:"source"`
	Destination DestinationConfiguration `mapstructure:"destination"`
	Paths       PathsConfiguration       `mapstructure:"paths"`
	State       StateConfiguration       `mapstructure:"state"`
	Catalog     CatalogConfiguration     `mapstructure:"catalog"`
	Pause       time.Duration            `mapstructure:"pause"`
}

// DefaultCommandConfiguration returns baseline configuration values for the transfer.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Source: SourceConfiguration{
			APIBaseURL: bitbucket.DefaultAPIBaseURL,
			GitHost:    DefaultSourceGitHost,
		},
		Destination: DestinationConfiguration{
			GitHost: DefaultDestinationGitHost,
		},
		Paths: PathsConfiguration{
			CloneDirectory: DefaultCloneDirectory,
			CatalogCache:   bitbucket.DefaultCachePath,
			ProcessedFile:  state.DefaultProcessedFilePath,
			ExcludedFile:   state.DefaultExcludedFilePath,
		},
		State: StateConfiguration{
			Backend:      string(state.BackendJSON),
			DatabasePath: state.DefaultDatabasePath,
		},
		Catalog: CatalogConfiguration{
			MaxAge:     0,
			PageLength: bitbucket.DefaultPageLength,
		},
		Pause: DefaultPause,
	}
}

// Sanitize trims configured values, expands home-relative paths, and restores defaults for blank settings.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.Source.Repository = strings.TrimSpace(configuration.Source.Repository)
	sanitized.Source.Username = strings.TrimSpace(configuration.Source.Username)
	sanitized.Source.AppPassword = strings.TrimSpace(configuration.Source.AppPassword)
	sanitized.Source.APIBaseURL = valueOrDefault(configuration.Source.APIBaseURL, defaults.Source.APIBaseURL)
	sanitized.Source.GitHost = valueOrDefault(configuration.Source.GitHost, defaults.Source.GitHost)

	sanitized.Destination.Repository = strings.TrimSpace(configuration.Destination.Repository)
	sanitized.Destination.Token = strings.TrimSpace(configuration.Destination.Token)
	sanitized.Destination.APIBaseURL = strings.TrimSpace(configuration.Destination.APIBaseURL)
	sanitized.Destination.GitHost = valueOrDefault(configuration.Destination.GitHost, defaults.Destination.GitHost)

	sanitized.Paths.CloneDirectory = expandPath(configuration.Paths.CloneDirectory, defaults.Paths.CloneDirectory)
	sanitized.Paths.CatalogCache = expandPath(configuration.Paths.CatalogCache, defaults.Paths.CatalogCache)
	sanitized.Paths.ProcessedFile = expandPath(configuration.Paths.ProcessedFile, defaults.Paths.ProcessedFile)
	sanitized.Paths.ExcludedFile = expandPath(configuration.Paths.ExcludedFile, defaults.Paths.ExcludedFile)

	sanitized.State.Backend = strings.ToLower(valueOrDefault(configuration.State.Backend, defaults.State.Backend))
	sanitized.State.DatabasePath = expandPath(configuration.State.DatabasePath, defaults.State.DatabasePath)

	if sanitized.Catalog.PageLength <= 0 {
		sanitized.Catalog.PageLength = defaults.Catalog.PageLength
	}
	return sanitized
}

// Validate reports missing or malformed required settings.
func (configuration CommandConfiguration) Validate() error {
	if _, _, identifierError := configuration.RepositoryIdentifiers(); identifierError != nil {
		return identifierError
	}
	if configuration.Catalog.PageLength < 0 {
		return InvalidInputError{FieldName: pageLengthConfigurationField, Message: nonNegativeValueMessageConstant}
	}
	if configuration.Catalog.MaxAge < 0 {
		return InvalidInputError{FieldName: maxAgeConfigurationField, Message: nonNegativeValueMessageConstant}
	}
	if configuration.Pause < 0 {
		return InvalidInputError{FieldName: pauseConfigurationField, Message: nonNegativeValueMessageConstant}
	}
	return nil
}

// RepositoryIdentifiers parses the source and destination repositories, reporting the first
// malformed one as InvalidInputError.
func (configuration CommandConfiguration) RepositoryIdentifiers() (gitrepo.RepositoryIdentifier, gitrepo.RepositoryIdentifier, error) {
	sourceIdentifier, sourceError := configuration.SourceIdentifier()
	if sourceError != nil {
		return gitrepo.RepositoryIdentifier{}, gitrepo.RepositoryIdentifier{}, InvalidInputError{FieldName: sourceRepositoryConfigurationField, Message: sourceError.Error()}
	}
	destinationIdentifier, destinationError := configuration.DestinationIdentifier()
	if destinationError != nil {
		return gitrepo.RepositoryIdentifier{}, gitrepo.RepositoryIdentifier{}, InvalidInputError{FieldName: destinationRepositoryConfigurationField, Message: destinationError.Error()}
	}
	return sourceIdentifier, destinationIdentifier, nil
}

// SourceIdentifier parses the source repository as workspace/slug.
func (configuration CommandConfiguration) SourceIdentifier() (gitrepo.RepositoryIdentifier, error) {
	return gitrepo.ParseRepositoryIdentifier(configuration.Source.Repository)
}

// DestinationIdentifier parses the destination repository as owner/name.
func (configuration CommandConfiguration) DestinationIdentifier() (gitrepo.RepositoryIdentifier, error) {
	return gitrepo.ParseRepositoryIdentifier(configuration.Destination.Repository)
}

func valueOrDefault(value string, defaultValue string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return defaultValue
	}
	return trimmedValue
}

func expandPath(value string, defaultValue string) string {
	return configurationHomeExpander.Expand(valueOrDefault(value, defaultValue))
}

// DefaultConfigurationValues flattens the default configuration under prefix for the configuration loader.
// Every key is listed so environment overrides reach settings absent from configuration files.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	values := map[string]any{
		"source.repository":        defaults.Source.Repository,
		"source.username":          defaults.Source.Username,
		"source.app_password":      defaults.Source.AppPassword,
		"source.api_base_url":      defaults.Source.APIBaseURL,
		"source.git_host":          defaults.Source.GitHost,
		"destination.repository":   defaults.Destination.Repository,
		"destination.token":        defaults.Destination.Token,
		"destination.api_base_url": defaults.Destination.APIBaseURL,
		"destination.git_host":     defaults.Destination.GitHost,
		"paths.clone_directory":    defaults.Paths.CloneDirectory,
		"paths.catalog_cache":      defaults.Paths.CatalogCache,
		"paths.processed_file":     defaults.Paths.ProcessedFile,
		"paths.excluded_file":      defaults.Paths.ExcludedFile,
		"state.backend":            defaults.State.Backend,
		"state.database_path":      defaults.State.DatabasePath,
		"catalog.max_age":          defaults.Catalog.MaxAge.String(),
		"catalog.page_length":      defaults.Catalog.PageLength,
		"pause":                    defaults.Pause.String(),
	}

	trimmedPrefix := strings.Trim(strings.TrimSpace(prefix), configurationKeySeparatorConstant)
	if len(trimmedPrefix) == 0 {
		return values
	}
	prefixed := make(map[string]any, len(values))
	for key, value := range values {
		prefixed[trimmedPrefix+configurationKeySeparatorConstant+key] = value
	}
	return prefixed
}
