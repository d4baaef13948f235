package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/prtransfer/internal/gitrepo"
	migrate "github.com/temirov/prtransfer/internal/migrate"
)

func TestCommandConfigurationRepositoryIdentifiers(testInstance *testing.T) {
	testCases := []struct {
		name                 string
		source               string
		destination          string
		expectedSource       gitrepo.RepositoryIdentifier
		expectedDestination  gitrepo.RepositoryIdentifier
		expectedInvalidField string
	}{
		{
			name:                "slugs",
			source:              "team/source",
			destination:         "acme/destination",
			expectedSource:      gitrepo.RepositoryIdentifier{Owner: "team", Repository: "source"},
			expectedDestination: gitrepo.RepositoryIdentifier{Owner: "acme", Repository: "destination"},
		},
		{
			name:                "remote_urls",
			source:              "https://bitbucket.org/team/source.git",
			destination:         "git@github.com:acme/destination.git",
			expectedSource:      gitrepo.RepositoryIdentifier{Owner: "team", Repository: "source"},
			expectedDestination: gitrepo.RepositoryIdentifier{Owner: "acme", Repository: "destination"},
		},
		{
			name:                 "missing_source",
			destination:          "acme/destination",
			expectedInvalidField: "transfer.source.repository",
		},
		{
			name:                 "malformed_destination",
			source:               "team/source",
			destination:          "destination-only",
			expectedInvalidField: "transfer.destination.repository",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			configuration := migrate.DefaultCommandConfiguration()
			configuration.Source.Repository = testCase.source
			configuration.Destination.Repository = testCase.destination

			sourceIdentifier, destinationIdentifier, identifierError := configuration.RepositoryIdentifiers()
			validationError := configuration.Validate()
			if len(testCase.expectedInvalidField) > 0 {
				var inputError migrate.InvalidInputError
				require.ErrorAs(testInstance, identifierError, &inputError)
				require.Equal(testInstance, testCase.expectedInvalidField, inputError.FieldName)
				require.Equal(testInstance, identifierError, validationError)
				return
			}
			require.NoError(testInstance, identifierError)
			require.NoError(testInstance, validationError)
			require.Equal(testInstance, testCase.expectedSource, sourceIdentifier)
			require.Equal(testInstance, testCase.expectedDestination, destinationIdentifier)
		})
	}
}
