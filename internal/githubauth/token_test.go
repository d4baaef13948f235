package githubauth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/prtransfer/internal/githubauth"
)

func TestResolveTokenWithLookupPreferenceOrder(testInstance *testing.T) {
	testCases := []struct {
		name          string
		environment   map[string]string
		expectedToken githubauth.Token
		expectFound   bool
	}{
		{
			name:          "cli_token_preferred",
			environment:   map[string]string{githubauth.EnvGitHubCLIToken: "cli", githubauth.EnvGitHubToken: "primary"},
			expectedToken: githubauth.Token{Value: "cli", Source: githubauth.EnvGitHubCLIToken},
			expectFound:   true,
		},
		{
			name:          "blank_values_skipped",
			environment:   map[string]string{githubauth.EnvGitHubCLIToken: "  ", githubauth.EnvGitHubAPIToken: " api "},
			expectedToken: githubauth.Token{Value: "api", Source: githubauth.EnvGitHubAPIToken},
			expectFound:   true,
		},
		{
			name:        "nothing_set",
			environment: map[string]string{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			token, found := githubauth.ResolveTokenWithLookup(func(key string) (string, bool) {
				value, exists := testCase.environment[key]
				return value, exists
			})
			require.Equal(testInstance, testCase.expectFound, found)
			require.Equal(testInstance, testCase.expectedToken, token)
		})
	}
}

func TestResolveTokenFallsBackToProcessEnvironment(testInstance *testing.T) {
	testInstance.Setenv(githubauth.EnvGitHubCLIToken, "")
	testInstance.Setenv(githubauth.EnvGitHubToken, "from-process")
	testInstance.Setenv(githubauth.EnvGitHubAPIToken, "")

	token, found := githubauth.ResolveToken(nil)
	require.True(testInstance, found)
	require.Equal(testInstance, "from-process", token.Value)

	explicitToken, explicitFound := githubauth.ResolveToken(map[string]string{githubauth.EnvGitHubAPIToken: "from-map"})
	require.True(testInstance, explicitFound)
	require.Equal(testInstance, "from-map", explicitToken.Value)
}
