package credentials_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/prtransfer/internal/credentials"
)

func TestCredentialsSetCommand(testInstance *testing.T) {
	testCases := []struct {
		name          string
		arguments     []string
		input         string
		expectedError error
		expectStored  string
	}{
		{name: "stores_trimmed_value", arguments: []string{"set", "github_token"}, input: "  ghp_stored_secret \n", expectStored: "ghp_stored_secret"},
		{name: "stores_without_newline", arguments: []string{"set", "bitbucket_app_password"}, input: "app-secret", expectStored: "app-secret"},
		{name: "rejects_empty_value", arguments: []string{"set", "github_token"}, input: "\n", expectedError: credentials.ErrEmptyCredential},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			ring := keyring.NewArrayKeyring(nil)
			core, logs := observer.New(zap.DebugLevel)
			builder := credentials.CommandBuilder{
				LoggerProvider: func() *zap.Logger { return zap.New(core) },
				KeyringOpener:  func() (keyring.Keyring, error) { return ring, nil },
			}
			command, buildError := builder.Build()
			require.NoError(testInstance, buildError)

			output := &bytes.Buffer{}
			command.SetIn(strings.NewReader(testCase.input))
			command.SetOut(output)
			command.SetErr(&bytes.Buffer{})
			command.SetArgs(testCase.arguments)

			executionError := command.Execute()
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, executionError, testCase.expectedError)
				keys, keysError := ring.Keys()
				require.NoError(testInstance, keysError)
				require.Empty(testInstance, keys)
				return
			}
			require.NoError(testInstance, executionError)

			item, getError := ring.Get(testCase.arguments[1])
			require.NoError(testInstance, getError)
			require.Equal(testInstance, testCase.expectStored, string(item.Data))
			require.Equal(testInstance, "stored "+testCase.arguments[1]+"\n", output.String())
			for _, entry := range logs.All() {
				require.NotContains(testInstance, entry.Message, testCase.expectStored)
				for _, field := range entry.Context {
					require.NotEqual(testInstance, testCase.expectStored, field.String)
				}
			}
		})
	}
}

func TestCredentialsSetCommandRejectsUnknownName(testInstance *testing.T) {
	builder := credentials.CommandBuilder{KeyringOpener: func() (keyring.Keyring, error) { return keyring.NewArrayKeyring(nil), nil }}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	command.SetIn(strings.NewReader("value\n"))
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"set", "aws_secret"})
	executionError := command.Execute()
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "github_token")
}
