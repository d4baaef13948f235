package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	credentialsCommandUseConstant          = "credentials"
	credentialsCommandShortConstant        = "Manage stored Bitbucket and GitHub credentials"
	setCommandUseConstant                  = "set <name>"
	setCommandShortConstant                = "Store a credential in the operating system keyring"
	setCommandLongTemplateConstant         = "set reads the secret from standard input and stores it in the keyring. Supported names: %s."
	emptyCredentialMessageConstant         = "credential value must not be empty"
	credentialReadErrorTemplateConstant    = "unable to read credential from standard input: %w"
	credentialStoredLogMessageConstant     = "credential stored"
	credentialStoredOutputTemplateConstant = "stored %s\n"
)

// ErrEmptyCredential reports a blank value supplied to credentials set.
var ErrEmptyCredential = errors.New(emptyCredentialMessageConstant)

// CommandBuilder assembles the credentials Cobra command.
type CommandBuilder struct {
	LoggerProvider func() *zap.Logger
	KeyringOpener  KeyringOpener
}

// Build constructs the credentials command with its set subcommand.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   credentialsCommandUseConstant,
		Short: credentialsCommandShortConstant,
	}

	setCommand := &cobra.Command{
		Use:           setCommandUseConstant,
		Short:         setCommandShortConstant,
		Long:          fmt.Sprintf(setCommandLongTemplateConstant, supportedKeyList()),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(1),
		RunE:          builder.runSet,
	}
	command.AddCommand(setCommand)

	return command, nil
}

func (builder *CommandBuilder) runSet(command *cobra.Command, arguments []string) error {
	key, keyError := ParseKey(arguments[0])
	if keyError != nil {
		return keyError
	}

	value, readError := readSecret(command.InOrStdin())
	if readError != nil {
		return fmt.Errorf(credentialReadErrorTemplateConstant, readError)
	}
	if len(value) == 0 {
		return ErrEmptyCredential
	}

	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	resolver := NewResolver(logger, nil, builder.KeyringOpener)
	if storeError := resolver.Store(key, value); storeError != nil {
		return storeError
	}

	resolver.logger.Info(credentialStoredLogMessageConstant, zap.String(credentialNameLogFieldConstant, string(key)))
	_, writeError := fmt.Fprintf(command.OutOrStdout(), credentialStoredOutputTemplateConstant, key)
	return writeError
}

func readSecret(input io.Reader) (string, error) {
	line, readError := bufio.NewReader(input).ReadString('\n')
	if readError != nil && !errors.Is(readError, io.EOF) {
		return "", readError
	}
	return strings.TrimSpace(line), nil
}
