package execshell

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	commandGitNameConstant                   = "git"
	loggerNotConfiguredMessageConstant       = "shell executor logger not configured"
	runnerNotConfiguredMessageConstant       = "shell executor command runner not configured"
	commandFailedErrorTemplateConstant       = "%s exited with code %d%s"
	commandExecutionErrorTemplateConstant    = "%s could not be executed: %v"
	urlCredentialsReplacementConstant        = "${1}***@"
	urlSchemeSeparatorConstant               = "://"
	urlUserInfoSeparatorConstant             = "@"
	commandArgumentsJoinSeparatorConstant    = " "
	standardErrorSuffixTemplateConstant      = ": %s"
	emptyStringConstant                      = ""
	unknownFailureMessageConstant            = "unknown error"
	fallbackUnknownValueLabelConstant        = "unknown"
	defaultWorkingDirectoryLabelConstant     = "current directory"
	workingDirectorySuffixTemplateConstant   = " (in %s)"
	commandLabelTemplateConstant             = "%s%s"
	standardErrorLogFieldNameConstant        = "stderr"
	commandLogFieldNameConstant              = "command"
	workingDirectoryLogFieldNameConstant     = "working_directory"
	exitCodeLogFieldNameConstant             = "exit_code"
	commandStartedLogMessageConstant         = "shell command started"
	commandCompletedLogMessageConstant       = "shell command completed"
	commandFailedLogMessageConstant          = "shell command failed"
	commandExecutionFailedLogMessageConstant = "shell command execution failed"
)

// CommandName identifies an executable supported by the executor.
type CommandName string

// CommandGit is the git executable.
const CommandGit CommandName = CommandName(commandGitNameConstant)

// CommandDetails describes the arguments and environment of a single invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand combines an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable results of executing a command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner runs a ShellCommand and reports its result.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

var urlCredentialsPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9+.-]*://)[^/@\s'"]+@`)

var (
	// ErrLoggerNotConfigured indicates the executor was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the executor was constructed without a runner.
	ErrCommandRunnerNotConfigured = errors.New(runnerNotConfiguredMessageConstant)
)

// CommandFailedError reports a command that ran but exited with a non-zero code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command with credentials redacted.
func (failure CommandFailedError) Error() string {
	return fmt.Sprintf(commandFailedErrorTemplateConstant, describeCommand(failure.Command), failure.Result.ExitCode, formatStandardErrorSuffix(failure.Result.StandardError))
}

// CommandExecutionError reports a command that could not be started or awaited.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure with credentials redacted.
func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, describeCommand(failure.Command), failure.Cause)
}

// Unwrap exposes the underlying runner error.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}

// RedactCredentials replaces the user information of every URL found in the text with a placeholder.
func RedactCredentials(text string) string {
	if !strings.Contains(text, urlSchemeSeparatorConstant) || !strings.Contains(text, urlUserInfoSeparatorConstant) {
		return text
	}
	return urlCredentialsPattern.ReplaceAllString(text, urlCredentialsReplacementConstant)
}

// RedactArguments returns a copy of the arguments with every embedded credential redacted.
func RedactArguments(arguments []string) []string {
	redactedArguments := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		redactedArguments = append(redactedArguments, RedactCredentials(argument))
	}
	return redactedArguments
}

func describeCommand(command ShellCommand) string {
	commandParts := []string{string(command.Name)}
	if len(command.Details.Arguments) > 0 {
		commandParts = append(commandParts, RedactArguments(command.Details.Arguments)...)
	}
	return strings.Join(commandParts, commandArgumentsJoinSeparatorConstant)
}

func formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, RedactCredentials(trimmedStandardError))
}
