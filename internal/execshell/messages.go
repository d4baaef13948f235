package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	flagPrefixConstant                      = "-"
)

const (
	gitCloneSubcommandNameConstant    = "clone"
	gitFetchSubcommandNameConstant    = "fetch"
	gitCheckoutSubcommandNameConstant = "checkout"
	gitRevParseSubcommandNameConstant = "rev-parse"
	gitCommitSubcommandNameConstant   = "commit"
	gitPushSubcommandNameConstant     = "push"
	gitAllFlagConstant                = "--all"
	gitResetBranchFlagConstant        = "-B"
	gitDateFlagPrefixConstant         = "--date="
)

const (
	gitCloneStartTemplateConstant               = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant             = "Cloned %s into %s"
	gitCloneFailureTemplateConstant             = "Failed to clone %s into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant    = "Unable to clone %s into %s: %s"
	gitFetchAllStartTemplateConstant            = "Fetching from all remotes in %s"
	gitFetchAllSuccessTemplateConstant          = "Fetched from all remotes in %s"
	gitFetchAllFailureTemplateConstant          = "Failed to fetch from all remotes in %s (exit code %d%s)"
	gitFetchAllExecutionFailureTemplateConstant = "Unable to fetch from all remotes in %s: %s"
	gitResetBranchStartTemplateConstant         = "Resetting branch %s to %s in %s"
	gitResetBranchSuccessTemplateConstant       = "Branch %s now points at %s in %s"
	gitResetBranchFailureTemplateConstant       = "Failed to reset branch %s to %s in %s (exit code %d%s)"
	gitResetBranchExecutionFailureTemplate      = "Unable to reset branch %s to %s in %s: %s"
	gitVerifyStartTemplateConstant              = "Verifying %s in %s"
	gitVerifySuccessTemplateConstant            = "Verified %s in %s"
	gitVerifyFailureTemplateConstant            = "Reference %s not resolved in %s (exit code %d%s)"
	gitVerifyExecutionFailureTemplateConstant   = "Unable to verify %s in %s: %s"
	gitAmendStartTemplateConstant               = "Re-dating the tip commit to %s in %s"
	gitAmendSuccessTemplateConstant             = "Re-dated the tip commit to %s in %s"
	gitAmendFailureTemplateConstant             = "Failed to re-date the tip commit in %s (exit code %d%s)"
	gitAmendExecutionFailureTemplateConstant    = "Unable to re-date the tip commit in %s: %s"
	gitPushStartTemplateConstant                = "Pushing %s to %s"
	gitPushSuccessTemplateConstant              = "Pushed %s to %s"
	gitPushFailureTemplateConstant              = "Failed to push %s to %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant     = "Unable to push %s to %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	switch strings.TrimSpace(command.Details.Arguments[0]) {
	case gitCloneSubcommandNameConstant:
		return formatter.describeGitClone(command, result, failure, stage)
	case gitFetchSubcommandNameConstant:
		if containsArgument(command.Details.Arguments, gitAllFlagConstant) {
			return formatter.describeGitFetchAll(command, result, failure, stage)
		}
	case gitCheckoutSubcommandNameConstant:
		if containsArgument(command.Details.Arguments, gitResetBranchFlagConstant) {
			return formatter.describeGitResetBranch(command, result, failure, stage)
		}
	case gitRevParseSubcommandNameConstant:
		return formatter.describeGitVerify(command, result, failure, stage)
	case gitCommitSubcommandNameConstant:
		return formatter.describeGitAmend(command, result, failure, stage)
	case gitPushSubcommandNameConstant:
		return formatter.describeGitPush(command, result, failure, stage)
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeGitClone(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	positional := formatter.positionalArguments(command.Details.Arguments[1:])
	remote := RedactCredentials(formatter.ensureValue(argumentAtIndex(positional, 0)))
	destination := formatter.ensureValue(argumentAtIndex(positional, 1))

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitCloneStartTemplateConstant, remote, destination)
	case messageStageSuccess:
		return fmt.Sprintf(gitCloneSuccessTemplateConstant, remote, destination)
	case messageStageFailure:
		return fmt.Sprintf(gitCloneFailureTemplateConstant, remote, destination, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(gitCloneExecutionFailureTemplateConstant, remote, destination, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) describeGitFetchAll(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitFetchAllStartTemplateConstant, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitFetchAllSuccessTemplateConstant, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitFetchAllFailureTemplateConstant, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(gitFetchAllExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) describeGitResetBranch(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	branchName := formatter.ensureValue(findFlagValue(command.Details.Arguments, gitResetBranchFlagConstant))
	positional := formatter.positionalArguments(command.Details.Arguments[1:])
	startPoint := formatter.ensureValue(argumentAtIndex(positional, 1))
	workingDirectory := formatter.describeWorkingDirectory(command)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitResetBranchStartTemplateConstant, branchName, startPoint, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitResetBranchSuccessTemplateConstant, branchName, startPoint, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitResetBranchFailureTemplateConstant, branchName, startPoint, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(gitResetBranchExecutionFailureTemplate, branchName, startPoint, workingDirectory, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) describeGitVerify(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	positional := formatter.positionalArguments(command.Details.Arguments[1:])
	reference := formatter.ensureValue(argumentAtIndex(positional, len(positional)-1))
	workingDirectory := formatter.describeWorkingDirectory(command)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitVerifyStartTemplateConstant, reference, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitVerifySuccessTemplateConstant, reference, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitVerifyFailureTemplateConstant, reference, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(gitVerifyExecutionFailureTemplateConstant, reference, workingDirectory, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) describeGitAmend(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commitDate := fallbackUnknownValueLabelConstant
	for _, argument := range command.Details.Arguments {
		if strings.HasPrefix(argument, gitDateFlagPrefixConstant) {
			commitDate = strings.TrimPrefix(argument, gitDateFlagPrefixConstant)
		}
	}
	workingDirectory := formatter.describeWorkingDirectory(command)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitAmendStartTemplateConstant, commitDate, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitAmendSuccessTemplateConstant, commitDate, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitAmendFailureTemplateConstant, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(gitAmendExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) describeGitPush(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	positional := formatter.positionalArguments(command.Details.Arguments[1:])
	remote := RedactCredentials(formatter.ensureValue(argumentAtIndex(positional, 0)))
	refspec := formatter.ensureValue(argumentAtIndex(positional, 1))

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitPushStartTemplateConstant, refspec, remote)
	case messageStageSuccess:
		return fmt.Sprintf(gitPushSuccessTemplateConstant, refspec, remote)
	case messageStageFailure:
		return fmt.Sprintf(gitPushFailureTemplateConstant, refspec, remote, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(gitPushExecutionFailureTemplateConstant, refspec, remote, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := fmt.Sprintf(commandLabelTemplateConstant, describeCommand(command), formatter.formatWorkingDirectorySuffix(command))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return RedactCredentials(failure.Error())
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmedValue
}

// positionalArguments drops flags and the value consumed by -B.
func (formatter CommandMessageFormatter) positionalArguments(arguments []string) []string {
	positional := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		if strings.HasPrefix(argument, flagPrefixConstant) {
			continue
		}
		positional = append(positional, argument)
	}
	return positional
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func argumentAtIndex(arguments []string, index int) string {
	if index < 0 || index >= len(arguments) {
		return emptyStringConstant
	}
	return arguments[index]
}

func findFlagValue(arguments []string, flag string) string {
	for argumentIndex := 0; argumentIndex < len(arguments)-1; argumentIndex++ {
		if arguments[argumentIndex] == flag {
			return arguments[argumentIndex+1]
		}
	}
	return emptyStringConstant
}
