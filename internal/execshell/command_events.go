package execshell

import (
	"strings"

	"go.uber.org/zap"
)

// CommandEventObserver receives lifecycle notifications for shell command execution.
type CommandEventObserver interface {
	// CommandStarted notifies observers that command execution is beginning.
	CommandStarted(command ShellCommand)
	// CommandCompleted notifies observers that command execution finished and supplies the result.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports unexpected failures prior to receiving an execution result.
	CommandExecutionFailed(command ShellCommand, failure error)
}

type structuredCommandEventLogger struct {
	logger *zap.Logger
}

func newStructuredCommandEventLogger(logger *zap.Logger) *structuredCommandEventLogger {
	return &structuredCommandEventLogger{logger: logger}
}

func (eventLogger *structuredCommandEventLogger) CommandStarted(command ShellCommand) {
	eventLogger.logger.Debug(commandStartedLogMessageConstant, commandFields(command)...)
}

func (eventLogger *structuredCommandEventLogger) CommandCompleted(command ShellCommand, result ExecutionResult) {
	fields := append(commandFields(command), zap.Int(exitCodeLogFieldNameConstant, result.ExitCode))
	if result.ExitCode == 0 {
		eventLogger.logger.Debug(commandCompletedLogMessageConstant, fields...)
		return
	}
	fields = append(fields, zap.String(standardErrorLogFieldNameConstant, RedactCredentials(strings.TrimSpace(result.StandardError))))
	eventLogger.logger.Debug(commandFailedLogMessageConstant, fields...)
}

func (eventLogger *structuredCommandEventLogger) CommandExecutionFailed(command ShellCommand, failure error) {
	eventLogger.logger.Warn(commandExecutionFailedLogMessageConstant, append(commandFields(command), zap.Error(failure))...)
}

// consoleCommandEventLogger renders lifecycle events as sentences for console log output.
type consoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter CommandMessageFormatter
}

func newConsoleCommandEventLogger(logger *zap.Logger) *consoleCommandEventLogger {
	return &consoleCommandEventLogger{logger: logger, formatter: CommandMessageFormatter{}}
}

func (eventLogger *consoleCommandEventLogger) CommandStarted(command ShellCommand) {
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(command))
}

func (eventLogger *consoleCommandEventLogger) CommandCompleted(command ShellCommand, result ExecutionResult) {
	if result.ExitCode == 0 {
		eventLogger.logger.Info(eventLogger.formatter.BuildSuccessMessage(command))
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildFailureMessage(command, result))
}

func (eventLogger *consoleCommandEventLogger) CommandExecutionFailed(command ShellCommand, failure error) {
	eventLogger.logger.Warn(eventLogger.formatter.BuildExecutionFailureMessage(command, failure))
}

func commandFields(command ShellCommand) []zap.Field {
	return []zap.Field{
		zap.String(commandLogFieldNameConstant, describeCommand(command)),
		zap.String(workingDirectoryLogFieldNameConstant, command.Details.WorkingDirectory),
	}
}
