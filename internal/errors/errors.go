package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigInvalid indicates a missing or malformed run configuration field
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ConfigNotFound indicates an explicitly requested config file does not exist
	ConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	// UnknownExtractor indicates an extractor id with no registered implementation
	UnknownExtractor ErrorCode = "UNKNOWN_EXTRACTOR"
	// UnknownExecutor indicates an executor id with no registered implementation
	UnknownExecutor ErrorCode = "UNKNOWN_EXECUTOR"
	// DuplicateModule indicates two definitions of one module id in a snapshot
	DuplicateModule ErrorCode = "DUPLICATE_MODULE"
	// DuplicateTestSuite indicates conflicting records for one test suite path
	DuplicateTestSuite ErrorCode = "DUPLICATE_TEST_SUITE"
	// ExtractionFailed indicates a source or test directory could not be scanned
	ExtractionFailed ErrorCode = "EXTRACTION_FAILED"
	// SnapshotReadFailed indicates the baseline exists but could not be read
	SnapshotReadFailed ErrorCode = "SNAPSHOT_READ_FAILED"
	// SnapshotWriteFailed indicates the current snapshot could not be persisted
	SnapshotWriteFailed ErrorCode = "SNAPSHOT_WRITE_FAILED"
	// ExecutionFailed indicates the test runner reported a failure
	ExecutionFailed ErrorCode = "EXECUTION_FAILED"
	// Locked means another process is updating the same baseline
	Locked ErrorCode = "LOCKED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditConfig suggests changing the run configuration
	EditConfig FixActionType = "edit-config"
	// InstallTool suggests installing a tool
	InstallTool FixActionType = "install-tool"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Field       string        `json:"field,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	Tool        string        `json:"tool,omitempty"`
}

// RetrospecError carries a stable code, a message and suggested fixes.
type RetrospecError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates a RetrospecError with the default fixes for its code.
func New(code ErrorCode, message string, cause error) *RetrospecError {
	return &RetrospecError{
		Code:           code,
		Message:        message,
		SuggestedFixes: GetSuggestedFixes(code),
		cause:          cause,
	}
}

// Newf is New with a formatted message.
func Newf(code ErrorCode, cause error, format string, args ...interface{}) *RetrospecError {
	return New(code, fmt.Sprintf(format, args...), cause)
}

// Error implements the error interface
func (e *RetrospecError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *RetrospecError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *RetrospecError) WithDetails(details interface{}) *RetrospecError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first RetrospecError in err's chain,
// or InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var re *RetrospecError
	if errors.As(err, &re) {
		return re.Code
	}
	return InternalError
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	var re *RetrospecError
	return errors.As(err, &re) && re.Code == code
}

// ExitCode maps an error to the process exit status.
// A failing test run exits 2 so CI can tell it apart from tool failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if CodeOf(err) == ExecutionFailed {
		return 2
	}
	return 1
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "retrospec init",
			Safe:        true,
			Description: "Write a starter configuration to .retrospec/config.json",
		},
	},
	ConfigNotFound: {
		{
			Type:        RunCommand,
			Command:     "retrospec init",
			Safe:        true,
			Description: "Create a configuration file",
		},
	},
	UnknownExtractor: {
		{
			Type:        EditConfig,
			Field:       "src.extractor",
			Description: "Use one of: angular-module, requirejs-module, toml-declaration, scip-index",
		},
		{
			Type:        EditConfig,
			Field:       "test.extractor",
			Description: "Use one of: angular-karma, inline-comment, jqm, yaml-declaration",
		},
	},
	UnknownExecutor: {
		{
			Type:        EditConfig,
			Field:       "test.executor",
			Description: "Use one of: list, command, karma, karma-template, ui-bootstrap, jqm-131, jqm-144",
		},
	},
	DuplicateModule: {
		{
			Type:        EditConfig,
			Field:       "src.exclude",
			Description: "Exclude build output or vendored copies that redefine the module",
		},
	},
	SnapshotReadFailed: {
		{
			Type:        RunCommand,
			Command:     "retrospec snapshot reset",
			Safe:        false,
			Description: "Discard the unreadable baseline; the next run selects every test",
		},
	},
	Locked: {
		{
			Type:        RunCommand,
			Command:     "rm .retrospec/run.lock",
			Safe:        false,
			Description: "Remove the lock file if no other retrospec process is running",
		},
	},
	ExecutionFailed: {
		{
			Type:        RunCommand,
			Command:     "retrospec select --format list",
			Safe:        true,
			Description: "List the selected tests to rerun them by hand",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
