package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/roach88/studydb/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Store failure (initialization, migration, rejected backup, write)
	ExitCommandError = 2 // Command error (bad arguments, unreadable files, bad config)
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // What the command was doing
	Err     error  // Cause, usually an *engine.Error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code for err; ExitFailure unless err wraps an
// ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Codes reported for failures that carry no store error code.
const (
	CodeCommand = "COMMAND"
	CodeFailure = "FAILURE"
)

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command. Code is a store error code
// (INITIALIZATION, NOT_READY, MIGRATION, BACKUP_FORMAT, WRITE) when the
// store produced the failure, else COMMAND or FAILURE.
type CLIError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Op          string `json:"op,omitempty"`
	Recoverable bool   `json:"recoverable"`
	ExitCode    int    `json:"exit_code"`
}

// Describe classifies err for output.
func Describe(err error) *CLIError {
	out := &CLIError{Message: err.Error(), ExitCode: GetExitCode(err)}

	var storeErr *engine.Error
	if errors.As(err, &storeErr) {
		out.Code = string(storeErr.Code)
		out.Op = storeErr.Op
		out.Recoverable = storeErr.Recoverable()
		return out
	}
	if out.ExitCode == ExitCommandError {
		out.Code = CodeCommand
	} else {
		out.Code = CodeFailure
	}
	return out
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostics; falls back to Writer
	Verbose   bool
}

// Success writes a successful result.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Fail reports err. JSON goes to Writer so scripts read one document from
// stdout; text goes to the diagnostic writer.
func (f *OutputFormatter) Fail(err error) error {
	desc := Describe(err)
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: desc})
	}

	w := f.errWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", desc.Code, desc.Message)
	if desc.Recoverable {
		fmt.Fprintln(w, "The store is still usable; the operation can be retried.")
	}
	if f.Verbose && desc.Op != "" {
		fmt.Fprintf(w, "Operation: %s\n", desc.Op)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose output is on. It never
// goes to Writer unless ErrWriter is unset, so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
