package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Process exit codes. run exits ExitSuccess on SIGINT/SIGTERM; trace and
// cycles use ExitCommandError when the trace database cannot be read.
const (
	ExitSuccess      = 0 // clean shutdown or successful query
	ExitFailure      = 1 // invalid configuration or a runtime failure
	ExitCommandError = 2 // bad invocation (missing files, unreadable trace database)
)

// Codes carried in a JSON error envelope: validate reports E001, trace
// reports E002 for an unknown or absent cycle.
const (
	CodeInvalidConfig = "E001"
	CodeCycleNotFound = "E002"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// NewExitError is an ExitError with no cause, e.g. a config that fails
// validation.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to a failure from config loading, the
// store or the runtime.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode is what cmd/fuser passes to os.Exit. Errors without an
// ExitError in their chain map to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as JSON envelopes or plain text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; falls back to Writer
	Verbose   bool
}

// CLIResponse is the envelope every --format json command prints.
type CLIResponse struct {
	Status  string    `json:"status"` // "ok" or "error"
	Data    any       `json:"data,omitempty"`
	Error   *CLIError `json:"error,omitempty"`
	CycleID string    `json:"cycle_id,omitempty"` // set by trace
}

// CLIError describes a failed command: the E-code, a one-line message and
// optional details such as the list of config validation errors.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// newFormatter binds a formatter to the command's output streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// Success prints a validate or cycles result.
func (f *OutputFormatter) Success(data any) error {
	return f.SuccessFor("", data)
}

// SuccessFor prints a result about one cycle; the JSON envelope carries its ID.
func (f *OutputFormatter) SuccessFor(cycleID string, data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:  "ok",
			Data:    data,
			CycleID: cycleID,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error prints a coded failure. Text mode shows details only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog prints progress such as "loaded agent.yaml" under --verbose.
// It never touches Writer when ErrWriter is set, so JSON output stays clean.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns where diagnostics go.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
