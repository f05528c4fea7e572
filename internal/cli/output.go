package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/govtag/internal/model"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Advisory outcome (missing artifacts, unverified seal)
	ExitCommandError = 2 // Fatal governance error or bad invocation
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitCommandError if the error is not
// an ExitError (flag parsing, unknown command).
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// ExitCodeFor maps a run status to the process exit code.
func ExitCodeFor(s model.Status) int {
	switch s {
	case model.StatusSuccess:
		return ExitSuccess
	case model.StatusAdvisory:
		return ExitFailure
	}
	return ExitCommandError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
	TraceID   string // run id, echoed as trace_id in JSON responses
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status  string      `json:"status"`             // "ok", "advisory" or "error"
	Data    interface{} `json:"data,omitempty"`     // success payload
	Error   *CLIError   `json:"error,omitempty"`    // error details
	TraceID string      `json:"trace_id,omitempty"` // run id
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "BELOW_THRESHOLD", "TAG_ALREADY_EXISTS", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:  "ok",
			Data:    data,
			TraceID: f.TraceID,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
			TraceID: f.TraceID,
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Result outputs a pipeline result together with the error that ended it,
// if any. In JSON both go into one response; in text mode the caller has
// already printed data and only the error line is written.
func (f *OutputFormatter) Result(data interface{}, err error) error {
	status := model.StatusOf(err)
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: data, TraceID: f.TraceID}
		switch status {
		case model.StatusAdvisory:
			resp.Status = "advisory"
		case model.StatusFatal:
			resp.Status = "error"
		}
		if err != nil {
			resp.Error = cliErrorOf(err)
		}
		return json.NewEncoder(f.Writer).Encode(resp)
	}

	if err == nil {
		return nil
	}
	ce := cliErrorOf(err)
	label := "Error"
	if status == model.StatusAdvisory {
		label = "Warning"
	}
	fmt.Fprintf(f.Writer, "%s [%s]: %s\n", label, ce.Code, ce.Message)
	if f.Verbose && ce.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", ce.Details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// cliErrorOf converts a governance error into its wire form. Errors that
// are not *model.Error are reported under code "ERROR".
func cliErrorOf(err error) *CLIError {
	var ge *model.Error
	if errors.As(err, &ge) {
		ce := &CLIError{Code: string(ge.Code), Message: ge.Message}
		if ge.Err != nil {
			ce.Message = fmt.Sprintf("%s: %v", ge.Message, ge.Err)
		}
		if len(ge.Details) > 0 {
			ce.Details = ge.Details
		}
		return ce
	}
	return &CLIError{Code: "ERROR", Message: err.Error()}
}

// reportError writes err through f and returns the ExitError the command
// should return. The message is already on the output, so main does not
// print it again.
func reportError(f *OutputFormatter, data interface{}, err error) error {
	_ = f.Result(data, err)
	return WrapExitError(ExitCodeFor(model.StatusOf(err)), string(cliErrorOf(err).Code), err)
}
