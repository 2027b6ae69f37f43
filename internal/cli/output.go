package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Some entries could not be processed
	ExitCommandError = 2 // Command error (bad flags, config, store cannot be opened)
)

// ExitError represents an error with a specific exit code.
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands. In JSON mode
// every result is one JSON document per line, and headings are omitted.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostics, kept off Writer so JSON output stays parseable
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool {
	return f.Format == "json"
}

// Heading prints a section title in text mode.
func (f *OutputFormatter) Heading(title string) {
	if !f.isJSON() {
		fmt.Fprintln(f.Writer, title)
	}
}

// Emit prints text in text mode or data as a JSON line in JSON mode.
func (f *OutputFormatter) Emit(text string, data any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(data)
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

// Textf prints a line in text mode only.
func (f *OutputFormatter) Textf(format string, args ...any) {
	if !f.isJSON() {
		fmt.Fprintf(f.Writer, format+"\n", args...)
	}
}

// Warnf reports a problem with a single entry on ErrWriter.
func (f *OutputFormatter) Warnf(format string, args ...any) {
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

// VerboseLog outputs a message only if verbose mode is enabled.
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
