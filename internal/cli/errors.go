// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for CLI commands.
//
// Commands always return errors; Execute displays them once and maps them
// to an exit code.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/otrans/internal/config"
	"github.com/jeranaias/otrans/internal/dictionary"
	"github.com/jeranaias/otrans/internal/history"
	"github.com/jeranaias/otrans/internal/translate"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates Ollama could not be reached or answered badly
	ExitNetworkError = 5
	// ExitNotFoundError indicates a model, history item or entry was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitInterrupted indicates the user stopped a translation (128+SIGINT)
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError represents invalid user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// ConfigError wraps a failure to load or validate configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// exitError carries an exit code for an outcome that was already reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// errInterrupted is returned after a translation was stopped with Ctrl+C.
var errInterrupted = &exitError{code: ExitInterrupted}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrInvalidFormat creates an error for a value in the wrong format.
func ErrInvalidFormat(field, value, expected string) error {
	return &ValidationError{Field: field, Value: value, Reason: "invalid format", Example: expected}
}

// ErrUnsupportedFormat creates an error for unsupported output formats.
func ErrUnsupportedFormat(format string, supported []string) error {
	return &ValidationError{
		Field:   "format",
		Value:   format,
		Reason:  "unsupported format",
		Example: fmt.Sprintf("supported formats: %v", supported),
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	var silent *exitError
	if errors.As(err, &silent) {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse("", err).Write(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, DimStyle.Render(hint))
	}
}

// errorHint suggests a next step for the common failures.
func errorHint(err error) string {
	switch translate.Classify(err) {
	case translate.OutcomeUnreachable:
		return "Is Ollama running? Start it with 'ollama serve' or set ollama.url."
	case translate.OutcomeModel:
		return "List installed models with 'otrans models'."
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return "Check your configuration with 'otrans config show'."
	}
	return ""
}

// GetExitCode determines the exit code for err.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		exitErr   *exitError
		validErr  *ValidationError
		cfgErr    *ConfigError
		cfgValErr config.ValidateErrors
		ttyErr    *TTYRequiredError
		dictErr   *dictionary.DictionaryError
	)
	switch {
	case errors.As(err, &exitErr):
		return exitErr.code
	case errors.As(err, &validErr), errors.As(err, &ttyErr):
		return ExitUsageError
	case errors.As(err, &cfgErr), errors.As(err, &cfgValErr):
		return ExitConfigError
	case history.IsNotFound(err), errors.Is(err, dictionary.ErrIndexOutOfRange):
		return ExitNotFoundError
	case errors.As(err, &dictErr):
		return ExitUsageError
	}

	switch translate.Classify(err) {
	case translate.OutcomeCancelled:
		return ExitInterrupted
	case translate.OutcomePrecondition:
		return ExitUsageError
	case translate.OutcomeUnreachable, translate.OutcomeMalformed:
		return ExitNetworkError
	case translate.OutcomeTimeout:
		return ExitTimeoutError
	case translate.OutcomeModel:
		return ExitNotFoundError
	}
	return ExitGeneralError
}
