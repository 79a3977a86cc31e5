// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package translate

import (
	"context"
	"errors"

	"github.com/jeranaias/otrans/internal/ollama"
)

// =============================================================================
// PRECONDITION ERRORS
// =============================================================================

// PreconditionError is returned when an operation is rejected before any I/O.
// Session state is left untouched.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// Is implements errors.Is for PreconditionError.
func (e *PreconditionError) Is(target error) bool {
	t, ok := target.(*PreconditionError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrEmptyInput means the source text is blank.
	ErrEmptyInput = &PreconditionError{Message: "nothing to translate"}

	// ErrNoModelSelected means no model was given or selected.
	ErrNoModelSelected = &PreconditionError{Message: "no model selected"}

	// ErrModelsLoading means model discovery has not finished yet.
	ErrModelsLoading = &PreconditionError{Message: "models are still loading"}

	// ErrTranslationInProgress rejects changes while a translation streams.
	ErrTranslationInProgress = &PreconditionError{Message: "a translation is in progress"}
)

// ErrAlreadyRunning is returned by Translate while another attempt streams.
// It is a silent no-op: no notification is sent.
var ErrAlreadyRunning = errors.New("translation already running")

// ErrCancelled is returned by Translate when the attempt was stopped.
var ErrCancelled = errors.New("translation cancelled")

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Outcome classifies the result of a controller operation.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeCancelled
	OutcomePrecondition
	OutcomeUnreachable
	OutcomeMalformed
	OutcomeTimeout
	OutcomeModel
	OutcomeUnknown
)

// String returns a short name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomePrecondition:
		return "precondition"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeModel:
		return "model"
	default:
		return "unknown"
	}
}

// Retryable reports whether re-invoking the same operation may succeed.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeUnreachable, OutcomeMalformed, OutcomeTimeout:
		return true
	}
	return false
}

// Classify maps an error returned by the controller to an Outcome.
func Classify(err error) Outcome {
	var pre *PreconditionError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrCancelled), ollama.IsCancelled(err), errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.As(err, &pre), errors.Is(err, ErrAlreadyRunning):
		return OutcomePrecondition
	case ollama.IsNotRunning(err):
		return OutcomeUnreachable
	case ollama.IsMalformed(err):
		return OutcomeMalformed
	case ollama.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case ollama.IsModelNotFound(err), ollama.IsModelError(err):
		return OutcomeModel
	default:
		return OutcomeUnknown
	}
}
