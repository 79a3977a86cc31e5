// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dictionary stores per-language-pair term overrides.
//
// A dictionary maps a pair ID such as "ko-en" to an ordered list of
// entries. Entries are never deduplicated; when two entries share a source
// term, the later one wins downstream (see package prompt).
package dictionary

import (
	"fmt"
	"strings"
)

// Entry maps a literal source term to the replacement the model must use.
type Entry struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Valid reports whether both sides are non-empty after trimming.
func (e Entry) Valid() bool {
	return strings.TrimSpace(e.From) != "" && strings.TrimSpace(e.To) != ""
}

func (e Entry) String() string {
	return fmt.Sprintf("%q -> %q", e.From, e.To)
}

// =============================================================================
// ERRORS
// =============================================================================

// DictionaryError represents a dictionary-related error.
// Use errors.Is with the sentinels below.
type DictionaryError struct {
	Message string
}

func (e *DictionaryError) Error() string {
	return e.Message
}

// Is implements errors.Is for DictionaryError.
func (e *DictionaryError) Is(target error) bool {
	t, ok := target.(*DictionaryError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrEmptyTerm is returned when an entry's from or to is blank.
	ErrEmptyTerm = &DictionaryError{Message: "dictionary entry needs both a source and a target term"}

	// ErrIndexOutOfRange is returned by Update and Remove for a bad index.
	ErrIndexOutOfRange = &DictionaryError{Message: "dictionary entry index out of range"}

	// ErrEmptyPair is returned when the pair ID is blank.
	ErrEmptyPair = &DictionaryError{Message: "language pair is required"}
)

// Filter returns the valid entries of entries, in order. It is the rule
// applied when a whole list is saved: blank rows are dropped silently.
func Filter(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Valid() {
			out = append(out, e)
		}
	}
	return out
}
