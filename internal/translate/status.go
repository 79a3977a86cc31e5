// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package translate

// Status is the lifecycle state of the translation session.
type Status int

const (
	StatusIdle Status = iota
	StatusLoadingModels
	StatusReady
	StatusTranslating
	StatusCompleted
	StatusCancelled
	StatusFailed
)

// String returns a lowercase name for logs and the status bar.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoadingModels:
		return "loading models"
	case StatusReady:
		return "ready"
	case StatusTranslating:
		return "translating"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is an attempt outcome.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// CanTranslate reports whether a new attempt may start from s.
func (s Status) CanTranslate() bool {
	return s != StatusTranslating && s != StatusLoadingModels
}
